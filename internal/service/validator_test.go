package service

import (
	"errors"
	"testing"

	"formbuilder-go/internal/models"
)

func TestValidateSubmissionFirstFailureOnly(t *testing.T) {
	questions := BaseQuestions()
	questions[2].Required = true

	cases := []struct {
		name    string
		answers models.AnswerMap
		wantKey string
	}{
		{"empty", models.AnswerMap{}, "name"},
		{"blank name", models.AnswerMap{"name": "", "role": "student"}, "name"},
		{"missing role", models.AnswerMap{"name": "Ada"}, "role"},
		{"student without college", models.AnswerMap{"name": "Ada", "role": "student"}, "college"},
		{"student with college", models.AnswerMap{"name": "Ada", "role": "student", "college": "MIT"}, ""},
		{"professional", models.AnswerMap{"name": "Ada", "role": "professional"}, ""},
		{"zero counts as answered", models.AnswerMap{"name": 0, "role": false}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSubmission(questions, tc.answers)
			if tc.wantKey == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.QuestionKey != tc.wantKey {
				t.Fatalf("expected failure on %s, got %v", tc.wantKey, err)
			}
		})
	}
}

func TestValidateSubmissionIgnoresLegacyShowIf(t *testing.T) {
	questions := []models.Question{{
		QuestionKey: "extra",
		Label:       "Extra",
		Required:    true,
		ShowIf:      &models.ShowIf{Field: "role", Equals: "student"},
	}}
	if err := ValidateSubmission(questions, models.AnswerMap{"role": "professional"}); err == nil {
		t.Fatal("showIf must not hide a question from validation")
	}
	if got := VisibleQuestions(questions, models.AnswerMap{"role": "professional"}); len(got) != 0 {
		t.Fatalf("renderer should hide the question, got %d", len(got))
	}
	if got := VisibleQuestions(questions, models.AnswerMap{"role": " Student "}); len(got) != 1 {
		t.Fatalf("renderer should show the question, got %d", len(got))
	}
}

func TestPurgeHiddenDoesNotMutate(t *testing.T) {
	answers := models.AnswerMap{"role": "professional", "college": "MIT", "company": "ACME"}
	purged := PurgeHidden(BaseQuestions(), answers)
	if _, ok := purged["college"]; ok {
		t.Fatal("college is hidden for professionals")
	}
	if purged["company"] != "ACME" || answers["college"] != "MIT" {
		t.Fatalf("unexpected purge result %+v / input %+v", purged, answers)
	}
}
