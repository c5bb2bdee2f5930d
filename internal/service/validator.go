package service

import (
	"fmt"

	"formbuilder-go/internal/models"
	"formbuilder-go/internal/rules"
)

// ValidationError rejects a submission that misses a visible required answer
type ValidationError struct {
	QuestionKey string
	Label       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing value for required field: %s", e.Label)
}

// ValidateSubmission walks questions in order and reports the first one that
// is visible, required and unanswered. Visibility here only looks at
// conditionalRules: the legacy showIf shape never gates validation.
func ValidateSubmission(questions []models.Question, answers models.AnswerMap) error {
	for _, q := range questions {
		if !rules.ShouldShow(q.ConditionalRules, answers) {
			continue
		}
		if q.Required && rules.Blank(answers[q.QuestionKey]) {
			return &ValidationError{QuestionKey: q.QuestionKey, Label: q.Label}
		}
	}
	return nil
}

// PurgeHidden returns a copy of answers without the values of questions that
// the submitted answers hide. Keys that match no question are kept.
func PurgeHidden(questions []models.Question, answers models.AnswerMap) models.AnswerMap {
	out := make(models.AnswerMap, len(answers))
	for key, value := range answers {
		out[key] = value
	}
	for _, q := range questions {
		if !rules.ShouldShow(q.ConditionalRules, answers) {
			delete(out, q.QuestionKey)
		}
	}
	return out
}

// VisibleQuestions is the render-time filter: the questions a client should
// display for the current answer snapshot, honouring the legacy showIf shape
// when a question has no conditionalRules.
func VisibleQuestions(questions []models.Question, answers models.AnswerMap) []models.Question {
	visible := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if rules.Resolve(q).Visible(answers) {
			visible = append(visible, q)
		}
	}
	return visible
}
