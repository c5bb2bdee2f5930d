package service

import "formbuilder-go/internal/models"

// DefaultFormTitle is the title of the seeded form and of builder saves
const DefaultFormTitle = "Demo Form with Role"

// BaseQuestions are always first in a form: the seeded demo form holds only
// these, and builder saves append their extra questions after them.
func BaseQuestions() []models.Question {
	return []models.Question{
		{
			QuestionKey: "name",
			Label:       "Your name",
			Type:        models.QuestionTypeText,
			Required:    true,
		},
		{
			QuestionKey: "role",
			Label:       "Are you a student or professional?",
			Type:        models.QuestionTypeText,
			Required:    true,
		},
		{
			QuestionKey:      "college",
			Label:            "College name",
			Type:             models.QuestionTypeText,
			ConditionalRules: singleEquals("role", "student"),
		},
		{
			QuestionKey:      "company",
			Label:            "Company name",
			Type:             models.QuestionTypeText,
			ConditionalRules: singleEquals("role", "professional"),
		},
	}
}

func singleEquals(key, value string) *models.RuleSet {
	return &models.RuleSet{
		Logic: models.LogicAnd,
		Conditions: []*models.Condition{
			{QuestionKey: key, Operator: models.OperatorEquals, Value: value},
		},
	}
}
