package models

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
)

// QuestionType constants understood by the builder
const (
	QuestionTypeText        = "text"
	QuestionTypeTextarea    = "textarea"
	QuestionTypeSelect      = "select"
	QuestionTypeMultiSelect = "multiselect"
)

// Rule logic and operator values
const (
	LogicAnd = "AND"
	LogicOr  = "OR"

	OperatorEquals    = "equals"
	OperatorNotEquals = "notEquals"
	OperatorContains  = "contains"
)

// AnswerMap maps a questionKey to the value entered for it: a string, or a
// list of strings for multi-select questions.
type AnswerMap map[string]interface{}

// Question is one entry of a form definition
type Question struct {
	QuestionKey      string   `json:"questionKey"`
	Label            string   `json:"label"`
	Type             string   `json:"type"`
	Required         bool     `json:"required"`
	ConditionalRules *RuleSet `json:"conditionalRules"`
	ShowIf           *ShowIf  `json:"showIf,omitempty"`
	FieldID          *string  `json:"fieldId"`
}

// UnmarshalJSON treats a falsy conditionalRules (null, false, 0, "") as
// absent, so showIf can apply. Any other non-object value is an empty rule
// set. showIf is only read from an object.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var aux struct {
		plain
		ConditionalRules json.RawMessage `json:"conditionalRules"`
		ShowIf           json.RawMessage `json:"showIf"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*q = Question(aux.plain)
	q.ConditionalRules = nil
	q.ShowIf = nil
	if rules := gjson.ParseBytes(aux.ConditionalRules); truthy(rules) {
		var rs RuleSet
		if err := json.Unmarshal(aux.ConditionalRules, &rs); err != nil {
			return err
		}
		q.ConditionalRules = &rs
	}
	if gjson.ParseBytes(aux.ShowIf).IsObject() {
		var legacy ShowIf
		if err := json.Unmarshal(aux.ShowIf, &legacy); err == nil {
			q.ShowIf = &legacy
		}
	}
	return nil
}

// RuleSet gates the visibility of the question that owns it
type RuleSet struct {
	Logic      string       `json:"logic,omitempty"`
	Conditions []*Condition `json:"conditions"`
}

// Condition compares the answer of another question with Value
type Condition struct {
	QuestionKey string      `json:"questionKey,omitempty"`
	Operator    string      `json:"operator,omitempty"`
	Value       interface{} `json:"value"`
}

// ShowIf is the legacy single-equality visibility rule
type ShowIf struct {
	Field  string      `json:"field"`
	Equals interface{} `json:"equals"`
}

// UnmarshalJSON accepts any JSON shape. Anything that is not an object
// decodes to an empty rule set, and a non-array conditions field to no
// conditions, so that bad builder input can never break a form.
func (r *RuleSet) UnmarshalJSON(data []byte) error {
	*r = RuleSet{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var logic string
	if err := json.Unmarshal(raw["logic"], &logic); err == nil {
		r.Logic = logic
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw["conditions"], &items); err != nil {
		return nil
	}

	r.Conditions = make([]*Condition, 0, len(items))
	for _, item := range items {
		var cond *Condition
		if err := json.Unmarshal(item, &cond); err != nil {
			cond = &Condition{}
		}
		r.Conditions = append(r.Conditions, cond)
	}
	return nil
}

// UnmarshalJSON keeps whatever it can read from a condition. A key or
// operator that is null, false, 0 or "" is treated as missing, which leaves
// the condition malformed. Any other non-string value is kept in a text form
// that names no question and no operator.
func (c *Condition) UnmarshalJSON(data []byte) error {
	*c = Condition{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	c.QuestionKey = looseString(raw["questionKey"])
	c.Operator = looseString(raw["operator"])

	if v, ok := raw["value"]; ok {
		var value interface{}
		if err := json.Unmarshal(v, &value); err == nil {
			c.Value = value
		}
	}
	return nil
}

func truthy(value gjson.Result) bool {
	switch value.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return value.Num != 0
	case gjson.String:
		return value.Str != ""
	}
	return len(value.Raw) > 0
}

func looseString(data json.RawMessage) string {
	field := gjson.ParseBytes(data)
	switch field.Type {
	case gjson.String:
		return field.Str
	case gjson.Number:
		if field.Num == 0 {
			return ""
		}
		return strconv.FormatFloat(field.Num, 'f', -1, 64)
	case gjson.True:
		return "true"
	case gjson.JSON:
		return field.Raw
	default:
		return ""
	}
}
