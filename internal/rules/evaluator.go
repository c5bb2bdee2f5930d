// Package rules decides whether a form question is visible for a given set
// of answers. The same ShouldShow call backs both the render-time filter and
// the submit-time required-field check, so the two can never disagree.
package rules

import (
	"reflect"
	"strings"

	"formbuilder-go/internal/models"
)

// ShouldShow reports whether the question owning rs is visible, and therefore
// subject to its required flag, given answers. A nil or empty rule set always
// shows. It never panics and never mutates its arguments.
func ShouldShow(rs *models.RuleSet, answers models.AnswerMap) bool {
	if rs == nil || len(rs.Conditions) == 0 {
		return true
	}

	if rs.Logic == models.LogicOr {
		for _, cond := range rs.Conditions {
			if checkCondition(cond, answers) {
				return true
			}
		}
		return false
	}

	for _, cond := range rs.Conditions {
		if !checkCondition(cond, answers) {
			return false
		}
	}
	return true
}

// checkCondition fails open: a condition without a key or operator, or with
// an operator it does not know, is satisfied. An unanswered question never
// satisfies a condition, whatever the operator.
func checkCondition(cond *models.Condition, answers models.AnswerMap) bool {
	if cond == nil || cond.QuestionKey == "" || cond.Operator == "" {
		return true
	}

	answer := answers[cond.QuestionKey]
	if Blank(answer) {
		return false
	}

	switch cond.Operator {
	case models.OperatorEquals:
		return Stringify(answer) == Stringify(cond.Value)
	case models.OperatorNotEquals:
		return Stringify(answer) != Stringify(cond.Value)
	case models.OperatorContains:
		if items, ok := sequence(answer); ok {
			for _, item := range items {
				if sameValue(item, cond.Value) {
					return true
				}
			}
			return false
		}
		return strings.Contains(
			strings.ToLower(Stringify(answer)),
			strings.ToLower(Stringify(cond.Value)),
		)
	default:
		return true
	}
}

// Blank reports whether an answer counts as not given: nil or the empty
// string. Reading a missing key from an AnswerMap yields nil, so absent and
// empty answers are the same thing.
func Blank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return true
		}
	}
	if rv.Kind() == reflect.Pointer {
		return Blank(rv.Elem().Interface())
	}
	return false
}

// sequence returns the elements of a multi-select answer.
func sequence(v interface{}) ([]interface{}, bool) {
	switch items := v.(type) {
	case []interface{}:
		return items, true
	case []string:
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// sameValue is strict equality without coercion: a number never equals a
// string. Numbers of different Go types compare by value.
func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	switch ta.Kind() {
	case reflect.Array, reflect.Struct, reflect.Interface:
		// may still hold uncomparable values
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
