package rules

import (
	"math"
	"strings"

	"formbuilder-go/internal/models"
)

// kind identifies which rule schema gates a question
type kind int

const (
	// kindAlways has no rule at all
	kindAlways kind = iota
	// kindRules uses conditionalRules and ShouldShow
	kindRules
	// kindLegacyShowIf uses the older showIf {field, equals} shape
	kindLegacyShowIf
)

func (k kind) String() string {
	switch k {
	case kindRules:
		return "rules"
	case kindLegacyShowIf:
		return "showIf"
	default:
		return "always"
	}
}

// Visibility is the rule of one question, resolved once when the question is
// loaded. conditionalRules always wins over showIf; showIf only applies when
// conditionalRules is absent and both field and equals are set.
type Visibility struct {
	kind   kind
	rules  *models.RuleSet
	legacy *models.ShowIf
}

// Resolve picks the rule schema for q
func Resolve(q models.Question) Visibility {
	if q.ConditionalRules != nil {
		return Visibility{kind: kindRules, rules: q.ConditionalRules}
	}
	if q.ShowIf != nil && q.ShowIf.Field != "" && truthy(q.ShowIf.Equals) {
		return Visibility{kind: kindLegacyShowIf, legacy: q.ShowIf}
	}
	return Visibility{kind: kindAlways}
}

// Visible evaluates the resolved rule against an answer snapshot
func (v Visibility) Visible(answers models.AnswerMap) bool {
	switch v.kind {
	case kindRules:
		return ShouldShow(v.rules, answers)
	case kindLegacyShowIf:
		return showIfMatches(v.legacy, answers)
	default:
		return true
	}
}

// showIfMatches is the legacy single equality test: trimmed and case
// insensitive on both sides, with a falsy answer read as "".
func showIfMatches(rule *models.ShowIf, answers models.AnswerMap) bool {
	var answer interface{} = ""
	if v := answers[rule.Field]; truthy(v) {
		answer = v
	}
	return normalizeLegacy(answer) == normalizeLegacy(rule.Equals)
}

func normalizeLegacy(v interface{}) string {
	return strings.ToLower(strings.TrimSpace(Stringify(v)))
}

func truthy(v interface{}) bool {
	if Blank(v) {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}
