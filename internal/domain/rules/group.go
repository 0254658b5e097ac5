package rules

import (
	"fmt"
	"strings"
)

// LogicOperator combines the results of a group's rules.
type LogicOperator string

// Supported logic operators.
const (
	LogicAnd  LogicOperator = "AND"
	LogicOr   LogicOperator = "OR"
	LogicNot  LogicOperator = "NOT"
	LogicXor  LogicOperator = "XOR"
	LogicNand LogicOperator = "NAND"
	LogicNor  LogicOperator = "NOR"
)

// Rule is a single field/operator/value condition.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Group is an ordered set of rules combined by one logic operator.
type Group struct {
	Logic LogicOperator `json:"logic_operator"`
	Rules []Rule        `json:"rules"`
}

// combineFunc decides a group outcome from the number of matched rules and
// the total rule count.
type combineFunc func(matchedCount, total int) bool

// noneTrue is shared by NOT and NOR. The two operators have carried identical
// "no conditions should be true" semantics since the original rule engine;
// billing output depends on it, so the duplication stays.
func noneTrue(matchedCount, _ int) bool { return matchedCount == 0 }

var logicTable = map[LogicOperator]combineFunc{
	LogicAnd:  func(m, n int) bool { return m == n },
	LogicOr:   func(m, _ int) bool { return m > 0 },
	LogicNot:  noneTrue,
	LogicXor:  func(m, _ int) bool { return m == 1 },
	LogicNand: func(m, n int) bool { return m < n },
	LogicNor:  noneTrue,
}

// NormalizeLogicOperator upper-cases and trims a logic operator code.
func NormalizeLogicOperator(op LogicOperator) LogicOperator {
	return LogicOperator(strings.ToUpper(strings.TrimSpace(string(op))))
}

// EvaluateGroup evaluates every rule in the group against the subject and
// combines the outcomes under the group's logic operator. An unknown logic
// operator is an evaluation error reported as a non-match; it never escapes
// as a Go error.
func EvaluateGroup(group Group, subject Subject) Result {
	logic := NormalizeLogicOperator(group.Logic)
	combine, ok := logicTable[logic]
	if !ok {
		return notMatched("unknown logic operator %q", group.Logic)
	}

	matchedCount := 0
	reasons := make([]string, 0, len(group.Rules))
	for _, rule := range group.Rules {
		r := EvaluateCondition(rule.Field, rule.Operator, rule.Value, subject)
		if r.Matched {
			matchedCount++
		} else if r.Reason != "" {
			reasons = append(reasons, fmt.Sprintf("%s %s %q: %s", rule.Field, rule.Operator, rule.Value, r.Reason))
		}
	}

	if combine(matchedCount, len(group.Rules)) {
		return matched()
	}
	return notMatched("%s not satisfied (%d of %d rules matched)%s",
		logic, matchedCount, len(group.Rules), joinReasons(reasons))
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return ": " + strings.Join(reasons, "; ")
}
