package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Operator identifies a comparison applied between an order field and a
// configured value. Operator codes are normalized to lower case before lookup.
type Operator string

// Supported operator codes. Neq and NotContains are historical alias
// spellings and must stay accepted alongside the short forms.
const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpNeq         Operator = "neq"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGe          Operator = "ge"
	OpLe          Operator = "le"
	OpContains    Operator = "contains"
	OpNContains   Operator = "ncontains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "startswith"
	OpEndsWith    Operator = "endswith"
	OpIn          Operator = "in"
	OpNotIn       Operator = "ni"
	OpBetween     Operator = "between"
)

// Result is the outcome of evaluating a condition or a group. Reason carries
// a diagnostic when the outcome was degraded (missing field, bad coercion,
// unknown operator) and is informational on a clean match.
type Result struct {
	Matched bool
	Reason  string
}

func matched() Result {
	return Result{Matched: true}
}

func notMatched(format string, args ...any) Result {
	return Result{Matched: false, Reason: fmt.Sprintf(format, args...)}
}

// Subject is the record a condition is evaluated against. Orders implement it;
// the diagnostic API builds one from a sample payload.
type Subject interface {
	// Field resolves a scalar attribute by name. The second return is false
	// when the subject has no such attribute.
	Field(name string) (any, bool)
	// SKUKeys returns the SKU identifiers of the subject's SKU-quantity
	// mapping when name addresses that mapping, with ok=true. For scalar
	// fields ok is false and the membership operators fall back to their
	// string semantics.
	SKUKeys(name string) (keys []string, ok bool)
}

// conditionFunc evaluates one operator. fieldVal is the resolved subject
// attribute, value the configured comparison value.
type conditionFunc func(fieldVal any, value string) Result

// operatorTable maps every accepted operator code, aliases included, to its
// evaluation function. Alias equivalence holds by construction: both spellings
// reference the same function value.
var operatorTable = map[Operator]conditionFunc{
	OpEq:          evalEq,
	OpNe:          evalNe,
	OpNeq:         evalNe,
	OpGt:          numericCompare(func(c int) bool { return c > 0 }),
	OpLt:          numericCompare(func(c int) bool { return c < 0 }),
	OpGe:          numericCompare(func(c int) bool { return c >= 0 }),
	OpLe:          numericCompare(func(c int) bool { return c <= 0 }),
	OpContains:    evalContains,
	OpNContains:   evalNotContains,
	OpNotContains: evalNotContains,
	OpStartsWith:  evalStartsWith,
	OpEndsWith:    evalEndsWith,
	OpIn:          evalIn,
	OpNotIn:       evalNotIn,
	OpBetween:     evalBetween,
}

// skuOperators are evaluated against the subject's SKU keys instead of a
// scalar attribute when the field addresses the SKU-quantity mapping.
var skuOperators = map[Operator]func(keys []string, value string) Result{
	OpContains:    skuContains,
	OpNContains:   skuNotContains,
	OpNotContains: skuNotContains,
	OpIn:          skuIn,
	OpNotIn:       skuNotIn,
}

// NormalizeOperator lower-cases and trims an operator code.
func NormalizeOperator(op Operator) Operator {
	return Operator(strings.ToLower(strings.TrimSpace(string(op))))
}

// EvaluateCondition evaluates a single (field, operator, value) condition
// against the subject. It never panics and never returns an error: failures
// are reported as Matched=false with the reason in Result.Reason.
func EvaluateCondition(field string, op Operator, value string, subject Subject) Result {
	op = NormalizeOperator(op)

	fn, ok := operatorTable[op]
	if !ok {
		return notMatched("unknown operator %q", op)
	}

	if skuFn, isSKUOp := skuOperators[op]; isSKUOp {
		if keys, isSKU := subject.SKUKeys(field); isSKU {
			return skuFn(keys, value)
		}
	}

	fieldVal, ok := subject.Field(field)
	if !ok {
		return notMatched("field %q not present on order", field)
	}
	return fn(fieldVal, value)
}

// coerceString renders any field value as a string for textual comparison.
func coerceString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return fmt.Sprintf("%v", v)
}

// coerceDecimal converts a field value to a decimal for numeric comparison.
func coerceDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.Zero, fmt.Errorf("cannot coerce %T to a number", v)
	}
}

func evalEq(fieldVal any, value string) Result {
	if strings.EqualFold(coerceString(fieldVal), value) {
		return matched()
	}
	return notMatched("%q != %q", coerceString(fieldVal), value)
}

func evalNe(fieldVal any, value string) Result {
	if !strings.EqualFold(coerceString(fieldVal), value) {
		return matched()
	}
	return notMatched("%q == %q", coerceString(fieldVal), value)
}

// numericCompare builds a condition over the sign of decimal comparison.
// Coercion failure on either side fails closed.
func numericCompare(accept func(cmp int) bool) conditionFunc {
	return func(fieldVal any, value string) Result {
		left, err := coerceDecimal(fieldVal)
		if err != nil {
			return notMatched("order value %v is not numeric: %v", fieldVal, err)
		}
		right, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return notMatched("rule value %q is not numeric", value)
		}
		if accept(left.Cmp(right)) {
			return matched()
		}
		return notMatched("%s does not satisfy comparison with %s", left, right)
	}
}

func evalContains(fieldVal any, value string) Result {
	if strings.Contains(strings.ToLower(coerceString(fieldVal)), strings.ToLower(value)) {
		return matched()
	}
	return notMatched("%q does not contain %q", coerceString(fieldVal), value)
}

func evalNotContains(fieldVal any, value string) Result {
	r := evalContains(fieldVal, value)
	if r.Matched {
		return notMatched("%q contains %q", coerceString(fieldVal), value)
	}
	return matched()
}

func evalStartsWith(fieldVal any, value string) Result {
	if strings.HasPrefix(strings.ToLower(coerceString(fieldVal)), strings.ToLower(value)) {
		return matched()
	}
	return notMatched("%q does not start with %q", coerceString(fieldVal), value)
}

func evalEndsWith(fieldVal any, value string) Result {
	if strings.HasSuffix(strings.ToLower(coerceString(fieldVal)), strings.ToLower(value)) {
		return matched()
	}
	return notMatched("%q does not end with %q", coerceString(fieldVal), value)
}

// splitList splits a `;`-delimited rule value into trimmed entries.
func splitList(value string) []string {
	parts := strings.Split(value, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func evalIn(fieldVal any, value string) Result {
	fv := coerceString(fieldVal)
	for _, candidate := range splitList(value) {
		if strings.EqualFold(fv, candidate) {
			return matched()
		}
	}
	return notMatched("%q not in list %q", fv, value)
}

func evalNotIn(fieldVal any, value string) Result {
	r := evalIn(fieldVal, value)
	if r.Matched {
		return notMatched("%q in list %q", coerceString(fieldVal), value)
	}
	return matched()
}

func evalBetween(fieldVal any, value string) Result {
	bounds := strings.Split(value, ",")
	if len(bounds) != 2 {
		return notMatched("between requires a two-element range, got %q", value)
	}
	low, err := decimal.NewFromString(strings.TrimSpace(bounds[0]))
	if err != nil {
		return notMatched("range lower bound %q is not numeric", bounds[0])
	}
	high, err := decimal.NewFromString(strings.TrimSpace(bounds[1]))
	if err != nil {
		return notMatched("range upper bound %q is not numeric", bounds[1])
	}
	fv, err := coerceDecimal(fieldVal)
	if err != nil {
		return notMatched("order value %v is not numeric: %v", fieldVal, err)
	}
	if fv.GreaterThanOrEqual(low) && fv.LessThanOrEqual(high) {
		return matched()
	}
	return notMatched("%s outside range [%s, %s]", fv, low, high)
}

func skuHas(keys []string, sku string) bool {
	for _, k := range keys {
		if strings.EqualFold(k, sku) {
			return true
		}
	}
	return false
}

func skuContains(keys []string, value string) Result {
	if skuHas(keys, strings.TrimSpace(value)) {
		return matched()
	}
	return notMatched("order has no SKU %q", value)
}

func skuNotContains(keys []string, value string) Result {
	r := skuContains(keys, value)
	if r.Matched {
		return notMatched("order has SKU %q", value)
	}
	return matched()
}

func skuIn(keys []string, value string) Result {
	for _, candidate := range splitList(value) {
		if skuHas(keys, candidate) {
			return matched()
		}
	}
	return notMatched("no order SKU in list %q", value)
}

func skuNotIn(keys []string, value string) Result {
	r := skuIn(keys, value)
	if r.Matched {
		return notMatched("order SKU in list %q", value)
	}
	return matched()
}
