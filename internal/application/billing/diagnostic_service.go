package billing

import (
	"strings"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/rules"
	"github.com/shopspring/decimal"
)

// SampleOrder is an ad-hoc order payload for testing rules against sample
// data before saving them. Fields holds scalar attributes keyed by field
// name; Lines the SKU-quantity mapping.
type SampleOrder struct {
	Fields map[string]any              `json:"fields"`
	Lines  map[string]billing.SKULine  `json:"lines"`
}

// DiagnosticService exposes the low-level evaluation entry points to the
// configuration-editing API: test one condition, one group, or one tier
// config against a sample order, returning outcome plus reason.
type DiagnosticService struct{}

// NewDiagnosticService creates a diagnostic service.
func NewDiagnosticService() *DiagnosticService {
	return &DiagnosticService{}
}

// buildOrder materializes a sample payload as an order. Known field names
// land on their typed attribute so evaluation sees exactly what a real
// order would expose; everything else goes to the ad-hoc attribute map.
func buildOrder(sample SampleOrder) *billing.Order {
	order := &billing.Order{
		Lines:      sample.Lines,
		Attributes: make(map[string]any),
	}
	for name, value := range sample.Fields {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "order_number":
			order.OrderNumber = asString(value)
		case "status":
			order.Status = asString(value)
		case "ship_to_country":
			order.ShipToCountry = asString(value)
		case "weight":
			order.Weight = asDecimal(value)
		case "volume":
			order.Volume = asDecimal(value)
		default:
			order.Attributes[name] = value
		}
	}
	return order
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	d := asDecimal(v)
	if !d.IsZero() {
		return d.String()
	}
	return ""
}

func asDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// TestCondition evaluates a single condition against a sample order.
func (s *DiagnosticService) TestCondition(rule rules.Rule, sample SampleOrder) rules.Result {
	return rules.EvaluateCondition(rule.Field, rule.Operator, rule.Value, buildOrder(sample))
}

// TestGroup evaluates a rule group against a sample order.
func (s *DiagnosticService) TestGroup(group rules.Group, sample SampleOrder) rules.Result {
	return rules.EvaluateGroup(group, buildOrder(sample))
}

// ResolveTier resolves a sample order against a tier config. The config is
// validated first; an invalid config returns the validation problems as the
// reason with no match, mirroring how a billing run treats it.
func (s *DiagnosticService) ResolveTier(cfg *billing.TierConfig, sample SampleOrder) billing.TierResult {
	if valid, problems := billing.ValidateTierConfig(cfg); !valid {
		return billing.TierResult{Matched: false, Reason: strings.Join(problems, "; ")}
	}
	return cfg.Resolve(buildOrder(sample))
}

// ValidateTierConfig re-exports edit-time tier validation for the API layer.
func (s *DiagnosticService) ValidateTierConfig(cfg *billing.TierConfig) (bool, []string) {
	return billing.ValidateTierConfig(cfg)
}
