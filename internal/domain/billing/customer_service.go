package billing

import (
	"github.com/erp/billing/internal/domain/rules"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerService links a customer to a billable service. UnitPrice is the
// base charge per order; the rule group decides applicability and the
// advanced rule carries cost calculations. Configuration is read-only during
// a billing run.
type CustomerService struct {
	shared.BaseEntity
	CustomerID  uuid.UUID
	ServiceID   uuid.UUID
	ServiceName string
	UnitPrice   decimal.Decimal
	// RuleGroup gates the service per order. A nil group means the service
	// applies unconditionally.
	RuleGroup *rules.Group
	// AdvancedRule holds the cost calculations applied when the group
	// matches. Nil means the base unit price is billed as-is.
	AdvancedRule *AdvancedRule
	// ConfigError carries the validation failure of a stored rule or tier
	// document. A degraded service never matches and never bills; the
	// message holds the offending values for the run log.
	ConfigError string
}

// Degraded reports whether the stored configuration failed validation.
func (s *CustomerService) Degraded() bool {
	return s.ConfigError != ""
}

// AppliesUnconditionally reports whether the service has no gating rules.
// A degraded service is never unconditional: its stored rules may simply
// have failed to load.
func (s *CustomerService) AppliesUnconditionally() bool {
	return s.ConfigError == "" && (s.RuleGroup == nil || len(s.RuleGroup.Rules) == 0)
}

// Evaluate runs the service's rule group against an order. Services without
// rules match every order; a degraded service matches none.
func (s *CustomerService) Evaluate(order *Order) rules.Result {
	if s.Degraded() {
		return rules.Result{Matched: false, Reason: s.ConfigError}
	}
	if s.AppliesUnconditionally() {
		return rules.Result{Matched: true}
	}
	return rules.EvaluateGroup(*s.RuleGroup, order)
}
