package billing

import (
	"github.com/erp/billing/internal/domain/rules"
	"github.com/shopspring/decimal"
)

// CalculationType selects how a matched rule adjusts the base charge.
type CalculationType string

// Supported calculation types. New types are added by registering a quantity
// source and adjustment in the calculator tables, not by extending a
// conditional chain.
const (
	CalcFlatFee           CalculationType = "flat_fee"
	CalcPercentage        CalculationType = "percentage"
	CalcPerUnit           CalculationType = "per_unit"
	CalcWeightBased       CalculationType = "weight_based"
	CalcVolumeBased       CalculationType = "volume_based"
	CalcTieredPercentage  CalculationType = "tiered_percentage"
	CalcProductSpecific   CalculationType = "product_specific"
	CalcCaseBasedTier     CalculationType = "case_based_tier"
)

// Calculation is one cost instruction on an advanced rule.
type Calculation struct {
	Type  CalculationType `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// AdvancedRule extends a plain condition with cost calculations and an
// optional tiered-pricing configuration.
type AdvancedRule struct {
	rules.Rule
	Calculations []Calculation `json:"calculations"`
	TierConfig   *TierConfig   `json:"tier_config,omitempty"`
}
