package billing

import (
	"fmt"
	"strings"

	"github.com/erp/billing/internal/domain/rules"
	"github.com/shopspring/decimal"
)

// CostResult is the outcome of pricing one service against one order. Final
// is the charge after all calculations; Adjustment is Final minus the base
// unit price. Applied reports whether any calculation ran; when false the
// caller's charge policy decides whether the base price is billed or the
// charge is suppressed entirely.
type CostResult struct {
	Final      decimal.Decimal
	Adjustment decimal.Decimal
	Applied    bool
	Reason     string
}

// adjustFunc applies one calculation to the running amount. The returned
// string is a diagnostic note for degraded applications (bad tier data,
// unknown type) and empty on a clean application.
type adjustFunc func(amount, value decimal.Decimal, svc *CustomerService, order *Order) (decimal.Decimal, string)

// quantitySource derives the billable quantity for per-unit calculation
// types. Missing data yields zero, never an error.
type quantitySource func(svc *CustomerService, order *Order) decimal.Decimal

// quantitySources maps per-unit calculation types to the order quantity they
// bill against. Registering a new type here is the only change needed to
// support it.
var quantitySources = map[CalculationType]quantitySource{
	CalcPerUnit: func(_ *CustomerService, o *Order) decimal.Decimal {
		return decimal.NewFromInt(o.TotalCases(nil))
	},
	CalcWeightBased: func(_ *CustomerService, o *Order) decimal.Decimal {
		return o.Weight
	},
	CalcVolumeBased: func(_ *CustomerService, o *Order) decimal.Decimal {
		return o.Volume
	},
	CalcProductSpecific: func(svc *CustomerService, o *Order) decimal.Decimal {
		// The advanced rule's condition value names the SKU being billed.
		if svc.AdvancedRule == nil {
			return decimal.Zero
		}
		return decimal.NewFromInt(o.CasesOf(svc.AdvancedRule.Value))
	},
}

// adjustTable maps every calculation type to its adjustment. Per-unit types
// share one implementation parameterized by their quantity source.
var adjustTable = map[CalculationType]adjustFunc{
	CalcFlatFee:          adjustFlatFee,
	CalcPercentage:       adjustPercentage,
	CalcPerUnit:          perUnitAdjust(CalcPerUnit),
	CalcWeightBased:      perUnitAdjust(CalcWeightBased),
	CalcVolumeBased:      perUnitAdjust(CalcVolumeBased),
	CalcProductSpecific:  perUnitAdjust(CalcProductSpecific),
	CalcTieredPercentage: adjustTieredPercentage,
	CalcCaseBasedTier:    adjustCaseBasedTier,
}

func adjustFlatFee(amount, value decimal.Decimal, _ *CustomerService, _ *Order) (decimal.Decimal, string) {
	return amount.Add(value), ""
}

func adjustPercentage(amount, value decimal.Decimal, _ *CustomerService, _ *Order) (decimal.Decimal, string) {
	factor := decimal.NewFromInt(1).Add(value.Div(decimal.NewFromInt(100)))
	return amount.Mul(factor), ""
}

func perUnitAdjust(calcType CalculationType) adjustFunc {
	return func(amount, value decimal.Decimal, svc *CustomerService, order *Order) (decimal.Decimal, string) {
		qty := quantitySources[calcType](svc, order)
		return amount.Add(value.Mul(qty)), ""
	}
}

// adjustTieredPercentage applies a percentage scaled by the tier multiplier
// of the matched range. Without a tier config it degrades to a plain
// percentage; without a tier match the multiplier is 1.
func adjustTieredPercentage(amount, value decimal.Decimal, svc *CustomerService, order *Order) (decimal.Decimal, string) {
	rate := value
	if svc.AdvancedRule != nil && svc.AdvancedRule.TierConfig != nil {
		tier := svc.AdvancedRule.TierConfig.Resolve(order)
		rate = value.Mul(tier.Multiplier)
	}
	factor := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
	return amount.Mul(factor), ""
}

// adjustCaseBasedTier multiplies the amount by the matched tier multiplier.
// On non-match the amount passes through unchanged.
func adjustCaseBasedTier(amount, _ decimal.Decimal, svc *CustomerService, order *Order) (decimal.Decimal, string) {
	if svc.AdvancedRule == nil || svc.AdvancedRule.TierConfig == nil {
		return amount, "case_based_tier calculation has no tier config"
	}
	tier := svc.AdvancedRule.TierConfig.Resolve(order)
	if !tier.Matched {
		return amount, tier.Reason
	}
	return amount.Mul(tier.Multiplier), ""
}

// Calculate prices one service against one order given the rule group
// outcome. When the group did not match, or no calculation is configured,
// the base unit price passes through with Applied=false; the aggregator's
// charge policy decides what to bill. All degraded calculations pass the
// amount through and record their reason.
func Calculate(svc *CustomerService, groupResult rules.Result, order *Order) CostResult {
	base := svc.UnitPrice

	if !groupResult.Matched || svc.AdvancedRule == nil || len(svc.AdvancedRule.Calculations) == 0 {
		return CostResult{
			Final:      base,
			Adjustment: decimal.Zero,
			Applied:    false,
			Reason:     groupResult.Reason,
		}
	}

	amount := base
	var notes []string
	for _, calc := range svc.AdvancedRule.Calculations {
		fn, ok := adjustTable[CalculationType(strings.ToLower(string(calc.Type)))]
		if !ok {
			notes = append(notes, fmt.Sprintf("unknown calculation type %q", calc.Type))
			continue
		}
		next, note := fn(amount, calc.Value, svc, order)
		if note != "" {
			notes = append(notes, note)
		}
		amount = next
	}

	return CostResult{
		Final:      amount,
		Adjustment: amount.Sub(base),
		Applied:    true,
		Reason:     strings.Join(notes, "; "),
	}
}
