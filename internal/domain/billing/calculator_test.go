package billing

import (
	"testing"

	"github.com/erp/billing/internal/domain/rules"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchedGroup() rules.Result {
	return rules.Result{Matched: true}
}

func serviceWith(unitPrice float64, adv *AdvancedRule) *CustomerService {
	return &CustomerService{
		CustomerID:   uuid.New(),
		ServiceID:    uuid.New(),
		ServiceName:  "Handling",
		UnitPrice:    decimal.NewFromFloat(unitPrice),
		AdvancedRule: adv,
	}
}

func caseTierRule(ranges []TierRange, excluded ...string) *AdvancedRule {
	return &AdvancedRule{
		Calculations: []Calculation{{Type: CalcCaseBasedTier}},
		TierConfig:   &TierConfig{Ranges: ranges, ExcludedSKUs: excluded},
	}
}

func TestCalculate_CaseBasedTierScenarios(t *testing.T) {
	baseRanges := []TierRange{
		{Min: 1, Max: 3, Multiplier: mult(1.0)},
		{Min: 4, Max: 6, Multiplier: mult(2.0)},
		{Min: 7, Max: 10, Multiplier: mult(3.0)},
	}

	t.Run("five cases after exclusion doubles the base", func(t *testing.T) {
		svc := serviceWith(100, caseTierRule(baseRanges, "SKU-3"))
		order := orderWithLines(map[string]SKULine{
			"SKU-1": {Cases: 2},
			"SKU-2": {Cases: 3},
			"SKU-3": {Cases: 1},
		})
		result := Calculate(svc, matchedGroup(), order)
		require.True(t, result.Applied)
		assert.True(t, decimal.NewFromInt(200).Equal(result.Final), "got %s", result.Final)
		assert.True(t, decimal.NewFromInt(100).Equal(result.Adjustment))
	})

	t.Run("fifteen cases triples the base on an extended scheme", func(t *testing.T) {
		extended := append(append([]TierRange{}, baseRanges...), TierRange{Min: 11, Max: 15, Multiplier: mult(3.0)})
		svc := serviceWith(100, caseTierRule(extended))
		order := orderWithLines(map[string]SKULine{
			"SKU-1": {Cases: 5},
			"SKU-2": {Cases: 10},
		})
		result := Calculate(svc, matchedGroup(), order)
		require.True(t, result.Applied)
		assert.True(t, decimal.NewFromInt(300).Equal(result.Final), "got %s", result.Final)
	})

	t.Run("outside all tiers leaves the base unchanged", func(t *testing.T) {
		svc := serviceWith(100, caseTierRule(baseRanges))
		order := orderWithLines(map[string]SKULine{
			"SKU-1": {Cases: 20},
			"SKU-2": {Cases: 5},
		})
		result := Calculate(svc, matchedGroup(), order)
		require.True(t, result.Applied)
		assert.True(t, decimal.NewFromInt(100).Equal(result.Final), "got %s", result.Final)
		assert.True(t, result.Adjustment.IsZero())
	})
}

func TestCalculate_FlatFeeAndPercentage(t *testing.T) {
	t.Run("flat fee adds to base", func(t *testing.T) {
		svc := serviceWith(100, &AdvancedRule{
			Calculations: []Calculation{{Type: CalcFlatFee, Value: decimal.NewFromInt(25)}},
		})
		result := Calculate(svc, matchedGroup(), &Order{})
		assert.True(t, decimal.NewFromInt(125).Equal(result.Final))
	})

	t.Run("percentage scales base", func(t *testing.T) {
		svc := serviceWith(100, &AdvancedRule{
			Calculations: []Calculation{{Type: CalcPercentage, Value: decimal.NewFromInt(10)}},
		})
		result := Calculate(svc, matchedGroup(), &Order{})
		assert.True(t, decimal.NewFromInt(110).Equal(result.Final))
	})

	t.Run("calculations compound in order", func(t *testing.T) {
		svc := serviceWith(100, &AdvancedRule{
			Calculations: []Calculation{
				{Type: CalcFlatFee, Value: decimal.NewFromInt(100)},
				{Type: CalcPercentage, Value: decimal.NewFromInt(50)},
			},
		})
		// (100 + 100) * 1.5 = 300
		result := Calculate(svc, matchedGroup(), &Order{})
		assert.True(t, decimal.NewFromInt(300).Equal(result.Final))
	})
}

func TestCalculate_PerUnitFamily(t *testing.T) {
	order := &Order{
		Weight: decimal.NewFromFloat(10.5),
		Volume: decimal.NewFromInt(3),
		Lines: map[string]SKULine{
			"SKU-1": {Cases: 4},
			"SKU-2": {Cases: 2},
		},
	}

	tests := []struct {
		name     string
		calcType CalculationType
		value    float64
		expected float64
	}{
		{"per_unit bills total cases", CalcPerUnit, 2, 100 + 6*2},
		{"weight_based bills order weight", CalcWeightBased, 3, 100 + 10.5*3},
		{"volume_based bills order volume", CalcVolumeBased, 5, 100 + 3*5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := serviceWith(100, &AdvancedRule{
				Calculations: []Calculation{{Type: tt.calcType, Value: decimal.NewFromFloat(tt.value)}},
			})
			result := Calculate(svc, matchedGroup(), order)
			assert.True(t, decimal.NewFromFloat(tt.expected).Equal(result.Final),
				"expected %v got %s", tt.expected, result.Final)
		})
	}

	t.Run("product_specific bills the named SKU", func(t *testing.T) {
		svc := serviceWith(100, &AdvancedRule{
			Rule:         rules.Rule{Field: "skus", Operator: rules.OpContains, Value: "SKU-1"},
			Calculations: []Calculation{{Type: CalcProductSpecific, Value: decimal.NewFromInt(5)}},
		})
		result := Calculate(svc, matchedGroup(), order)
		// 100 + 4 cases of SKU-1 * 5
		assert.True(t, decimal.NewFromInt(120).Equal(result.Final), "got %s", result.Final)
	})
}

func TestCalculate_TieredPercentage(t *testing.T) {
	svc := serviceWith(100, &AdvancedRule{
		Calculations: []Calculation{{Type: CalcTieredPercentage, Value: decimal.NewFromInt(10)}},
		TierConfig: &TierConfig{Ranges: []TierRange{
			{Min: 0, Max: 10, Multiplier: mult(2.0)},
		}},
	})
	order := orderWithLines(map[string]SKULine{"SKU-1": {Cases: 5}})
	// 100 * (1 + 10*2/100) = 120
	result := Calculate(svc, matchedGroup(), order)
	assert.True(t, decimal.NewFromInt(120).Equal(result.Final), "got %s", result.Final)
}

func TestCalculate_PassThrough(t *testing.T) {
	t.Run("group miss passes base through unapplied", func(t *testing.T) {
		svc := serviceWith(100, &AdvancedRule{
			Calculations: []Calculation{{Type: CalcFlatFee, Value: decimal.NewFromInt(25)}},
		})
		miss := rules.Result{Matched: false, Reason: "no match"}
		result := Calculate(svc, miss, &Order{})
		assert.False(t, result.Applied)
		assert.True(t, decimal.NewFromInt(100).Equal(result.Final))
		assert.True(t, result.Adjustment.IsZero())
		assert.Equal(t, "no match", result.Reason)
	})

	t.Run("no calculations passes base through", func(t *testing.T) {
		svc := serviceWith(100, nil)
		result := Calculate(svc, matchedGroup(), &Order{})
		assert.False(t, result.Applied)
		assert.True(t, decimal.NewFromInt(100).Equal(result.Final))
	})

	t.Run("unknown calculation type degrades with reason", func(t *testing.T) {
		svc := serviceWith(100, &AdvancedRule{
			Calculations: []Calculation{{Type: "teleportation_fee", Value: decimal.NewFromInt(9)}},
		})
		result := Calculate(svc, matchedGroup(), &Order{})
		assert.True(t, result.Applied)
		assert.True(t, decimal.NewFromInt(100).Equal(result.Final))
		assert.Contains(t, result.Reason, "unknown calculation type")
	})
}
