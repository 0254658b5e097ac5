package billing

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mult(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func standardTiers() *TierConfig {
	return &TierConfig{
		Ranges: []TierRange{
			{Min: 1, Max: 3, Multiplier: mult(1.0)},
			{Min: 4, Max: 6, Multiplier: mult(2.0)},
			{Min: 7, Max: 10, Multiplier: mult(3.0)},
		},
		ExcludedSKUs: []string{"SKU-3"},
	}
}

func orderWithLines(lines map[string]SKULine) *Order {
	return &Order{Lines: lines}
}

func TestTierConfig_Resolve(t *testing.T) {
	cfg := standardTiers()

	t.Run("excluded SKU does not count", func(t *testing.T) {
		order := orderWithLines(map[string]SKULine{
			"SKU-1": {Cases: 2},
			"SKU-2": {Cases: 3},
			"SKU-3": {Cases: 1}, // excluded
		})
		result := cfg.Resolve(order)
		require.True(t, result.Matched)
		assert.Equal(t, int64(5), result.TotalCases)
		assert.True(t, mult(2.0).Equal(result.Multiplier))
	})

	t.Run("outside all tiers is a clean non-match", func(t *testing.T) {
		order := orderWithLines(map[string]SKULine{
			"SKU-1": {Cases: 20},
			"SKU-2": {Cases: 5},
		})
		result := cfg.Resolve(order)
		assert.False(t, result.Matched)
		assert.Equal(t, int64(25), result.TotalCases)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("no lines yields zero cases", func(t *testing.T) {
		result := cfg.Resolve(orderWithLines(nil))
		assert.False(t, result.Matched)
		assert.Equal(t, int64(0), result.TotalCases)
	})

	t.Run("range order does not matter", func(t *testing.T) {
		shuffled := &TierConfig{Ranges: []TierRange{
			{Min: 7, Max: 10, Multiplier: mult(3.0)},
			{Min: 1, Max: 3, Multiplier: mult(1.0)},
			{Min: 4, Max: 6, Multiplier: mult(2.0)},
		}}
		order := orderWithLines(map[string]SKULine{"SKU-1": {Cases: 5}})
		result := shuffled.Resolve(order)
		require.True(t, result.Matched)
		assert.True(t, mult(2.0).Equal(result.Multiplier))
	})

	t.Run("resolve is idempotent", func(t *testing.T) {
		order := orderWithLines(map[string]SKULine{"SKU-1": {Cases: 5}})
		first := cfg.Resolve(order)
		second := cfg.Resolve(order)
		assert.Equal(t, first, second)
	})
}

func TestTierConfig_ExclusionNormalization(t *testing.T) {
	// "SKU-1", "sku1" and "SKU 1" are the same exclusion key.
	spellings := []string{"SKU-1", "sku1", "SKU 1"}
	for _, excluded := range spellings {
		cfg := &TierConfig{
			Ranges:       []TierRange{{Min: 0, Max: 100, Multiplier: mult(1.0)}},
			ExcludedSKUs: []string{excluded},
		}
		for _, lineKey := range spellings {
			order := orderWithLines(map[string]SKULine{lineKey: {Cases: 9}})
			result := cfg.Resolve(order)
			assert.Equal(t, int64(0), result.TotalCases,
				"exclusion %q should cover line key %q", excluded, lineKey)
		}
	}
}

func TestTierConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TierConfig
		wantErr string
	}{
		{
			name:    "empty ranges rejected",
			cfg:     TierConfig{},
			wantErr: "at least one range",
		},
		{
			name: "min greater than max cites both values",
			cfg: TierConfig{Ranges: []TierRange{
				{Min: 5, Max: 3, Multiplier: mult(1.0)},
			}},
			wantErr: "min 5 is greater than max 3",
		},
		{
			name: "negative bound rejected",
			cfg: TierConfig{Ranges: []TierRange{
				{Min: -1, Max: 3, Multiplier: mult(1.0)},
			}},
			wantErr: "non-negative",
		},
		{
			name: "negative multiplier rejected",
			cfg: TierConfig{Ranges: []TierRange{
				{Min: 0, Max: 3, Multiplier: mult(-1.0)},
			}},
			wantErr: "multiplier must be non-negative",
		},
		{
			name: "overlapping ranges rejected",
			cfg: TierConfig{Ranges: []TierRange{
				{Min: 1, Max: 5, Multiplier: mult(1.0)},
				{Min: 5, Max: 10, Multiplier: mult(2.0)},
			}},
			wantErr: "overlap",
		},
		{
			name: "gapped ranges rejected",
			cfg: TierConfig{Ranges: []TierRange{
				{Min: 1, Max: 3, Multiplier: mult(1.0)},
				{Min: 5, Max: 10, Multiplier: mult(2.0)},
			}},
			wantErr: "gap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.cfg.Validate()
			require.NotEmpty(t, problems)
			assert.Contains(t, strings.Join(problems, "; "), tt.wantErr)
		})
	}

	t.Run("valid config passes", func(t *testing.T) {
		valid, problems := ValidateTierConfig(standardTiers())
		assert.True(t, valid)
		assert.Empty(t, problems)
	})

	t.Run("nil config rejected", func(t *testing.T) {
		valid, problems := ValidateTierConfig(nil)
		assert.False(t, valid)
		assert.NotEmpty(t, problems)
	})
}

// Randomly generated contiguous configs always validate; mutating one range
// to overlap or gap must be rejected.
func TestTierConfig_ContiguityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		cfg := randomContiguousConfig(rng)
		require.Empty(t, cfg.Validate(), "random contiguous config should validate: %+v", cfg.Ranges)

		if len(cfg.Ranges) < 2 {
			continue
		}
		idx := 1 + rng.Intn(len(cfg.Ranges)-1)

		overlapped := cloneConfig(cfg)
		overlapped.Ranges[idx].Min = overlapped.Ranges[idx-1].Max
		assert.NotEmpty(t, overlapped.Validate(), "overlap mutation must be rejected")

		gapped := cloneConfig(cfg)
		gapped.Ranges[idx].Min = gapped.Ranges[idx-1].Max + 2
		if gapped.Ranges[idx].Min <= gapped.Ranges[idx].Max {
			assert.NotEmpty(t, gapped.Validate(), "gap mutation must be rejected")
		}
	}
}

func randomContiguousConfig(rng *rand.Rand) *TierConfig {
	count := 1 + rng.Intn(5)
	cfg := &TierConfig{}
	min := int64(rng.Intn(3))
	for i := 0; i < count; i++ {
		max := min + int64(rng.Intn(10))
		cfg.Ranges = append(cfg.Ranges, TierRange{
			Min:        min,
			Max:        max,
			Multiplier: decimal.NewFromInt(int64(1 + rng.Intn(4))),
		})
		min = max + 1
	}
	return cfg
}

func cloneConfig(c *TierConfig) *TierConfig {
	out := &TierConfig{Ranges: make([]TierRange, len(c.Ranges))}
	copy(out.Ranges, c.Ranges)
	return out
}

func TestParseTierConfig(t *testing.T) {
	t.Run("well-formed config parses", func(t *testing.T) {
		raw := []byte(`{
			"ranges": [
				{"min": 1, "max": 3, "multiplier": 1.0},
				{"min": 4, "max": 6, "multiplier": 2.5}
			],
			"excluded_skus": ["SKU-3"]
		}`)
		cfg, err := ParseTierConfig(raw)
		require.NoError(t, err)
		require.Len(t, cfg.Ranges, 2)
		assert.Equal(t, int64(4), cfg.Ranges[1].Min)
		assert.True(t, mult(2.5).Equal(cfg.Ranges[1].Multiplier))
		assert.Equal(t, []string{"SKU-3"}, cfg.ExcludedSKUs)
	})

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"not JSON", `{ranges}`, "not valid JSON"},
		{"missing ranges", `{}`, "at least one range"},
		{"string bound rejected", `{"ranges":[{"min":"1","max":3,"multiplier":1}]}`, `min must be a bare number, got "1"`},
		{"string multiplier rejected", `{"ranges":[{"min":1,"max":3,"multiplier":"1.5"}]}`, `multiplier must be a bare number, got "1.5"`},
		{"fractional bound rejected", `{"ranges":[{"min":1.5,"max":3,"multiplier":1}]}`, "not an integer"},
		{"missing multiplier", `{"ranges":[{"min":1,"max":3}]}`, "multiplier must be a bare number, got nothing"},
		{"delimited exclusion string rejected", `{"ranges":[{"min":1,"max":3,"multiplier":1}],"excluded_skus":"SKU-1;SKU-2"}`, "list of strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTierConfig([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
