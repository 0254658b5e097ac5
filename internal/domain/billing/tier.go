package billing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TierRange maps an inclusive case-count interval to a price multiplier.
type TierRange struct {
	Min        int64           `json:"min"`
	Max        int64           `json:"max"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// MarshalJSON emits the multiplier as a bare number so a serialized range
// round-trips through ParseTierConfig.
func (r TierRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min        int64       `json:"min"`
		Max        int64       `json:"max"`
		Multiplier json.Number `json:"multiplier"`
	}{
		Min:        r.Min,
		Max:        r.Max,
		Multiplier: json.Number(r.Multiplier.String()),
	})
}

// TierConfig is the quantity-tiered pricing configuration of an advanced
// rule. When sorted by Min, ranges must be non-overlapping and contiguous.
// Excluded SKUs are matched by normalized key (case, hyphen and space
// insensitive) and do not count toward the tier case total.
type TierConfig struct {
	Ranges       []TierRange `json:"ranges"`
	ExcludedSKUs []string    `json:"excluded_skus,omitempty"`
}

// TierResult is the outcome of resolving an order against a tier config.
type TierResult struct {
	Matched    bool
	Multiplier decimal.Decimal
	TotalCases int64
	Reason     string
}

// tierConfigJSON mirrors the loosely-typed stored shape. Numeric fields stay
// raw until strictNumber checks them, so string-typed bounds are rejected
// rather than coerced.
type tierConfigJSON struct {
	Ranges       []tierRangeJSON `json:"ranges"`
	ExcludedSKUs json.RawMessage `json:"excluded_skus"`
}

type tierRangeJSON struct {
	Min        json.RawMessage `json:"min"`
	Max        json.RawMessage `json:"max"`
	Multiplier json.RawMessage `json:"multiplier"`
}

// strictNumber decodes a JSON value as a bare number. encoding/json would
// happily coerce a quoted numeric string into json.Number, so leading quotes
// are rejected here before decoding.
func strictNumber(raw json.RawMessage) (json.Number, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s[0] == '"' {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n, true
}

// ParseTierConfig parses and validates a stored tier configuration. It is the
// single boundary where loose JSON becomes a typed config; downstream code
// never re-validates. All shape and range problems are reported together in
// one CONFIGURATION_ERROR.
func ParseTierConfig(raw []byte) (*TierConfig, error) {
	var loose tierConfigJSON
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, shared.NewDomainError(shared.ErrConfiguration.Code,
			fmt.Sprintf("tier config is not valid JSON: %v", err))
	}

	var problems []string
	cfg := &TierConfig{}

	if len(loose.ExcludedSKUs) > 0 {
		var skus []string
		if err := json.Unmarshal(loose.ExcludedSKUs, &skus); err != nil {
			problems = append(problems, fmt.Sprintf(
				"excluded_skus must be a list of strings, got %s", strings.TrimSpace(string(loose.ExcludedSKUs))))
		} else {
			cfg.ExcludedSKUs = skus
		}
	}

	for i, r := range loose.Ranges {
		tr, errs := parseTierRange(i, r)
		problems = append(problems, errs...)
		cfg.Ranges = append(cfg.Ranges, tr)
	}

	if len(problems) == 0 {
		problems = cfg.Validate()
	}
	if len(problems) > 0 {
		return nil, shared.NewDomainError(shared.ErrConfiguration.Code, strings.Join(problems, "; "))
	}
	return cfg, nil
}

func parseTierRange(idx int, r tierRangeJSON) (TierRange, []string) {
	var out TierRange
	var problems []string

	readInt := func(name string, raw json.RawMessage) int64 {
		n, ok := strictNumber(raw)
		if !ok {
			problems = append(problems, fmt.Sprintf(
				"range %d: %s must be a bare number, got %s", idx, name, describeRaw(raw)))
			return 0
		}
		v, err := n.Int64()
		if err != nil {
			problems = append(problems, fmt.Sprintf("range %d: %s %q is not an integer", idx, name, n.String()))
			return 0
		}
		return v
	}

	out.Min = readInt("min", r.Min)
	out.Max = readInt("max", r.Max)

	if mult, ok := strictNumber(r.Multiplier); !ok {
		problems = append(problems, fmt.Sprintf(
			"range %d: multiplier must be a bare number, got %s", idx, describeRaw(r.Multiplier)))
	} else if parsed, err := decimal.NewFromString(mult.String()); err != nil {
		problems = append(problems, fmt.Sprintf("range %d: multiplier %q is not numeric", idx, mult.String()))
	} else {
		out.Multiplier = parsed
	}
	return out, problems
}

func describeRaw(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "nothing"
	}
	return s
}

// Validate checks the typed config against the tier invariants and returns
// every violation found. A nil return means the config is usable.
func (c *TierConfig) Validate() []string {
	var problems []string

	if len(c.Ranges) == 0 {
		return []string{"tier config must define at least one range"}
	}

	for _, r := range c.Ranges {
		if r.Min < 0 || r.Max < 0 {
			problems = append(problems, fmt.Sprintf("range bounds must be non-negative, got min %d max %d", r.Min, r.Max))
		}
		if r.Multiplier.IsNegative() {
			problems = append(problems, fmt.Sprintf("multiplier must be non-negative, got %s", r.Multiplier))
		}
		if r.Min > r.Max {
			problems = append(problems, fmt.Sprintf("range min %d is greater than max %d", r.Min, r.Max))
		}
	}
	if len(problems) > 0 {
		return problems
	}

	sorted := make([]TierRange, len(c.Ranges))
	copy(sorted, c.Ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		switch {
		case cur.Min <= prev.Max:
			problems = append(problems, fmt.Sprintf(
				"ranges [%d, %d] and [%d, %d] overlap", prev.Min, prev.Max, cur.Min, cur.Max))
		case cur.Min != prev.Max+1:
			problems = append(problems, fmt.Sprintf(
				"gap between ranges [%d, %d] and [%d, %d]: next min must be %d", prev.Min, prev.Max, cur.Min, cur.Max, prev.Max+1))
		}
	}
	return problems
}

// ValidateTierConfig is the edit-time entry point used by the configuration
// API to give immediate feedback.
func ValidateTierConfig(c *TierConfig) (bool, []string) {
	if c == nil {
		return false, []string{"tier config is required"}
	}
	problems := c.Validate()
	return len(problems) == 0, problems
}

// normalizedExclusions returns the excluded SKU set keyed by normalized SKU.
func (c *TierConfig) normalizedExclusions() map[string]struct{} {
	if len(c.ExcludedSKUs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.ExcludedSKUs))
	for _, sku := range c.ExcludedSKUs {
		set[NormalizeSKU(sku)] = struct{}{}
	}
	return set
}

// Resolve computes the order's non-excluded case total and finds the range
// containing it. Ranges are scanned as stored; configs are validated as
// non-overlapping at load time so the first hit wins regardless of order.
// A case total outside every range is a clean non-match, not an error.
func (c *TierConfig) Resolve(order *Order) TierResult {
	totalCases := order.TotalCases(c.normalizedExclusions())

	for _, r := range c.Ranges {
		if totalCases >= r.Min && totalCases <= r.Max {
			return TierResult{
				Matched:    true,
				Multiplier: r.Multiplier,
				TotalCases: totalCases,
			}
		}
	}
	return TierResult{
		Matched:    false,
		Multiplier: decimal.NewFromInt(1),
		TotalCases: totalCases,
		Reason:     fmt.Sprintf("%d cases falls outside all configured tiers", totalCases),
	}
}
