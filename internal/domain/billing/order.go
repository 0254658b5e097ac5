package billing

import (
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SKULine holds the quantities of one SKU on an order.
type SKULine struct {
	Cases int64 `json:"cases"`
	Picks int64 `json:"picks"`
}

// Order is the read-only input to a billing run. Scalar attributes are
// addressable by field name for rule evaluation; the SKU line mapping backs
// the membership operators and tier resolution.
type Order struct {
	shared.BaseEntity
	CustomerID    uuid.UUID
	OrderNumber   string
	OrderDate     time.Time
	Status        string
	ShipToCountry string
	Weight        decimal.Decimal
	Volume        decimal.Decimal
	Lines         map[string]SKULine
	// Attributes carries customer-specific extra fields addressable by rules
	// without a schema change.
	Attributes map[string]any
}

// skuFieldNames are the field spellings that address the SKU-quantity mapping.
var skuFieldNames = map[string]struct{}{
	"sku":            {},
	"skus":           {},
	"sku_quantities": {},
	"lines":          {},
}

// Field resolves a scalar attribute by name. Built-in fields take precedence
// over ad-hoc attributes. Missing fields report ok=false; callers treat that
// as an absent value, not an error.
func (o *Order) Field(name string) (any, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "order_number":
		return o.OrderNumber, true
	case "order_date":
		return o.OrderDate.Format("2006-01-02"), true
	case "status":
		return o.Status, true
	case "ship_to_country":
		return o.ShipToCountry, true
	case "weight":
		return o.Weight, true
	case "volume":
		return o.Volume, true
	case "total_cases":
		return decimal.NewFromInt(o.TotalCases(nil)), true
	case "total_picks":
		return decimal.NewFromInt(o.TotalPicks()), true
	}
	v, ok := o.Attributes[name]
	return v, ok
}

// SKUKeys implements rules.Subject. It returns the order's SKU identifiers
// when name addresses the SKU-quantity mapping.
func (o *Order) SKUKeys(name string) ([]string, bool) {
	if _, ok := skuFieldNames[strings.ToLower(strings.TrimSpace(name))]; !ok {
		return nil, false
	}
	keys := make([]string, 0, len(o.Lines))
	for sku := range o.Lines {
		keys = append(keys, sku)
	}
	return keys, true
}

// TotalCases sums case quantities over all SKU lines whose normalized key is
// not in excluded. A nil or empty map excludes nothing. Missing line data
// contributes zero.
func (o *Order) TotalCases(excluded map[string]struct{}) int64 {
	var total int64
	for sku, line := range o.Lines {
		if _, skip := excluded[NormalizeSKU(sku)]; skip {
			continue
		}
		if line.Cases > 0 {
			total += line.Cases
		}
	}
	return total
}

// TotalPicks sums pick quantities over all SKU lines.
func (o *Order) TotalPicks() int64 {
	var total int64
	for _, line := range o.Lines {
		if line.Picks > 0 {
			total += line.Picks
		}
	}
	return total
}

// CasesOf returns the case quantity of one SKU, matched by normalized key.
func (o *Order) CasesOf(sku string) int64 {
	want := NormalizeSKU(sku)
	for key, line := range o.Lines {
		if NormalizeSKU(key) == want {
			return line.Cases
		}
	}
	return 0
}

// NormalizeSKU upper-cases a SKU identifier and strips hyphens and spaces so
// that "SKU-1", "sku1" and "SKU 1" compare equal.
func NormalizeSKU(sku string) string {
	s := strings.ToUpper(strings.TrimSpace(sku))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
