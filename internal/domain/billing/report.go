package billing

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceCost is one service's charge on one order.
type ServiceCost struct {
	ServiceID   uuid.UUID
	ServiceName string
	Amount      decimal.Decimal
}

// OrderCost aggregates the service charges of one order.
type OrderCost struct {
	OrderID      uuid.UUID
	TotalAmount  decimal.Decimal
	ServiceCosts []ServiceCost
}

// ServiceTotal accumulates one service across all orders in a report.
type ServiceTotal struct {
	ServiceID   uuid.UUID
	ServiceName string
	Amount      decimal.Decimal
	OrderCount  int64
}

// BillingReport is the output of one billing run for one customer and date
// range. It is built during a single pass and immutable once returned;
// regeneration produces a new report.
type BillingReport struct {
	shared.BaseEntity
	CustomerID    uuid.UUID
	StartDate     time.Time
	EndDate       time.Time
	TotalAmount   decimal.Decimal
	ServiceTotals map[uuid.UUID]*ServiceTotal
	OrderCosts    []OrderCost
}

// NewBillingReport creates an empty report for one generation pass.
func NewBillingReport(customerID uuid.UUID, start, end time.Time) *BillingReport {
	return &BillingReport{
		BaseEntity:    shared.NewBaseEntity(),
		CustomerID:    customerID,
		StartDate:     start,
		EndDate:       end,
		TotalAmount:   decimal.Zero,
		ServiceTotals: make(map[uuid.UUID]*ServiceTotal),
	}
}

// AddOrderCost appends an order's charges and folds them into the report and
// per-service totals. Orders must be added in a stable sequence so repeated
// generations accumulate in the same arithmetic order.
func (r *BillingReport) AddOrderCost(oc OrderCost) {
	r.OrderCosts = append(r.OrderCosts, oc)
	r.TotalAmount = r.TotalAmount.Add(oc.TotalAmount)

	for _, sc := range oc.ServiceCosts {
		total, ok := r.ServiceTotals[sc.ServiceID]
		if !ok {
			total = &ServiceTotal{ServiceID: sc.ServiceID, ServiceName: sc.ServiceName}
			r.ServiceTotals[sc.ServiceID] = total
		}
		total.Amount = total.Amount.Add(sc.Amount)
		total.OrderCount++
	}
}

// SortedServiceTotals returns the per-service totals ordered by service ID.
func (r *BillingReport) SortedServiceTotals() []*ServiceTotal {
	totals := make([]*ServiceTotal, 0, len(r.ServiceTotals))
	for _, t := range r.ServiceTotals {
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].ServiceID.String() < totals[j].ServiceID.String()
	})
	return totals
}

// The wire shape below is an external contract consumed by the report
// export collaborator. Field names and nesting must not change.

type serviceTotalJSON struct {
	Name       string      `json:"name"`
	Amount     json.Number `json:"amount"`
	OrderCount int64       `json:"order_count"`
}

type serviceCostJSON struct {
	ServiceID uuid.UUID   `json:"service_id"`
	Amount    json.Number `json:"amount"`
}

type orderCostJSON struct {
	OrderID     uuid.UUID         `json:"order_id"`
	TotalAmount json.Number       `json:"total_amount"`
	Services    []serviceCostJSON `json:"services"`
}

type billingReportJSON struct {
	CustomerID    uuid.UUID                   `json:"customer_id"`
	StartDate     string                      `json:"start_date"`
	EndDate       string                      `json:"end_date"`
	TotalAmount   json.Number                 `json:"total_amount"`
	ServiceTotals map[string]serviceTotalJSON `json:"service_totals"`
	Orders        []orderCostJSON             `json:"orders"`
}

func jsonAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// MarshalJSON renders the external report shape. Map keys are emitted sorted
// by encoding/json, so identical reports serialize byte-identically.
func (r *BillingReport) MarshalJSON() ([]byte, error) {
	out := billingReportJSON{
		CustomerID:    r.CustomerID,
		StartDate:     r.StartDate.Format("2006-01-02"),
		EndDate:       r.EndDate.Format("2006-01-02"),
		TotalAmount:   jsonAmount(r.TotalAmount),
		ServiceTotals: make(map[string]serviceTotalJSON, len(r.ServiceTotals)),
		Orders:        make([]orderCostJSON, 0, len(r.OrderCosts)),
	}

	for id, t := range r.ServiceTotals {
		out.ServiceTotals[id.String()] = serviceTotalJSON{
			Name:       t.ServiceName,
			Amount:     jsonAmount(t.Amount),
			OrderCount: t.OrderCount,
		}
	}

	for _, oc := range r.OrderCosts {
		services := make([]serviceCostJSON, 0, len(oc.ServiceCosts))
		for _, sc := range oc.ServiceCosts {
			services = append(services, serviceCostJSON{ServiceID: sc.ServiceID, Amount: jsonAmount(sc.Amount)})
		}
		out.Orders = append(out.Orders, orderCostJSON{
			OrderID:     oc.OrderID,
			TotalAmount: jsonAmount(oc.TotalAmount),
			Services:    services,
		})
	}

	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a report from its external shape. Per-order service
// names are not on the wire; they are recovered from the service totals.
func (r *BillingReport) UnmarshalJSON(data []byte) error {
	var in billingReportJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	start, err := time.Parse("2006-01-02", in.StartDate)
	if err != nil {
		return err
	}
	end, err := time.Parse("2006-01-02", in.EndDate)
	if err != nil {
		return err
	}
	total, err := decimal.NewFromString(in.TotalAmount.String())
	if err != nil {
		return err
	}

	r.CustomerID = in.CustomerID
	r.StartDate = start
	r.EndDate = end
	r.TotalAmount = total
	r.ServiceTotals = make(map[uuid.UUID]*ServiceTotal, len(in.ServiceTotals))
	r.OrderCosts = make([]OrderCost, 0, len(in.Orders))

	names := make(map[uuid.UUID]string, len(in.ServiceTotals))
	for key, t := range in.ServiceTotals {
		id, err := uuid.Parse(key)
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(t.Amount.String())
		if err != nil {
			return err
		}
		r.ServiceTotals[id] = &ServiceTotal{
			ServiceID:   id,
			ServiceName: t.Name,
			Amount:      amount,
			OrderCount:  t.OrderCount,
		}
		names[id] = t.Name
	}

	for _, oc := range in.Orders {
		orderTotal, err := decimal.NewFromString(oc.TotalAmount.String())
		if err != nil {
			return err
		}
		costs := make([]ServiceCost, 0, len(oc.Services))
		for _, sc := range oc.Services {
			amount, err := decimal.NewFromString(sc.Amount.String())
			if err != nil {
				return err
			}
			costs = append(costs, ServiceCost{
				ServiceID:   sc.ServiceID,
				ServiceName: names[sc.ServiceID],
				Amount:      amount,
			})
		}
		r.OrderCosts = append(r.OrderCosts, OrderCost{
			OrderID:      oc.OrderID,
			TotalAmount:  orderTotal,
			ServiceCosts: costs,
		})
	}
	return nil
}
