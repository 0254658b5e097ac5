package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/rules"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory collaborators in place of the persistence layer.

type fakeOrderReader struct {
	orders []*billing.Order
	err    error
}

func (f *fakeOrderReader) ListByCustomerAndDateRange(_ context.Context, customerID uuid.UUID, start, end time.Time) ([]*billing.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*billing.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID && !o.OrderDate.Before(start) && !o.OrderDate.After(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeServiceReader struct {
	services []*billing.CustomerService
}

func (f *fakeServiceReader) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]*billing.CustomerService, error) {
	var out []*billing.CustomerService
	for _, s := range f.services {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeReportRepo struct {
	saved []*billing.BillingReport
}

func (f *fakeReportRepo) Save(_ context.Context, r *billing.BillingReport) error {
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeReportRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.BillingReport, error) {
	for _, r := range f.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

type fakeCustomerLister struct {
	ids []uuid.UUID
}

func (f *fakeCustomerLister) ListCustomerIDs(_ context.Context) ([]uuid.UUID, error) {
	return f.ids, nil
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func newOrder(customerID uuid.UUID, d int, lines map[string]billing.SKULine) *billing.Order {
	o := &billing.Order{
		CustomerID: customerID,
		OrderDate:  day(d),
		Lines:      lines,
	}
	o.ID = uuid.New()
	return o
}

func tieredHandlingService(customerID uuid.UUID, unitPrice float64) *billing.CustomerService {
	return &billing.CustomerService{
		CustomerID:  customerID,
		ServiceID:   uuid.New(),
		ServiceName: "Case Handling",
		UnitPrice:   decimal.NewFromFloat(unitPrice),
		AdvancedRule: &billing.AdvancedRule{
			Calculations: []billing.Calculation{{Type: billing.CalcCaseBasedTier}},
			TierConfig: &billing.TierConfig{
				Ranges: []billing.TierRange{
					{Min: 1, Max: 3, Multiplier: decimal.NewFromFloat(1.0)},
					{Min: 4, Max: 6, Multiplier: decimal.NewFromFloat(2.0)},
					{Min: 7, Max: 10, Multiplier: decimal.NewFromFloat(3.0)},
				},
				ExcludedSKUs: []string{"SKU-3"},
			},
		},
	}
}

func TestReportService_GenerateReport(t *testing.T) {
	customerID := uuid.New()
	orders := &fakeOrderReader{orders: []*billing.Order{
		newOrder(customerID, 5, map[string]billing.SKULine{
			"SKU-1": {Cases: 2}, "SKU-2": {Cases: 3}, "SKU-3": {Cases: 1},
		}),
		newOrder(customerID, 20, map[string]billing.SKULine{
			"SKU-1": {Cases: 2},
		}),
		// Outside the range, must not be billed.
		newOrder(customerID, 5, map[string]billing.SKULine{"SKU-1": {Cases: 9}}),
	}}
	orders.orders[2].OrderDate = day(5).AddDate(0, 2, 0)

	svc := tieredHandlingService(customerID, 100)
	repo := &fakeReportRepo{}
	service := NewReportService(orders, &fakeServiceReader{services: []*billing.CustomerService{svc}}, repo, nil, ChargeBaseOnMiss, nil)

	report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
	require.NoError(t, err)

	// Order 1: 5 cases after exclusion -> x2 -> 200. Order 2: 2 cases -> x1 -> 100.
	assert.True(t, decimal.NewFromInt(300).Equal(report.TotalAmount), "got %s", report.TotalAmount)
	require.Len(t, report.OrderCosts, 2)
	require.Len(t, report.ServiceTotals, 1)
	total := report.ServiceTotals[svc.ServiceID]
	assert.Equal(t, int64(2), total.OrderCount)
	assert.True(t, decimal.NewFromInt(300).Equal(total.Amount))

	require.Len(t, repo.saved, 1, "report must be persisted")
}

func TestReportService_Deterministic(t *testing.T) {
	customerID := uuid.New()
	var orderList []*billing.Order
	for i := 1; i <= 10; i++ {
		orderList = append(orderList, newOrder(customerID, i, map[string]billing.SKULine{
			"SKU-1": {Cases: int64(i)},
		}))
	}
	services := []*billing.CustomerService{
		tieredHandlingService(customerID, 33.33),
		tieredHandlingService(customerID, 0.07),
	}

	generate := func() *billing.BillingReport {
		service := NewReportService(
			&fakeOrderReader{orders: orderList},
			&fakeServiceReader{services: services},
			nil, nil, ChargeBaseOnMiss, nil)
		report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
		require.NoError(t, err)
		return report
	}

	first := generate()
	second := generate()

	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestReportService_ChargePolicy(t *testing.T) {
	customerID := uuid.New()
	// Service gated on a rule the order will not satisfy.
	gated := &billing.CustomerService{
		CustomerID:  customerID,
		ServiceID:   uuid.New(),
		ServiceName: "Export Handling",
		UnitPrice:   decimal.NewFromInt(50),
		RuleGroup: &rules.Group{
			Logic: rules.LogicAnd,
			Rules: []rules.Rule{{Field: "ship_to_country", Operator: rules.OpEq, Value: "CA"}},
		},
	}
	order := newOrder(customerID, 5, nil)
	order.ShipToCountry = "US"

	t.Run("charge base on miss", func(t *testing.T) {
		service := NewReportService(
			&fakeOrderReader{orders: []*billing.Order{order}},
			&fakeServiceReader{services: []*billing.CustomerService{gated}},
			nil, nil, ChargeBaseOnMiss, nil)
		report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(50).Equal(report.TotalAmount), "got %s", report.TotalAmount)
	})

	t.Run("suppress on miss", func(t *testing.T) {
		service := NewReportService(
			&fakeOrderReader{orders: []*billing.Order{order}},
			&fakeServiceReader{services: []*billing.CustomerService{gated}},
			nil, nil, SuppressOnMiss, nil)
		report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
		require.NoError(t, err)
		assert.True(t, report.TotalAmount.IsZero(), "got %s", report.TotalAmount)
		assert.Empty(t, report.OrderCosts)
	})
}

func TestReportService_BadRuleDegradesNotAborts(t *testing.T) {
	customerID := uuid.New()
	broken := &billing.CustomerService{
		CustomerID:  customerID,
		ServiceID:   uuid.New(),
		ServiceName: "Broken",
		UnitPrice:   decimal.NewFromInt(10),
		RuleGroup: &rules.Group{
			Logic: "FROBNICATE",
			Rules: []rules.Rule{{Field: "status", Operator: rules.OpEq, Value: "x"}},
		},
	}
	healthy := tieredHandlingService(customerID, 100)
	order := newOrder(customerID, 5, map[string]billing.SKULine{"SKU-1": {Cases: 2}})

	service := NewReportService(
		&fakeOrderReader{orders: []*billing.Order{order}},
		&fakeServiceReader{services: []*billing.CustomerService{broken, healthy}},
		nil, nil, SuppressOnMiss, nil)

	report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
	require.NoError(t, err, "a broken rule must not abort the run")
	// Healthy service still billed: 2 cases -> x1 -> 100.
	assert.True(t, decimal.NewFromInt(100).Equal(report.TotalAmount), "got %s", report.TotalAmount)
}

func TestReportService_DegradedConfigSkippedNotFatal(t *testing.T) {
	customerID := uuid.New()
	// A service whose stored tier document failed validation at load.
	degraded := &billing.CustomerService{
		CustomerID:  customerID,
		ServiceID:   uuid.New(),
		ServiceName: "Degraded Handling",
		UnitPrice:   decimal.NewFromInt(10),
		ConfigError: "range min 5 is greater than max 3",
	}
	healthy := tieredHandlingService(customerID, 100)
	order := newOrder(customerID, 5, map[string]billing.SKULine{"SKU-1": {Cases: 2}})

	service := NewReportService(
		&fakeOrderReader{orders: []*billing.Order{order}},
		&fakeServiceReader{services: []*billing.CustomerService{degraded, healthy}},
		nil, nil, ChargeBaseOnMiss, nil)

	report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
	require.NoError(t, err, "a degraded configuration must not abort the run")
	// Only the healthy service bills; the degraded one never charges, even
	// under the charge-base policy.
	assert.True(t, decimal.NewFromInt(100).Equal(report.TotalAmount), "got %s", report.TotalAmount)
	require.Len(t, report.ServiceTotals, 1)
	assert.NotContains(t, report.ServiceTotals, degraded.ServiceID)
}

func TestReportService_ZeroPriceUnconditionalServiceListed(t *testing.T) {
	customerID := uuid.New()
	free := &billing.CustomerService{
		CustomerID:  customerID,
		ServiceID:   uuid.New(),
		ServiceName: "Included Reporting",
		UnitPrice:   decimal.Zero,
	}
	order := newOrder(customerID, 5, nil)

	service := NewReportService(
		&fakeOrderReader{orders: []*billing.Order{order}},
		&fakeServiceReader{services: []*billing.CustomerService{free}},
		nil, nil, ChargeBaseOnMiss, nil)

	report, err := service.GenerateReport(context.Background(), customerID, day(1), day(30))
	require.NoError(t, err)
	assert.True(t, report.TotalAmount.IsZero())
	require.Contains(t, report.ServiceTotals, free.ServiceID)
	assert.Equal(t, int64(1), report.ServiceTotals[free.ServiceID].OrderCount)
}

func TestBatchService_GenerateAll(t *testing.T) {
	customerA := uuid.New()
	customerB := uuid.New()
	orders := &fakeOrderReader{orders: []*billing.Order{
		newOrder(customerA, 5, map[string]billing.SKULine{"SKU-1": {Cases: 2}}),
		newOrder(customerB, 6, map[string]billing.SKULine{"SKU-1": {Cases: 5}}),
	}}
	services := &fakeServiceReader{services: []*billing.CustomerService{
		tieredHandlingService(customerA, 100),
		tieredHandlingService(customerB, 100),
	}}

	reportSvc := NewReportService(orders, services, nil, nil, ChargeBaseOnMiss, nil)
	batch := NewBatchService(reportSvc, &fakeCustomerLister{ids: []uuid.UUID{customerA, customerB}}, 2, nil)

	results, err := batch.GenerateAll(context.Background(), day(1), day(30))
	require.NoError(t, err)
	require.Len(t, results, 2, "a batch of N customers yields N results")
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotNil(t, r.Report)
	}
}

func TestBatchService_CancellationDiscardsPartialResults(t *testing.T) {
	ids := make([]uuid.UUID, 50)
	for i := range ids {
		ids[i] = uuid.New()
	}
	reportSvc := NewReportService(&fakeOrderReader{}, &fakeServiceReader{}, nil, nil, ChargeBaseOnMiss, nil)
	batch := NewBatchService(reportSvc, &fakeCustomerLister{ids: ids}, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := batch.GenerateAll(ctx, day(1), day(30))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results, "partial batch output must be discarded on cancellation")
}

func TestDiagnosticService(t *testing.T) {
	diag := NewDiagnosticService()
	sample := SampleOrder{
		Fields: map[string]any{"ship_to_country": "US"},
		Lines:  map[string]billing.SKULine{"SKU-1": {Cases: 5}},
	}

	t.Run("condition against sample", func(t *testing.T) {
		result := diag.TestCondition(rules.Rule{Field: "ship_to_country", Operator: rules.OpNe, Value: "CA"}, sample)
		assert.True(t, result.Matched)
	})

	t.Run("group against sample", func(t *testing.T) {
		result := diag.TestGroup(rules.Group{
			Logic: rules.LogicAnd,
			Rules: []rules.Rule{
				{Field: "ship_to_country", Operator: rules.OpEq, Value: "US"},
				{Field: "skus", Operator: rules.OpContains, Value: "SKU-1"},
			},
		}, sample)
		assert.True(t, result.Matched, "reason: %s", result.Reason)
	})

	t.Run("tier resolution against sample", func(t *testing.T) {
		cfg := &billing.TierConfig{Ranges: []billing.TierRange{
			{Min: 1, Max: 10, Multiplier: decimal.NewFromFloat(1.5)},
		}}
		result := diag.ResolveTier(cfg, sample)
		require.True(t, result.Matched)
		assert.Equal(t, int64(5), result.TotalCases)
	})

	t.Run("invalid tier config reports problems", func(t *testing.T) {
		cfg := &billing.TierConfig{Ranges: []billing.TierRange{
			{Min: 5, Max: 3, Multiplier: decimal.NewFromInt(1)},
		}}
		result := diag.ResolveTier(cfg, sample)
		assert.False(t, result.Matched)
		assert.Contains(t, result.Reason, "min 5 is greater than max 3")
	})
}
