package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChargePolicy decides what a service bills on an order its rules did not
// match. The engine reports both the base price and the adjustment; the
// policy choice is explicit here rather than implicit in the calculator.
type ChargePolicy string

const (
	// ChargeBaseOnMiss bills the base unit price when no rule matched.
	ChargeBaseOnMiss ChargePolicy = "charge_base"
	// SuppressOnMiss bills nothing when no rule matched.
	SuppressOnMiss ChargePolicy = "suppress"
)

// ConfigSnapshotCache caches a customer's validated service configuration
// between runs. Implementations must return an immutable snapshot.
type ConfigSnapshotCache interface {
	Get(ctx context.Context, customerID uuid.UUID) ([]*billing.CustomerService, bool)
	Set(ctx context.Context, customerID uuid.UUID, services []*billing.CustomerService)
	Invalidate(ctx context.Context, customerID uuid.UUID)
}

// ReportService generates billing reports by evaluating each customer
// service's rules against every order in a date range. Evaluation is pure
// and in-memory: orders and configuration are fetched once up front, and
// nothing below this service performs I/O mid-computation.
type ReportService struct {
	orders    billing.OrderReader
	services  billing.ServiceConfigReader
	reports   billing.ReportRepository
	snapshots ConfigSnapshotCache
	policy    ChargePolicy
	logger    *zap.Logger
}

// NewReportService creates a report service. snapshots may be nil to disable
// configuration caching; logger may be nil for a no-op logger.
func NewReportService(
	orders billing.OrderReader,
	services billing.ServiceConfigReader,
	reports billing.ReportRepository,
	snapshots ConfigSnapshotCache,
	policy ChargePolicy,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = ChargeBaseOnMiss
	}
	return &ReportService{
		orders:    orders,
		services:  services,
		reports:   reports,
		snapshots: snapshots,
		policy:    policy,
		logger:    logger,
	}
}

// GenerateReport builds a fresh report for one customer over an inclusive
// date range and persists it. Repeated calls over an identical snapshot
// produce identical totals: orders are accumulated sorted by ID and services
// evaluated in a stable order, so rounding applies in the same sequence
// every run. Rule-level failures degrade to logged non-matches and never
// abort the run.
func (s *ReportService) GenerateReport(ctx context.Context, customerID uuid.UUID, start, end time.Time) (*billing.BillingReport, error) {
	services, err := s.loadSnapshot(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("loading service configuration: %w", err)
	}

	orders, err := s.orders.ListByCustomerAndDateRange(ctx, customerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading orders: %w", err)
	}

	report := s.buildReport(customerID, start, end, orders, services)

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("persisting report: %w", err)
		}
	}
	return report, nil
}

// buildReport is the pure aggregation pass over an in-memory snapshot.
func (s *ReportService) buildReport(
	customerID uuid.UUID,
	start, end time.Time,
	orders []*billing.Order,
	services []*billing.CustomerService,
) *billing.BillingReport {
	report := billing.NewBillingReport(customerID, start, end)

	sorted := make([]*billing.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	for _, order := range sorted {
		oc := s.costOrder(order, services)
		if len(oc.ServiceCosts) == 0 {
			continue
		}
		report.AddOrderCost(oc)
	}
	return report
}

// costOrder prices every configured service against one order.
func (s *ReportService) costOrder(order *billing.Order, services []*billing.CustomerService) billing.OrderCost {
	oc := billing.OrderCost{OrderID: order.ID}

	for _, svc := range services {
		if svc.Degraded() {
			s.logger.Warn("skipping service with invalid stored configuration",
				zap.String("service_id", svc.ServiceID.String()),
				zap.String("service_name", svc.ServiceName),
				zap.String("config_error", svc.ConfigError),
			)
			continue
		}

		groupResult := svc.Evaluate(order)
		cost := billing.Calculate(svc, groupResult, order)

		if cost.Reason != "" {
			s.logger.Debug("service evaluation degraded or unmatched",
				zap.String("order_id", order.ID.String()),
				zap.String("service_id", svc.ServiceID.String()),
				zap.Bool("applied", cost.Applied),
				zap.String("reason", cost.Reason),
			)
		}

		amount := cost.Final
		if !cost.Applied && !svc.AppliesUnconditionally() && s.policy == SuppressOnMiss {
			continue
		}
		if amount.IsZero() && !svc.AppliesUnconditionally() {
			continue
		}

		oc.ServiceCosts = append(oc.ServiceCosts, billing.ServiceCost{
			ServiceID:   svc.ServiceID,
			ServiceName: svc.ServiceName,
			Amount:      amount,
		})
		oc.TotalAmount = oc.TotalAmount.Add(amount)
	}
	return oc
}

// loadSnapshot fetches the customer's service configuration, read-through
// cached when a snapshot cache is wired. Services are sorted by service ID
// once here so every downstream iteration is stable.
func (s *ReportService) loadSnapshot(ctx context.Context, customerID uuid.UUID) ([]*billing.CustomerService, error) {
	if s.snapshots != nil {
		if cached, ok := s.snapshots.Get(ctx, customerID); ok {
			return cached, nil
		}
	}

	services, err := s.services.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].ServiceID.String() < services[j].ServiceID.String()
	})

	if s.snapshots != nil {
		s.snapshots.Set(ctx, customerID, services)
	}
	return services, nil
}
