package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchResult is the outcome of one customer within a batch run. A batch of
// N customers always yields N results unless cancelled: per-customer failures
// are recorded, not propagated.
type BatchResult struct {
	CustomerID uuid.UUID
	Report     *billing.BillingReport
	Err        error
}

// BatchService runs report generation across all customers. Customers are
// independent, so the work fans out over a bounded worker pool; each worker
// loads its own immutable snapshot and writes to a private accumulator, so
// no state is shared across workers.
type BatchService struct {
	reports   *ReportService
	customers billing.CustomerLister
	workers   int
	logger    *zap.Logger
}

// NewBatchService creates a batch runner. workers <= 0 falls back to 4.
func NewBatchService(reports *ReportService, customers billing.CustomerLister, workers int, logger *zap.Logger) *BatchService {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		reports:   reports,
		customers: customers,
		workers:   workers,
		logger:    logger,
	}
}

// GenerateAll generates a report for every customer over the date range.
// Cancellation is honored between per-customer units: on context error the
// partial result set is discarded and ctx.Err() returned, so no partial
// batch is ever handed to the caller as final.
func (s *BatchService) GenerateAll(ctx context.Context, start, end time.Time) ([]BatchResult, error) {
	customerIDs, err := s.customers.ListCustomerIDs(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make(chan uuid.UUID)
	results := make([]BatchResult, 0, len(customerIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for customerID := range jobs {
				// Check between units, not mid-computation; a unit in
				// flight runs to completion.
				if ctx.Err() != nil {
					return
				}
				report, genErr := s.reports.GenerateReport(ctx, customerID, start, end)
				mu.Lock()
				results = append(results, BatchResult{CustomerID: customerID, Report: report, Err: genErr})
				mu.Unlock()
				if genErr != nil {
					s.logger.Warn("report generation failed for customer",
						zap.String("customer_id", customerID.String()),
						zap.Error(genErr),
					)
				}
			}
		}()
	}

feed:
	for _, customerID := range customerIDs {
		select {
		case jobs <- customerID:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CustomerID.String() < results[j].CustomerID.String()
	})
	return results, nil
}
