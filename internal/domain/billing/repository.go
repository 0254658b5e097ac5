package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderReader supplies the read-only order input of a billing run. The
// returned sequence must have a stable iteration order for a fixed snapshot.
type OrderReader interface {
	ListByCustomerAndDateRange(ctx context.Context, customerID uuid.UUID, start, end time.Time) ([]*Order, error)
}

// ServiceConfigReader supplies the customer's service configuration with its
// rule tree, validated at load time. The snapshot returned is treated as
// immutable for the duration of a run.
type ServiceConfigReader interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*CustomerService, error)
}

// CustomerLister enumerates customers for batch runs.
type CustomerLister interface {
	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ReportRepository persists generated reports.
type ReportRepository interface {
	Save(ctx context.Context, report *BillingReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*BillingReport, error)
}
