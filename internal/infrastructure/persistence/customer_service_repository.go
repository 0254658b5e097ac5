package persistence

import (
	"context"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotInvalidator drops a customer's cached configuration snapshot.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, customerID uuid.UUID)
}

// GormCustomerServiceRepository implements billing.ServiceConfigReader and
// billing.CustomerLister using GORM. Stored rule and tier documents are
// revalidated on load; a malformed configuration comes back as a degraded
// service so the rest of the customer's services still load.
type GormCustomerServiceRepository struct {
	db        *gorm.DB
	snapshots SnapshotInvalidator
}

// NewGormCustomerServiceRepository creates a new GormCustomerServiceRepository
func NewGormCustomerServiceRepository(db *gorm.DB) *GormCustomerServiceRepository {
	return &GormCustomerServiceRepository{db: db}
}

// WithSnapshotCache makes Save invalidate the customer's cached configuration
// snapshot so the next billing run sees the updated service.
func (r *GormCustomerServiceRepository) WithSnapshotCache(snapshots SnapshotInvalidator) *GormCustomerServiceRepository {
	r.snapshots = snapshots
	return r
}

// Save persists a service configuration, inserting or updating by ID.
func (r *GormCustomerServiceRepository) Save(ctx context.Context, svc *billing.CustomerService) error {
	var model models.CustomerServiceModel
	if err := model.FromDomain(svc); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return err
	}
	if r.snapshots != nil {
		r.snapshots.Invalidate(ctx, svc.CustomerID)
	}
	return nil
}

// ListByCustomer returns all service configurations of one customer.
func (r *GormCustomerServiceRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*billing.CustomerService, error) {
	var rows []models.CustomerServiceModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("service_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	services := make([]*billing.CustomerService, 0, len(rows))
	for i := range rows {
		services = append(services, rows[i].ToDomain())
	}
	return services, nil
}

// ListCustomerIDs returns the distinct customers with at least one
// configured service, in stable order.
func (r *GormCustomerServiceRepository) ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.CustomerServiceModel{}).
		Distinct("customer_id").
		Order("customer_id ASC").
		Pluck("customer_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
