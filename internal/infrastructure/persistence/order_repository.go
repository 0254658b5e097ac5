package persistence

import (
	"context"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderRepository implements billing.OrderReader using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save persists an order, inserting or updating by ID.
func (r *GormOrderRepository) Save(ctx context.Context, order *billing.Order) error {
	var model models.OrderModel
	if err := model.FromDomain(order); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

// ListByCustomerAndDateRange returns a customer's orders with order dates in
// the inclusive range, oldest first.
func (r *GormOrderRepository) ListByCustomerAndDateRange(ctx context.Context, customerID uuid.UUID, start, end time.Time) ([]*billing.Order, error) {
	var rows []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND order_date >= ? AND order_date <= ?", customerID, start, end).
		Order("order_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]*billing.Order, 0, len(rows))
	for i := range rows {
		order, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
