package persistence

import (
	"context"
	"errors"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBillingReportRepository implements billing.ReportRepository using GORM
type GormBillingReportRepository struct {
	db *gorm.DB
}

// NewGormBillingReportRepository creates a new GormBillingReportRepository
func NewGormBillingReportRepository(db *gorm.DB) *GormBillingReportRepository {
	return &GormBillingReportRepository{db: db}
}

// Save persists a generated report together with its rendered payload.
func (r *GormBillingReportRepository) Save(ctx context.Context, report *billing.BillingReport) error {
	var model models.BillingReportModel
	if err := model.FromDomain(report); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID fetches a stored report by its ID.
func (r *GormBillingReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.BillingReport, error) {
	var model models.BillingReportModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}
