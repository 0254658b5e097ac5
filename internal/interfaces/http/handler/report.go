package handler

import (
	"context"
	"errors"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportHandler serves billing report generation and retrieval
type ReportHandler struct {
	BaseHandler
	reports *appbilling.ReportService
	batch   *appbilling.BatchService
	store   billing.ReportRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler. timeout bounds each
// generation request; zero means no deadline.
func NewReportHandler(reports *appbilling.ReportService, batch *appbilling.BatchService, store billing.ReportRepository, timeout time.Duration, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, batch: batch, store: store, timeout: timeout, logger: logger}
}

// generateContext derives the deadline-bounded context for a generation run.
func (h *ReportHandler) generateContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// RegisterRoutes registers report routes
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.POST("/generate", h.Generate)
		reports.POST("/batch", h.BatchGenerate)
		reports.GET("/:id", h.GetByID)
	}
}

// Generate creates a billing report for one customer and date range
func (h *ReportHandler) Generate(c *gin.Context) {
	var req dto.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "customer_id is not a valid UUID")
		return
	}
	start, end, err := req.Period()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if end.Before(start) {
		h.BadRequest(c, "end_date is before start_date")
		return
	}

	ctx, cancel := h.generateContext(c)
	defer cancel()

	report, err := h.reports.GenerateReport(ctx, customerID, start, end)
	if err != nil {
		h.logger.Error("report generation failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
		h.DomainError(c, err)
		return
	}
	h.Created(c, report)
}

// BatchGenerate creates reports for every customer with configured services
func (h *ReportHandler) BatchGenerate(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	start, end, err := req.Period()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if end.Before(start) {
		h.BadRequest(c, "end_date is before start_date")
		return
	}

	ctx, cancel := h.generateContext(c)
	defer cancel()

	results, err := h.batch.GenerateAll(ctx, start, end)
	if err != nil {
		h.logger.Error("batch generation failed", zap.Error(err))
		h.DomainError(c, err)
		return
	}
	h.Success(c, dto.NewBatchResultResponses(results))
}

// GetByID fetches a previously generated report
func (h *ReportHandler) GetByID(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "id is not a valid UUID")
		return
	}

	report, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "report not found")
			return
		}
		h.logger.Error("report fetch failed", zap.String("report_id", id.String()), zap.Error(err))
		h.DomainError(c, err)
		return
	}
	h.Success(c, report)
}
