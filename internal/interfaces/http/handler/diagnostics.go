package handler

import (
	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/rules"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DiagnosticsHandler serves rule testing and tier configuration validation
type DiagnosticsHandler struct {
	BaseHandler
	diag *appbilling.DiagnosticService
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler
func NewDiagnosticsHandler(diag *appbilling.DiagnosticService) *DiagnosticsHandler {
	return &DiagnosticsHandler{diag: diag}
}

// RegisterRoutes registers diagnostic routes
func (h *DiagnosticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rules/test", h.TestRule)
	rg.POST("/tier-configs/validate", h.ValidateTierConfig)
}

// TestRule evaluates a condition or rule group against a sample order
func (h *DiagnosticsHandler) TestRule(c *gin.Context) {
	var req dto.TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	if (req.Condition == nil) == (req.Group == nil) {
		h.BadRequest(c, "exactly one of condition and group must be set")
		return
	}

	sample := req.Order.ToDomain()
	var result rules.Result
	if req.Condition != nil {
		rule := rules.Rule{
			Field:    req.Condition.Field,
			Operator: rules.Operator(req.Condition.Operator),
			Value:    req.Condition.Value,
		}
		result = h.diag.TestCondition(rule, sample)
	} else {
		result = h.diag.TestGroup(req.Group.ToDomain(), sample)
	}

	h.Success(c, dto.TestRuleResponse{Matched: result.Matched, Reason: result.Reason})
}

// ValidateTierConfig parses and validates a tier configuration document
func (h *DiagnosticsHandler) ValidateTierConfig(c *gin.Context) {
	var req dto.ValidateTierConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	cfg, err := billing.ParseTierConfig(req.TierConfig)
	if err != nil {
		h.Success(c, dto.ValidateTierConfigResponse{Valid: false, Problems: []string{err.Error()}})
		return
	}
	valid, problems := h.diag.ValidateTierConfig(cfg)
	h.Success(c, dto.ValidateTierConfigResponse{Valid: valid, Problems: problems})
}
