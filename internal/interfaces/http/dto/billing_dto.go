package dto

import (
	"encoding/json"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/rules"
)

// GenerateReportRequest asks for one customer's report over an inclusive
// date range.
type GenerateReportRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
	StartDate  string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" binding:"required,datetime=2006-01-02"`
}

// Period parses the request dates. Binding has already verified the layout.
func (r *GenerateReportRequest) Period() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return
	}
	end, err = time.Parse("2006-01-02", r.EndDate)
	return
}

// BatchGenerateRequest asks for reports for every customer with configured
// services.
type BatchGenerateRequest struct {
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"required,datetime=2006-01-02"`
}

// Period parses the request dates.
func (r *BatchGenerateRequest) Period() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return
	}
	end, err = time.Parse("2006-01-02", r.EndDate)
	return
}

// BatchResultResponse is one customer's outcome in a batch run.
type BatchResultResponse struct {
	CustomerID string                 `json:"customer_id"`
	ReportID   string                 `json:"report_id,omitempty"`
	Report     *billing.BillingReport `json:"report,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// NewBatchResultResponses converts batch results to their wire shape.
func NewBatchResultResponses(results []appbilling.BatchResult) []BatchResultResponse {
	out := make([]BatchResultResponse, 0, len(results))
	for _, r := range results {
		resp := BatchResultResponse{CustomerID: r.CustomerID.String()}
		if r.Err != nil {
			resp.Error = r.Err.Error()
		} else if r.Report != nil {
			resp.ReportID = r.Report.ID.String()
			resp.Report = r.Report
		}
		out = append(out, resp)
	}
	return out
}

// RuleDTO is one condition on the wire.
type RuleDTO struct {
	Field    string `json:"field" binding:"required"`
	Operator string `json:"operator" binding:"required"`
	Value    string `json:"value"`
}

// GroupDTO is a logical rule group on the wire.
type GroupDTO struct {
	LogicOperator string    `json:"logic_operator" binding:"required"`
	Rules         []RuleDTO `json:"rules" binding:"required,min=1,dive"`
}

// ToDomain converts the wire group into the domain rule group.
func (g *GroupDTO) ToDomain() rules.Group {
	group := rules.Group{
		Logic: rules.LogicOperator(g.LogicOperator),
		Rules: make([]rules.Rule, 0, len(g.Rules)),
	}
	for _, r := range g.Rules {
		group.Rules = append(group.Rules, rules.Rule{
			Field:    r.Field,
			Operator: rules.Operator(r.Operator),
			Value:    r.Value,
		})
	}
	return group
}

// SampleOrderDTO is the order a rule is tested against.
type SampleOrderDTO struct {
	Fields map[string]any             `json:"fields"`
	Lines  map[string]billing.SKULine `json:"lines"`
}

// ToDomain converts the sample to its application shape.
func (s *SampleOrderDTO) ToDomain() appbilling.SampleOrder {
	return appbilling.SampleOrder{Fields: s.Fields, Lines: s.Lines}
}

// TestRuleRequest tests a single condition or a group against a sample
// order. Exactly one of condition and group must be set.
type TestRuleRequest struct {
	Condition *RuleDTO       `json:"condition"`
	Group     *GroupDTO      `json:"group"`
	Order     SampleOrderDTO `json:"order"`
}

// TestRuleResponse reports the evaluation outcome.
type TestRuleResponse struct {
	Matched bool   `json:"matched"`
	Reason  string `json:"reason,omitempty"`
}

// ValidateTierConfigRequest carries a raw tier configuration document. It is
// kept raw so the domain parser applies its own type checks.
type ValidateTierConfigRequest struct {
	TierConfig json.RawMessage `json:"tier_config" binding:"required"`
}

// ValidateTierConfigResponse reports configuration problems, empty when the
// document is valid.
type ValidateTierConfigResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}
