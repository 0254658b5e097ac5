package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/rules"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order domain entity. Line
// quantities and free-form attributes are stored as JSONB documents.
type OrderModel struct {
	BaseModel
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_orders_customer_date,priority:1"`
	OrderNumber   string          `gorm:"type:varchar(50);not null;index"`
	OrderDate     time.Time       `gorm:"not null;index:idx_orders_customer_date,priority:2"`
	Status        string          `gorm:"type:varchar(20);not null;default:'open'"`
	ShipToCountry string          `gorm:"type:varchar(2)"`
	Weight        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Volume        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Lines         string          `gorm:"type:jsonb"`
	Attributes    string          `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() (*billing.Order, error) {
	o := &billing.Order{
		BaseEntity:    m.BaseModel.ToDomain(),
		CustomerID:    m.CustomerID,
		OrderNumber:   m.OrderNumber,
		OrderDate:     m.OrderDate,
		Status:        m.Status,
		ShipToCountry: m.ShipToCountry,
		Weight:        m.Weight,
		Volume:        m.Volume,
	}
	if m.Lines != "" {
		if err := json.Unmarshal([]byte(m.Lines), &o.Lines); err != nil {
			return nil, fmt.Errorf("order %s: decoding lines: %w", m.ID, err)
		}
	}
	if m.Attributes != "" {
		if err := json.Unmarshal([]byte(m.Attributes), &o.Attributes); err != nil {
			return nil, fmt.Errorf("order %s: decoding attributes: %w", m.ID, err)
		}
	}
	return o, nil
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *billing.Order) error {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.CustomerID = o.CustomerID
	m.OrderNumber = o.OrderNumber
	m.OrderDate = o.OrderDate
	m.Status = o.Status
	m.ShipToCountry = o.ShipToCountry
	m.Weight = o.Weight
	m.Volume = o.Volume

	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encoding lines: %w", err)
	}
	m.Lines = string(lines)

	attrs, err := json.Marshal(o.Attributes)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}
	m.Attributes = string(attrs)
	return nil
}

// CustomerServiceModel is the persistence model for a customer's service
// configuration. The rule group and advanced rule are JSONB documents; the
// advanced rule's embedded tier config is revalidated on every load so a
// document written around the API never reaches the calculator unchecked.
type CustomerServiceModel struct {
	BaseModel
	CustomerID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ServiceID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_customer_service,priority:2"`
	ServiceName  string          `gorm:"type:varchar(200);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	RuleGroup    string          `gorm:"type:jsonb"`
	AdvancedRule string          `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (CustomerServiceModel) TableName() string {
	return "customer_services"
}

// advancedRuleDoc mirrors the stored advanced rule with the tier config
// left raw so billing.ParseTierConfig applies its type checks.
type advancedRuleDoc struct {
	Field        string                `json:"field"`
	Operator     rules.Operator        `json:"operator"`
	Value        string                `json:"value"`
	Calculations []billing.Calculation `json:"calculations"`
	TierConfig   json.RawMessage       `json:"tier_config"`
}

// ToDomain converts the persistence model to a domain CustomerService.
// Invalid rule or tier documents do not fail the load: the service comes
// back degraded, with the offending values in ConfigError, so one broken
// configuration never takes down a whole billing run. Hard rejection of
// bad documents belongs to the edit-time validation API.
func (m *CustomerServiceModel) ToDomain() *billing.CustomerService {
	svc := &billing.CustomerService{
		BaseEntity:  m.BaseModel.ToDomain(),
		CustomerID:  m.CustomerID,
		ServiceID:   m.ServiceID,
		ServiceName: m.ServiceName,
		UnitPrice:   m.UnitPrice,
	}

	if m.RuleGroup != "" {
		var group rules.Group
		if err := json.Unmarshal([]byte(m.RuleGroup), &group); err != nil {
			svc.ConfigError = fmt.Sprintf("decoding rule group: %v", err)
			return svc
		}
		svc.RuleGroup = &group
	}

	if m.AdvancedRule != "" {
		var doc advancedRuleDoc
		if err := json.Unmarshal([]byte(m.AdvancedRule), &doc); err != nil {
			svc.ConfigError = fmt.Sprintf("decoding advanced rule: %v", err)
			return svc
		}
		adv := &billing.AdvancedRule{
			Rule:         rules.Rule{Field: doc.Field, Operator: doc.Operator, Value: doc.Value},
			Calculations: doc.Calculations,
		}
		if len(doc.TierConfig) > 0 && string(doc.TierConfig) != "null" {
			cfg, err := billing.ParseTierConfig(doc.TierConfig)
			if err != nil {
				svc.ConfigError = err.Error()
				return svc
			}
			if ok, problems := billing.ValidateTierConfig(cfg); !ok {
				svc.ConfigError = fmt.Sprintf("invalid tier config: %s", strings.Join(problems, "; "))
				return svc
			}
			adv.TierConfig = cfg
		}
		svc.AdvancedRule = adv
	}

	return svc
}

// FromDomain populates the persistence model from a domain CustomerService.
func (m *CustomerServiceModel) FromDomain(svc *billing.CustomerService) error {
	m.FromDomainBaseEntity(svc.BaseEntity)
	m.CustomerID = svc.CustomerID
	m.ServiceID = svc.ServiceID
	m.ServiceName = svc.ServiceName
	m.UnitPrice = svc.UnitPrice

	if svc.RuleGroup != nil {
		raw, err := json.Marshal(svc.RuleGroup)
		if err != nil {
			return fmt.Errorf("encoding rule group: %w", err)
		}
		m.RuleGroup = string(raw)
	} else {
		m.RuleGroup = ""
	}

	if svc.AdvancedRule != nil {
		raw, err := json.Marshal(svc.AdvancedRule)
		if err != nil {
			return fmt.Errorf("encoding advanced rule: %w", err)
		}
		m.AdvancedRule = string(raw)
	} else {
		m.AdvancedRule = ""
	}
	return nil
}

// BillingReportModel is the persistence model for a generated billing
// report. The full report document is stored as it was rendered, so a
// fetched report is byte-identical to the generated one.
type BillingReportModel struct {
	BaseModel
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_reports_customer_period,priority:1"`
	StartDate   time.Time       `gorm:"not null;index:idx_reports_customer_period,priority:2"`
	EndDate     time.Time       `gorm:"not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Payload     string          `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (BillingReportModel) TableName() string {
	return "billing_reports"
}

// ToDomain rebuilds the domain BillingReport from the stored payload.
func (m *BillingReportModel) ToDomain() (*billing.BillingReport, error) {
	var report billing.BillingReport
	if err := json.Unmarshal([]byte(m.Payload), &report); err != nil {
		return nil, fmt.Errorf("report %s: decoding payload: %w", m.ID, err)
	}
	report.BaseEntity = m.BaseModel.ToDomain()
	// Column values are authoritative for the exact period timestamps; the
	// payload only carries the date portion.
	report.StartDate = m.StartDate
	report.EndDate = m.EndDate
	return &report, nil
}

// FromDomain populates the persistence model from a domain BillingReport.
func (m *BillingReportModel) FromDomain(r *billing.BillingReport) error {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.CustomerID = r.CustomerID
	m.StartDate = r.StartDate
	m.EndDate = r.EndDate
	m.TotalAmount = r.TotalAmount

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	m.Payload = string(payload)
	return nil
}
