package models

import (
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Lines, perceptions and settlement records live inside the aggregate and are
// stored as JSONB columns.
type InvoiceModel struct {
	AggregateModel
	VoucherType      invoicing.VoucherType        `gorm:"type:varchar(2);not null;uniqueIndex:idx_invoice_voucher,priority:1,where:voucher_number > 0"`
	SalesPoint       int                          `gorm:"not null;uniqueIndex:idx_invoice_voucher,priority:2,where:voucher_number > 0"`
	VoucherNumber    int64                        `gorm:"not null;default:0;uniqueIndex:idx_invoice_voucher,priority:3,where:voucher_number > 0"`
	Direction        invoicing.Direction          `gorm:"type:varchar(10);not null;index"`
	CounterpartyID   uuid.UUID                    `gorm:"type:uuid;not null;index"`
	CounterpartyName string                       `gorm:"type:varchar(200);not null"`
	Concept          invoicing.Concept            `gorm:"type:varchar(25);not null"`
	Currency         valueobject.Currency         `gorm:"type:varchar(3);not null;index"`
	ExchangeRate     decimal.Decimal              `gorm:"type:decimal(18,6);not null"`
	IssueDate        *time.Time                   `gorm:"index"`
	DueDate          *time.Time                   `gorm:"index"`
	ServiceFrom      *time.Time                   `gorm:"column:service_from"`
	ServiceTo        *time.Time                   `gorm:"column:service_to"`
	Lines            invoicing.InvoiceLines       `gorm:"type:jsonb;default:'[]'"`
	Perceptions      invoicing.Perceptions        `gorm:"type:jsonb;default:'[]'"`
	Subtotal         decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	TaxTotal         decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	PerceptionTotal  decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	GrandTotal       decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	PendingAmount    decimal.Decimal              `gorm:"type:decimal(18,2);not null;index"`
	Status           invoicing.InvoiceStatus      `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Settlements      invoicing.SettlementRecords  `gorm:"type:jsonb;default:'[]'"`
	VoidedAt         *time.Time
	VoidReason       string `gorm:"type:varchar(500)"`
	SettledAt        *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice aggregate.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	var servicePeriod *invoicing.ServicePeriod
	if m.ServiceFrom != nil && m.ServiceTo != nil {
		servicePeriod = &invoicing.ServicePeriod{From: *m.ServiceFrom, To: *m.ServiceTo}
	}
	return &invoicing.Invoice{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		VoucherType:      m.VoucherType,
		SalesPoint:       m.SalesPoint,
		VoucherNumber:    m.VoucherNumber,
		Direction:        m.Direction,
		CounterpartyID:   m.CounterpartyID,
		CounterpartyName: m.CounterpartyName,
		Concept:          m.Concept,
		Currency:         m.Currency,
		ExchangeRate:     m.ExchangeRate,
		IssueDate:        m.IssueDate,
		DueDate:          m.DueDate,
		ServicePeriod:    servicePeriod,
		Lines:            m.Lines,
		Perceptions:      m.Perceptions,
		Subtotal:         m.Subtotal,
		TaxTotal:         m.TaxTotal,
		PerceptionTotal:  m.PerceptionTotal,
		GrandTotal:       m.GrandTotal,
		PendingAmount:    m.PendingAmount,
		Status:           m.Status,
		Settlements:      m.Settlements,
		VoidedAt:         m.VoidedAt,
		VoidReason:       m.VoidReason,
		SettledAt:        m.SettledAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice aggregate.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.VoucherType = inv.VoucherType
	m.SalesPoint = inv.SalesPoint
	m.VoucherNumber = inv.VoucherNumber
	m.Direction = inv.Direction
	m.CounterpartyID = inv.CounterpartyID
	m.CounterpartyName = inv.CounterpartyName
	m.Concept = inv.Concept
	m.Currency = inv.Currency
	m.ExchangeRate = inv.ExchangeRate
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	if inv.ServicePeriod != nil {
		from, to := inv.ServicePeriod.From, inv.ServicePeriod.To
		m.ServiceFrom, m.ServiceTo = &from, &to
	} else {
		m.ServiceFrom, m.ServiceTo = nil, nil
	}
	m.Lines = inv.Lines
	m.Perceptions = inv.Perceptions
	m.Subtotal = inv.Subtotal
	m.TaxTotal = inv.TaxTotal
	m.PerceptionTotal = inv.PerceptionTotal
	m.GrandTotal = inv.GrandTotal
	m.PendingAmount = inv.PendingAmount
	m.Status = inv.Status
	m.Settlements = inv.Settlements
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
	m.SettledAt = inv.SettledAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// VoucherSequenceModel tracks the last assigned voucher number per voucher
// type and sales point. Numbers are reserved atomically at issue time.
type VoucherSequenceModel struct {
	VoucherType invoicing.VoucherType `gorm:"type:varchar(2);primaryKey"`
	SalesPoint  int                   `gorm:"primaryKey"`
	LastNumber  int64                 `gorm:"not null;default:0"`
	UpdatedAt   time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (VoucherSequenceModel) TableName() string {
	return "voucher_sequences"
}
