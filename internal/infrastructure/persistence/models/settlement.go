package models

import (
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionModel is the persistence model for the Collection aggregate root.
// Withholdings and invoice allocations are value objects owned by the
// aggregate, stored as JSONB.
type CollectionModel struct {
	AggregateModel
	CounterpartyID    uuid.UUID                     `gorm:"type:uuid;not null;index"`
	CounterpartyName  string                        `gorm:"type:varchar(200);not null"`
	Currency          valueobject.Currency          `gorm:"type:varchar(3);not null"`
	GrossAmount       decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	NetAmount         decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	AllocatedAmount   decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	UnallocatedAmount decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	Method            settlement.PaymentMethod      `gorm:"type:varchar(20);not null"`
	Reference         string                        `gorm:"type:varchar(100)"`
	Status            settlement.CollectionStatus   `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	CollectionDate    time.Time                     `gorm:"not null;index"`
	Withholdings      settlement.Withholdings       `gorm:"type:jsonb;default:'[]'"`
	Allocations       settlement.InvoiceAllocations `gorm:"type:jsonb;default:'[]'"`
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
	CancelReason      string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (CollectionModel) TableName() string {
	return "collections"
}

// ToDomain converts the persistence model to a domain Collection aggregate.
func (m *CollectionModel) ToDomain() *settlement.Collection {
	return &settlement.Collection{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		CounterpartyID:    m.CounterpartyID,
		CounterpartyName:  m.CounterpartyName,
		Currency:          m.Currency,
		GrossAmount:       m.GrossAmount,
		NetAmount:         m.NetAmount,
		AllocatedAmount:   m.AllocatedAmount,
		UnallocatedAmount: m.UnallocatedAmount,
		Method:            m.Method,
		Reference:         m.Reference,
		Status:            m.Status,
		CollectionDate:    m.CollectionDate,
		Withholdings:      m.Withholdings,
		Allocations:       m.Allocations,
		ConfirmedAt:       m.ConfirmedAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Collection aggregate.
func (m *CollectionModel) FromDomain(c *settlement.Collection) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CounterpartyID = c.CounterpartyID
	m.CounterpartyName = c.CounterpartyName
	m.Currency = c.Currency
	m.GrossAmount = c.GrossAmount
	m.NetAmount = c.NetAmount
	m.AllocatedAmount = c.AllocatedAmount
	m.UnallocatedAmount = c.UnallocatedAmount
	m.Method = c.Method
	m.Reference = c.Reference
	m.Status = c.Status
	m.CollectionDate = c.CollectionDate
	m.Withholdings = c.Withholdings
	m.Allocations = c.Allocations
	m.ConfirmedAt = c.ConfirmedAt
	m.CancelledAt = c.CancelledAt
	m.CancelReason = c.CancelReason
}

// CollectionModelFromDomain creates a new persistence model from a domain Collection.
func CollectionModelFromDomain(c *settlement.Collection) *CollectionModel {
	m := &CollectionModel{}
	m.FromDomain(c)
	return m
}

// NoteModel is the persistence model for the Note aggregate root.
type NoteModel struct {
	AggregateModel
	Kind             settlement.NoteKind   `gorm:"type:varchar(10);not null;index"`
	VoucherType      invoicing.VoucherType `gorm:"type:varchar(2);not null;uniqueIndex:idx_note_voucher,priority:1"`
	SalesPoint       int                   `gorm:"not null;uniqueIndex:idx_note_voucher,priority:2"`
	VoucherNumber    int64                 `gorm:"not null;uniqueIndex:idx_note_voucher,priority:3"`
	Direction        invoicing.Direction   `gorm:"type:varchar(10);not null;index"`
	CounterpartyID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	CounterpartyName string                `gorm:"type:varchar(200);not null"`
	Currency         valueobject.Currency  `gorm:"type:varchar(3);not null"`
	Total            decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	IssueDate        time.Time             `gorm:"not null"`
	DueDate          *time.Time
	LinkedInvoiceID  *uuid.UUID            `gorm:"type:uuid;index"`
	Status           settlement.NoteStatus `gorm:"type:varchar(10);not null;default:'PENDING';index"`
	AppliedAt        *time.Time
	ExcessAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	VoidedAt         *time.Time
	VoidReason       string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (NoteModel) TableName() string {
	return "notes"
}

// ToDomain converts the persistence model to a domain Note aggregate.
func (m *NoteModel) ToDomain() *settlement.Note {
	return &settlement.Note{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Kind:             m.Kind,
		VoucherType:      m.VoucherType,
		SalesPoint:       m.SalesPoint,
		VoucherNumber:    m.VoucherNumber,
		Direction:        m.Direction,
		CounterpartyID:   m.CounterpartyID,
		CounterpartyName: m.CounterpartyName,
		Currency:         m.Currency,
		Total:            m.Total,
		IssueDate:        m.IssueDate,
		DueDate:          m.DueDate,
		LinkedInvoiceID:  m.LinkedInvoiceID,
		Status:           m.Status,
		AppliedAt:        m.AppliedAt,
		ExcessAmount:     m.ExcessAmount,
		VoidedAt:         m.VoidedAt,
		VoidReason:       m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Note aggregate.
func (m *NoteModel) FromDomain(n *settlement.Note) {
	m.FromDomainAggregateRoot(n.BaseAggregateRoot)
	m.Kind = n.Kind
	m.VoucherType = n.VoucherType
	m.SalesPoint = n.SalesPoint
	m.VoucherNumber = n.VoucherNumber
	m.Direction = n.Direction
	m.CounterpartyID = n.CounterpartyID
	m.CounterpartyName = n.CounterpartyName
	m.Currency = n.Currency
	m.Total = n.Total
	m.IssueDate = n.IssueDate
	m.DueDate = n.DueDate
	m.LinkedInvoiceID = n.LinkedInvoiceID
	m.Status = n.Status
	m.AppliedAt = n.AppliedAt
	m.ExcessAmount = n.ExcessAmount
	m.VoidedAt = n.VoidedAt
	m.VoidReason = n.VoidReason
}

// NoteModelFromDomain creates a new persistence model from a domain Note.
func NoteModelFromDomain(n *settlement.Note) *NoteModel {
	m := &NoteModel{}
	m.FromDomain(n)
	return m
}
