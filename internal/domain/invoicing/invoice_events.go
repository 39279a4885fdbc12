package invoicing

import (
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant for Invoice
const AggregateTypeInvoice = "Invoice"

// Event type constants for Invoice
const (
	EventTypeInvoiceCreated     = "InvoiceCreated"
	EventTypeInvoiceIssued      = "InvoiceIssued"
	EventTypeInvoiceVoided      = "InvoiceVoided"
	EventTypeInvoiceSettled     = "InvoiceSettled"
	EventTypeCollectionApplied  = "CollectionApplied"
	EventTypeCreditNoteApplied  = "CreditNoteApplied"
	EventTypeDebitNoteApplied   = "DebitNoteApplied"
	EventTypeCollectionReversed = "CollectionReversed"
)

// InvoiceCreatedEvent is raised when a new draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID            `json:"invoice_id"`
	VoucherType      VoucherType          `json:"voucher_type"`
	Direction        Direction            `json:"direction"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Currency         valueobject.Currency `json:"currency"`
	GrandTotal       decimal.Decimal      `json:"grand_total"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceID:        inv.ID,
		VoucherType:      inv.VoucherType,
		Direction:        inv.Direction,
		CounterpartyID:   inv.CounterpartyID,
		CounterpartyName: inv.CounterpartyName,
		Currency:         inv.Currency,
		GrandTotal:       inv.GrandTotal,
	}
}

// InvoiceIssuedEvent is raised when an invoice is issued and its full grand
// total becomes pending
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID            `json:"invoice_id"`
	VoucherNumber  string               `json:"voucher_number"`
	CounterpartyID uuid.UUID            `json:"counterparty_id"`
	Currency       valueobject.Currency `json:"currency"`
	GrandTotal     decimal.Decimal      `json:"grand_total"`
	PendingAmount  decimal.Decimal      `json:"pending_amount"`
}

// NewInvoiceIssuedEvent creates a new InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceIssued, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		VoucherNumber:   inv.FormattedVoucherNumber(),
		CounterpartyID:  inv.CounterpartyID,
		Currency:        inv.Currency,
		GrandTotal:      inv.GrandTotal,
		PendingAmount:   inv.PendingAmount,
	}
}

// InvoiceVoidedEvent is raised when an invoice is voided
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	InvoiceID  uuid.UUID `json:"invoice_id"`
	VoidReason string    `json:"void_reason"`
}

// NewInvoiceVoidedEvent creates a new InvoiceVoidedEvent
func NewInvoiceVoidedEvent(inv *Invoice) *InvoiceVoidedEvent {
	return &InvoiceVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceVoided, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		VoidReason:      inv.VoidReason,
	}
}

// InvoiceSettledEvent is raised when the pending amount reaches zero
type InvoiceSettledEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID            `json:"invoice_id"`
	CounterpartyID uuid.UUID            `json:"counterparty_id"`
	Currency       valueobject.Currency `json:"currency"`
	GrandTotal     decimal.Decimal      `json:"grand_total"`
}

// NewInvoiceSettledEvent creates a new InvoiceSettledEvent
func NewInvoiceSettledEvent(inv *Invoice) *InvoiceSettledEvent {
	return &InvoiceSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSettled, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		CounterpartyID:  inv.CounterpartyID,
		Currency:        inv.Currency,
		GrandTotal:      inv.GrandTotal,
	}
}

// CollectionAppliedEvent is raised when a collection allocation lands on an invoice
type CollectionAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	CollectionID  uuid.UUID            `json:"collection_id"`
	Currency      valueobject.Currency `json:"currency"`
	GrossAmount   decimal.Decimal      `json:"gross_amount"`
	PendingAmount decimal.Decimal      `json:"pending_amount"`
}

// NewCollectionAppliedEvent creates a new CollectionAppliedEvent
func NewCollectionAppliedEvent(inv *Invoice, collectionID uuid.UUID, gross valueobject.Money) *CollectionAppliedEvent {
	return &CollectionAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionApplied, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		CollectionID:    collectionID,
		Currency:        inv.Currency,
		GrossAmount:     gross.Amount(),
		PendingAmount:   inv.PendingAmount,
	}
}

// CreditNoteAppliedEvent is raised when a credit note is applied to an invoice
type CreditNoteAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	NoteID        uuid.UUID            `json:"note_id"`
	Currency      valueobject.Currency `json:"currency"`
	AppliedAmount decimal.Decimal      `json:"applied_amount"`
	ExcessAmount  decimal.Decimal      `json:"excess_amount"`
	PendingAmount decimal.Decimal      `json:"pending_amount"`
}

// NewCreditNoteAppliedEvent creates a new CreditNoteAppliedEvent
func NewCreditNoteAppliedEvent(inv *Invoice, noteID uuid.UUID, applied, excess decimal.Decimal) *CreditNoteAppliedEvent {
	return &CreditNoteAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteApplied, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		NoteID:          noteID,
		Currency:        inv.Currency,
		AppliedAmount:   applied,
		ExcessAmount:    excess,
		PendingAmount:   inv.PendingAmount,
	}
}

// DebitNoteAppliedEvent is raised when a debit note is applied to an invoice
type DebitNoteAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	NoteID        uuid.UUID            `json:"note_id"`
	Currency      valueobject.Currency `json:"currency"`
	Amount        decimal.Decimal      `json:"amount"`
	PendingAmount decimal.Decimal      `json:"pending_amount"`
}

// NewDebitNoteAppliedEvent creates a new DebitNoteAppliedEvent
func NewDebitNoteAppliedEvent(inv *Invoice, noteID uuid.UUID, total valueobject.Money) *DebitNoteAppliedEvent {
	return &DebitNoteAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebitNoteApplied, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		NoteID:          noteID,
		Currency:        inv.Currency,
		Amount:          total.Amount(),
		PendingAmount:   inv.PendingAmount,
	}
}

// CollectionReversedEvent is raised when a previously applied collection is reversed
type CollectionReversedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	CollectionID  uuid.UUID       `json:"collection_id"`
	Amount        decimal.Decimal `json:"amount"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
}

// NewCollectionReversedEvent creates a new CollectionReversedEvent
func NewCollectionReversedEvent(inv *Invoice, collectionID uuid.UUID, amount decimal.Decimal) *CollectionReversedEvent {
	return &CollectionReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionReversed, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		CollectionID:    collectionID,
		Amount:          amount,
		PendingAmount:   inv.PendingAmount,
	}
}
