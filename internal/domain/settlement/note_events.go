package settlement

import (
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant for Note
const AggregateTypeNote = "Note"

// Event type constants for Note
const (
	EventTypeNoteIssued  = "NoteIssued"
	EventTypeNoteApplied = "NoteApplied"
	EventTypeNoteVoided  = "NoteVoided"
)

// NoteIssuedEvent is raised when a new note is issued
type NoteIssuedEvent struct {
	shared.BaseDomainEvent
	NoteID          uuid.UUID            `json:"note_id"`
	Kind            NoteKind             `json:"kind"`
	VoucherNumber   string               `json:"voucher_number"`
	CounterpartyID  uuid.UUID            `json:"counterparty_id"`
	Currency        valueobject.Currency `json:"currency"`
	Total           decimal.Decimal      `json:"total"`
	LinkedInvoiceID *uuid.UUID           `json:"linked_invoice_id,omitempty"`
}

// NewNoteIssuedEvent creates a new NoteIssuedEvent
func NewNoteIssuedEvent(n *Note) *NoteIssuedEvent {
	return &NoteIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNoteIssued, AggregateTypeNote, n.ID),
		NoteID:          n.ID,
		Kind:            n.Kind,
		VoucherNumber:   n.FormattedVoucherNumber(),
		CounterpartyID:  n.CounterpartyID,
		Currency:        n.Currency,
		Total:           n.Total,
		LinkedInvoiceID: n.LinkedInvoiceID,
	}
}

// NoteAppliedEvent is raised when a note is applied to its linked invoice
type NoteAppliedEvent struct {
	shared.BaseDomainEvent
	NoteID          uuid.UUID       `json:"note_id"`
	Kind            NoteKind        `json:"kind"`
	LinkedInvoiceID *uuid.UUID      `json:"linked_invoice_id"`
	Total           decimal.Decimal `json:"total"`
	ExcessAmount    decimal.Decimal `json:"excess_amount"`
}

// NewNoteAppliedEvent creates a new NoteAppliedEvent
func NewNoteAppliedEvent(n *Note) *NoteAppliedEvent {
	return &NoteAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNoteApplied, AggregateTypeNote, n.ID),
		NoteID:          n.ID,
		Kind:            n.Kind,
		LinkedInvoiceID: n.LinkedInvoiceID,
		Total:           n.Total,
		ExcessAmount:    n.ExcessAmount,
	}
}

// NoteVoidedEvent is raised when a note is voided
type NoteVoidedEvent struct {
	shared.BaseDomainEvent
	NoteID     uuid.UUID `json:"note_id"`
	Kind       NoteKind  `json:"kind"`
	VoidReason string    `json:"void_reason"`
}

// NewNoteVoidedEvent creates a new NoteVoidedEvent
func NewNoteVoidedEvent(n *Note) *NoteVoidedEvent {
	return &NoteVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNoteVoided, AggregateTypeNote, n.ID),
		NoteID:          n.ID,
		Kind:            n.Kind,
		VoidReason:      n.VoidReason,
	}
}
