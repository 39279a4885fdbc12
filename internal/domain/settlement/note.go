package settlement

import (
	"fmt"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NoteKind distinguishes credit notes from debit notes
type NoteKind string

const (
	NoteKindCredit NoteKind = "CREDIT" // Reduces what the counterparty owes
	NoteKindDebit  NoteKind = "DEBIT"  // Raises what the counterparty owes
)

// IsValid checks if the note kind is valid
func (k NoteKind) IsValid() bool {
	return k == NoteKindCredit || k == NoteKindDebit
}

// NoteStatus represents the lifecycle state of a note
type NoteStatus string

const (
	NoteStatusPending NoteStatus = "PENDING" // Issued, not yet applied to an invoice
	NoteStatusApplied NoteStatus = "APPLIED" // Applied to its linked invoice
	NoteStatusVoided  NoteStatus = "VOIDED"
)

// IsValid checks if the status is a valid NoteStatus
func (s NoteStatus) IsValid() bool {
	switch s {
	case NoteStatusPending, NoteStatusApplied, NoteStatusVoided:
		return true
	}
	return false
}

// IsTerminal returns true if the note is in a terminal state
func (s NoteStatus) IsTerminal() bool {
	return s == NoteStatusApplied || s == NoteStatusVoided
}

// Note represents a credit or debit note aggregate root. A note linked to an
// invoice mutates that invoice's pending amount when applied; an unassociated
// note bypasses the ledger and feeds the per-counterparty standalone
// credit/debit totals instead.
type Note struct {
	shared.BaseAggregateRoot
	Kind             NoteKind              `json:"kind"`
	VoucherType      invoicing.VoucherType `json:"voucher_type"`
	SalesPoint       int                   `json:"sales_point"`
	VoucherNumber    int64                 `json:"voucher_number"`
	Direction        invoicing.Direction   `json:"direction"`
	CounterpartyID   uuid.UUID             `json:"counterparty_id"`
	CounterpartyName string                `json:"counterparty_name"`
	Currency         valueobject.Currency  `json:"currency"`
	Total            decimal.Decimal       `json:"total"`
	IssueDate        time.Time             `json:"issue_date"`
	DueDate          *time.Time            `json:"due_date,omitempty"`
	LinkedInvoiceID  *uuid.UUID            `json:"linked_invoice_id,omitempty"`
	Status           NoteStatus            `json:"status"`
	AppliedAt        *time.Time            `json:"applied_at,omitempty"`
	ExcessAmount     decimal.Decimal       `json:"excess_amount"` // Credit note portion the invoice could not absorb
	VoidedAt         *time.Time            `json:"voided_at,omitempty"`
	VoidReason       string                `json:"void_reason,omitempty"`
}

// NewNote creates a new pending note. linkedInvoiceID may be nil for an
// unassociated note.
func NewNote(
	kind NoteKind,
	voucherType invoicing.VoucherType,
	salesPoint int,
	voucherNumber int64,
	direction invoicing.Direction,
	counterpartyID uuid.UUID,
	counterpartyName string,
	total valueobject.Money,
	issueDate time.Time,
	dueDate *time.Time,
	linkedInvoiceID *uuid.UUID,
) (*Note, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Note kind must be CREDIT or DEBIT")
	}
	if !voucherType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Voucher type is not valid")
	}
	if salesPoint <= 0 || salesPoint > 9999 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Sales point must be between 1 and 9999")
	}
	if voucherNumber <= 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Voucher number must be positive")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Direction must be RECEIVABLE or PAYABLE")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Counterparty ID cannot be empty")
	}
	if counterpartyName == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Counterparty name cannot be empty")
	}
	if !total.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Note total must be positive")
	}
	if !total.Currency().IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR", "Unknown currency %q", total.Currency())
	}
	if issueDate.IsZero() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Issue date is required")
	}
	if linkedInvoiceID != nil && *linkedInvoiceID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Linked invoice ID cannot be the nil UUID")
	}

	n := &Note{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		VoucherType:       voucherType,
		SalesPoint:        salesPoint,
		VoucherNumber:     voucherNumber,
		Direction:         direction,
		CounterpartyID:    counterpartyID,
		CounterpartyName:  counterpartyName,
		Currency:          total.Currency(),
		Total:             total.Amount(),
		IssueDate:         issueDate,
		DueDate:           dueDate,
		LinkedInvoiceID:   linkedInvoiceID,
		Status:            NoteStatusPending,
		ExcessAmount:      decimal.Zero,
	}

	n.AddDomainEvent(NewNoteIssuedEvent(n))

	return n, nil
}

// IsUnassociated returns true if the note has no linked invoice and feeds the
// standalone counterparty totals
func (n *Note) IsUnassociated() bool {
	return n.LinkedInvoiceID == nil
}

// MarkApplied records that the note's linked invoice absorbed it. For credit
// notes, excess carries the portion the invoice could not absorb.
func (n *Note) MarkApplied(excess decimal.Decimal) error {
	if n.Status != NoteStatusPending {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot apply a note in %s status", n.Status)
	}
	if n.LinkedInvoiceID == nil {
		return shared.NewDomainError("INVALID_STATE", "Cannot apply an unassociated note to an invoice")
	}
	if excess.IsNegative() {
		return shared.NewDomainError("VALIDATION_ERROR", "Excess amount cannot be negative")
	}

	now := time.Now()
	n.Status = NoteStatusApplied
	n.AppliedAt = &now
	n.ExcessAmount = excess
	n.UpdatedAt = now
	n.IncrementVersion()

	n.AddDomainEvent(NewNoteAppliedEvent(n))

	return nil
}

// Void voids a pending note
func (n *Note) Void(reason string) error {
	if n.Status != NoteStatusPending {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot void a note in %s status", n.Status)
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Void reason is required")
	}

	now := time.Now()
	n.Status = NoteStatusVoided
	n.VoidedAt = &now
	n.VoidReason = reason
	n.UpdatedAt = now
	n.IncrementVersion()

	n.AddDomainEvent(NewNoteVoidedEvent(n))

	return nil
}

// GetTotalMoney returns the note total as Money
func (n *Note) GetTotalMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(n.Total, n.Currency)
	return m
}

// FormattedVoucherNumber returns the fiscal display form, e.g. "A-0001-00000007"
func (n *Note) FormattedVoucherNumber() string {
	return fmt.Sprintf("%s-%04d-%08d", n.VoucherType, n.SalesPoint, n.VoucherNumber)
}
