package settlement

import (
	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discrepancy records a credit note portion that its target invoice could not
// absorb. It is always surfaced to the caller, never dropped.
type Discrepancy struct {
	InvoiceID uuid.UUID            `json:"invoice_id"`
	NoteID    uuid.UUID            `json:"note_id"`
	Currency  valueobject.Currency `json:"currency"`
	Excess    decimal.Decimal      `json:"excess"`
}

// AllocationTarget pairs one invoice with the gross amount to allocate to it
type AllocationTarget struct {
	Invoice *invoicing.Invoice
	Amount  valueobject.Money
}

// AllocationResult is the outcome of allocating one collection across invoices
type AllocationResult struct {
	Collection      *Collection
	UpdatedInvoices []*invoicing.Invoice
	Allocations     []InvoiceAllocation
	TotalAllocated  decimal.Decimal
}

// NoteApplicationResult is the outcome of applying a note to its linked invoice
type NoteApplicationResult struct {
	Note        *Note
	Invoice     *invoicing.Invoice
	Discrepancy *Discrepancy // Non-nil when a credit note exceeded the pending amount
}

// AllocationService is a domain service that coordinates the application of
// settlement events to invoices. It keeps both sides of each operation
// consistent: the collection or note records where it went, and the invoice
// ledger records what arrived.
type AllocationService struct{}

// NewAllocationService creates a new allocation service
func NewAllocationService() *AllocationService {
	return &AllocationService{}
}

// AllocateCollection splits a confirmed collection's gross amount across the
// given invoices. The target amounts must sum exactly to the collection's
// unallocated gross amount; a leftover is never dropped silently. All
// validations run before any aggregate is mutated, so a rejection leaves
// every invoice and the collection untouched.
func (s *AllocationService) AllocateCollection(collection *Collection, targets []AllocationTarget) (*AllocationResult, error) {
	if collection == nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Collection cannot be nil")
	}
	if !collection.Status.CanAllocate() {
		return nil, shared.NewDomainErrorf("INVALID_STATE",
			"Cannot allocate collection in %s status, must be CONFIRMED", collection.Status)
	}
	if len(targets) == 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "At least one allocation target is required")
	}

	total := decimal.Zero
	seen := make(map[uuid.UUID]bool, len(targets))
	for _, target := range targets {
		if target.Invoice == nil {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Allocation target invoice cannot be nil")
		}
		if !target.Amount.IsPositive() {
			return nil, shared.NewDomainErrorf("VALIDATION_ERROR",
				"Allocation amount for invoice %s must be positive", target.Invoice.GetID())
		}
		if target.Amount.Currency() != collection.Currency {
			return nil, shared.NewDomainErrorf("CURRENCY_MISMATCH",
				"Allocation currency %s does not match collection currency %s",
				target.Amount.Currency(), collection.Currency)
		}
		if target.Invoice.Currency != collection.Currency {
			return nil, shared.NewDomainErrorf("CURRENCY_MISMATCH",
				"Invoice %s currency %s does not match collection currency %s",
				target.Invoice.GetID(), target.Invoice.Currency, collection.Currency)
		}
		if target.Invoice.CounterpartyID != collection.CounterpartyID {
			return nil, shared.NewDomainErrorf("VALIDATION_ERROR",
				"Invoice %s belongs to a different counterparty", target.Invoice.GetID())
		}
		if seen[target.Invoice.GetID()] {
			return nil, shared.NewDomainErrorf("DUPLICATE_APPLICATION",
				"Invoice %s appears twice in the allocation targets", target.Invoice.GetID())
		}
		seen[target.Invoice.GetID()] = true
		if !target.Invoice.Status.CanSettle() {
			return nil, shared.NewDomainErrorf("INVALID_STATE",
				"Invoice %s cannot receive settlements in %s status", target.Invoice.GetID(), target.Invoice.Status)
		}
		if target.Amount.Amount().GreaterThan(target.Invoice.PendingAmount) {
			return nil, shared.NewDomainErrorf("OVER_ALLOCATION",
				"Allocation %s exceeds pending amount %s on invoice %s",
				target.Amount.Amount().StringFixed(2), target.Invoice.PendingAmount.StringFixed(2), target.Invoice.GetID())
		}
		total = total.Add(target.Amount.Amount())
	}

	if !total.Equal(collection.UnallocatedAmount) {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR",
			"Allocation targets sum to %s but the collection has %s unallocated; the full gross amount must be allocated",
			total.StringFixed(2), collection.UnallocatedAmount.StringFixed(2))
	}

	result := &AllocationResult{
		Collection:      collection,
		UpdatedInvoices: make([]*invoicing.Invoice, 0, len(targets)),
		Allocations:     make([]InvoiceAllocation, 0, len(targets)),
		TotalAllocated:  total,
	}

	for _, target := range targets {
		allocation, err := collection.AllocateToInvoice(target.Invoice.GetID(), target.Invoice.FormattedVoucherNumber(), target.Amount)
		if err != nil {
			return nil, err
		}
		if err := target.Invoice.ApplyCollection(collection.GetID(), target.Amount); err != nil {
			return nil, err
		}
		result.UpdatedInvoices = append(result.UpdatedInvoices, target.Invoice)
		result.Allocations = append(result.Allocations, *allocation)
	}

	return result, nil
}

// ApplyNote applies a linked note to its invoice. Credit notes reduce the
// pending amount flooring at zero, with any excess surfaced as a Discrepancy;
// debit notes raise it.
func (s *AllocationService) ApplyNote(note *Note, invoice *invoicing.Invoice) (*NoteApplicationResult, error) {
	if note == nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Note cannot be nil")
	}
	if invoice == nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Invoice cannot be nil")
	}
	if note.LinkedInvoiceID == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Unassociated notes bypass the settlement ledger")
	}
	if *note.LinkedInvoiceID != invoice.GetID() {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR",
			"Note %s is linked to invoice %s, not %s", note.GetID(), *note.LinkedInvoiceID, invoice.GetID())
	}
	if note.Status != NoteStatusPending {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "Cannot apply a note in %s status", note.Status)
	}

	result := &NoteApplicationResult{Note: note, Invoice: invoice}

	switch note.Kind {
	case NoteKindCredit:
		excess, err := invoice.ApplyCreditNote(note.GetID(), note.GetTotalMoney())
		if err != nil {
			return nil, err
		}
		if err := note.MarkApplied(excess.Amount()); err != nil {
			return nil, err
		}
		if excess.IsPositive() {
			result.Discrepancy = &Discrepancy{
				InvoiceID: invoice.GetID(),
				NoteID:    note.GetID(),
				Currency:  invoice.Currency,
				Excess:    excess.Amount(),
			}
		}
	case NoteKindDebit:
		if err := invoice.ApplyDebitNote(note.GetID(), note.GetTotalMoney()); err != nil {
			return nil, err
		}
		if err := note.MarkApplied(decimal.Zero); err != nil {
			return nil, err
		}
	default:
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Note kind must be CREDIT or DEBIT")
	}

	return result, nil
}
