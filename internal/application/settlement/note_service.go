package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NoteService provides application-level credit/debit note operations
type NoteService struct {
	noteRepo       settlement.NoteRepository
	invoiceRepo    invoicing.InvoiceRepository
	allocationSvc  *settlement.AllocationService
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewNoteService creates a new NoteService
func NewNoteService(
	noteRepo settlement.NoteRepository,
	invoiceRepo invoicing.InvoiceRepository,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteService{
		noteRepo:       noteRepo,
		invoiceRepo:    invoiceRepo,
		allocationSvc:  settlement.NewAllocationService(),
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// ===================== Requests and Responses =====================

// IssueNoteRequest represents a request to issue a credit or debit note.
// LinkedInvoiceID is optional: an unassociated note never mutates an invoice
// and instead feeds the counterparty's standalone credit or debit total.
type IssueNoteRequest struct {
	Kind             string          `json:"kind"`
	VoucherType      string          `json:"voucher_type"`
	SalesPoint       int             `json:"sales_point"`
	VoucherNumber    int64           `json:"voucher_number"`
	Direction        string          `json:"direction"`
	CounterpartyID   uuid.UUID       `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	LinkedInvoiceID  *uuid.UUID      `json:"linked_invoice_id,omitempty"`
}

// NoteResponse represents a note in API responses
type NoteResponse struct {
	ID               uuid.UUID       `json:"id"`
	Kind             string          `json:"kind"`
	VoucherType      string          `json:"voucher_type"`
	SalesPoint       int             `json:"sales_point"`
	VoucherNumber    int64           `json:"voucher_number"`
	FormattedVoucher string          `json:"formatted_voucher"`
	Direction        string          `json:"direction"`
	CounterpartyID   uuid.UUID       `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	Currency         string          `json:"currency"`
	Total            decimal.Decimal `json:"total"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	LinkedInvoiceID  *uuid.UUID      `json:"linked_invoice_id,omitempty"`
	Status           string          `json:"status"`
	AppliedAt        *time.Time      `json:"applied_at,omitempty"`
	ExcessAmount     decimal.Decimal `json:"excess_amount"`
	VoidedAt         *time.Time      `json:"voided_at,omitempty"`
	VoidReason       string          `json:"void_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

// DiscrepancyResponse surfaces a credit note portion the invoice could not absorb
type DiscrepancyResponse struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	NoteID    uuid.UUID       `json:"note_id"`
	Currency  string          `json:"currency"`
	Excess    decimal.Decimal `json:"excess"`
}

// ApplyNoteResult is the outcome of applying a note to its linked invoice
type ApplyNoteResult struct {
	Note        *NoteResponse        `json:"note"`
	InvoiceID   uuid.UUID            `json:"invoice_id"`
	Discrepancy *DiscrepancyResponse `json:"discrepancy,omitempty"`
}

// NoteListFilter defines filtering options for note list queries
type NoteListFilter struct {
	Search         string     `form:"search"`
	CounterpartyID *uuid.UUID `form:"counterparty_id"`
	Kind           string     `form:"kind"`
	Status         string     `form:"status"`
	Direction      string     `form:"direction"`
	Currency       string     `form:"currency"`
	Unassociated   *bool      `form:"unassociated"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}

// ===================== Operations =====================

// IssueNote issues a credit or debit note
func (s *NoteService) IssueNote(ctx context.Context, req IssueNoteRequest) (*NoteResponse, error) {
	total, err := valueobject.NewMoney(req.Total, valueobject.Currency(req.Currency))
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}

	if req.LinkedInvoiceID != nil {
		if _, err := s.invoiceRepo.FindByID(ctx, *req.LinkedInvoiceID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("NOT_FOUND", "Linked invoice not found")
			}
			return nil, err
		}
	}

	note, err := settlement.NewNote(
		settlement.NoteKind(req.Kind),
		invoicing.VoucherType(req.VoucherType),
		req.SalesPoint,
		req.VoucherNumber,
		invoicing.Direction(req.Direction),
		req.CounterpartyID,
		req.CounterpartyName,
		total,
		req.IssueDate,
		req.DueDate,
		req.LinkedInvoiceID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.noteRepo.Save(ctx, note); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, note.ID, note.GetDomainEvents())
	note.ClearDomainEvents()
	return toNoteResponse(note), nil
}

// GetNoteByID gets a note by ID
func (s *NoteService) GetNoteByID(ctx context.Context, id uuid.UUID) (*NoteResponse, error) {
	note, err := s.findNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return toNoteResponse(note), nil
}

// ListNotes lists notes with filtering
func (s *NoteService) ListNotes(ctx context.Context, filter NoteListFilter) ([]NoteResponse, int64, error) {
	domainFilter := settlement.NoteFilter{
		CounterpartyID: filter.CounterpartyID,
		Unassociated:   filter.Unassociated,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Kind != "" {
		kind := settlement.NoteKind(filter.Kind)
		domainFilter.Kind = &kind
	}
	if filter.Status != "" {
		status := settlement.NoteStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.Direction != "" {
		direction := invoicing.Direction(filter.Direction)
		domainFilter.Direction = &direction
	}
	if filter.Currency != "" {
		currency := valueobject.Currency(filter.Currency)
		domainFilter.Currency = &currency
	}

	notes, err := s.noteRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.noteRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]NoteResponse, len(notes))
	for i := range notes {
		responses[i] = *toNoteResponse(&notes[i])
	}
	return responses, total, nil
}

// ApplyNote applies a pending note to its linked invoice. A credit note
// reduces the pending amount, flooring at zero with the excess surfaced as a
// discrepancy; a debit note raises it and reopens a settled invoice.
func (s *NoteService) ApplyNote(ctx context.Context, noteID uuid.UUID) (*ApplyNoteResult, error) {
	note, err := s.findNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.LinkedInvoiceID == nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Note has no linked invoice")
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, *note.LinkedInvoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Linked invoice not found")
		}
		return nil, err
	}

	noteVersion := note.Version
	invoiceVersion := invoice.Version

	result, err := s.allocationSvc.ApplyNote(note, invoice)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice, invoiceVersion); err != nil {
		return nil, err
	}
	if err := s.noteRepo.SaveWithLock(ctx, note, noteVersion); err != nil {
		return nil, err
	}

	var discrepancy *DiscrepancyResponse
	if result.Discrepancy != nil {
		discrepancy = &DiscrepancyResponse{
			InvoiceID: result.Discrepancy.InvoiceID,
			NoteID:    result.Discrepancy.NoteID,
			Currency:  string(result.Discrepancy.Currency),
			Excess:    result.Discrepancy.Excess,
		}
		s.logger.Warn("Credit note exceeded invoice pending amount",
			zap.String("note_id", note.ID.String()),
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("excess", result.Discrepancy.Excess.String()))
	}

	s.publishEvents(ctx, invoice.ID, invoice.GetDomainEvents())
	invoice.ClearDomainEvents()
	s.publishEvents(ctx, note.ID, note.GetDomainEvents())
	note.ClearDomainEvents()

	return &ApplyNoteResult{
		Note:        toNoteResponse(note),
		InvoiceID:   invoice.ID,
		Discrepancy: discrepancy,
	}, nil
}

// VoidNote voids a pending note
func (s *NoteService) VoidNote(ctx context.Context, id uuid.UUID, reason string) (*NoteResponse, error) {
	note, err := s.findNote(ctx, id)
	if err != nil {
		return nil, err
	}

	expectedVersion := note.Version
	if err := note.Void(reason); err != nil {
		return nil, err
	}

	if err := s.noteRepo.SaveWithLock(ctx, note, expectedVersion); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, note.ID, note.GetDomainEvents())
	note.ClearDomainEvents()
	return toNoteResponse(note), nil
}

// ===================== Helper Functions =====================

func (s *NoteService) findNote(ctx context.Context, id uuid.UUID) (*settlement.Note, error) {
	note, err := s.noteRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Note not found")
		}
		return nil, err
	}
	return note, nil
}

func (s *NoteService) publishEvents(ctx context.Context, aggregateID uuid.UUID, events []shared.DomainEvent) {
	if len(events) == 0 || s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish note events",
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err))
	}
}

func toNoteResponse(n *settlement.Note) *NoteResponse {
	return &NoteResponse{
		ID:               n.ID,
		Kind:             string(n.Kind),
		VoucherType:      string(n.VoucherType),
		SalesPoint:       n.SalesPoint,
		VoucherNumber:    n.VoucherNumber,
		FormattedVoucher: n.FormattedVoucherNumber(),
		Direction:        string(n.Direction),
		CounterpartyID:   n.CounterpartyID,
		CounterpartyName: n.CounterpartyName,
		Currency:         string(n.Currency),
		Total:            n.Total,
		IssueDate:        n.IssueDate,
		DueDate:          n.DueDate,
		LinkedInvoiceID:  n.LinkedInvoiceID,
		Status:           string(n.Status),
		AppliedAt:        n.AppliedAt,
		ExcessAmount:     n.ExcessAmount,
		VoidedAt:         n.VoidedAt,
		VoidReason:       n.VoidReason,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
		Version:          n.Version,
	}
}
