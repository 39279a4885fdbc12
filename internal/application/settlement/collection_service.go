package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CollectionService provides application-level collection operations. It
// coordinates the collection aggregate, the invoices it settles, and the
// idempotency guard against double-submitted allocation requests.
type CollectionService struct {
	collectionRepo   settlement.CollectionRepository
	invoiceRepo      invoicing.InvoiceRepository
	allocationSvc    *settlement.AllocationService
	idempotencyStore shared.IdempotencyStore
	idempotencyCfg   shared.IdempotencyConfig
	eventPublisher   shared.EventPublisher
	logger           *zap.Logger
}

// CollectionServiceConfig holds the dependencies of CollectionService
type CollectionServiceConfig struct {
	CollectionRepo   settlement.CollectionRepository
	InvoiceRepo      invoicing.InvoiceRepository
	IdempotencyStore shared.IdempotencyStore
	Idempotency      *shared.IdempotencyConfig
	EventPublisher   shared.EventPublisher
	Logger           *zap.Logger
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(config CollectionServiceConfig) *CollectionService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idempotencyCfg := shared.DefaultIdempotencyConfig()
	if config.Idempotency != nil {
		idempotencyCfg = *config.Idempotency
	}
	return &CollectionService{
		collectionRepo:   config.CollectionRepo,
		invoiceRepo:      config.InvoiceRepo,
		allocationSvc:    settlement.NewAllocationService(),
		idempotencyStore: config.IdempotencyStore,
		idempotencyCfg:   idempotencyCfg,
		eventPublisher:   config.EventPublisher,
		logger:           logger,
	}
}

// ===================== Requests and Responses =====================

// WithholdingRequest represents one withholding certificate in a registration request
type WithholdingRequest struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// RegisterCollectionRequest represents a request to register a collection
type RegisterCollectionRequest struct {
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	GrossAmount      decimal.Decimal      `json:"gross_amount"`
	Currency         string               `json:"currency"`
	Method           string               `json:"method"`
	Reference        string               `json:"reference"`
	CollectionDate   time.Time            `json:"collection_date"`
	Withholdings     []WithholdingRequest `json:"withholdings,omitempty"`
}

// AllocationTargetRequest pairs an invoice with the gross amount to apply to it
type AllocationTargetRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// AllocateCollectionRequest represents a request to split a collection across invoices
type AllocateCollectionRequest struct {
	Targets []AllocationTargetRequest `json:"targets"`
}

// WithholdingResponse represents a withholding in API responses
type WithholdingResponse struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// InvoiceAllocationResponse represents one allocation in API responses
type InvoiceAllocationResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	VoucherNumber string          `json:"voucher_number"`
	Amount        decimal.Decimal `json:"amount"`
	AllocatedAt   time.Time       `json:"allocated_at"`
}

// CollectionResponse represents a collection in API responses
type CollectionResponse struct {
	ID                uuid.UUID                   `json:"id"`
	CounterpartyID    uuid.UUID                   `json:"counterparty_id"`
	CounterpartyName  string                      `json:"counterparty_name"`
	Currency          string                      `json:"currency"`
	GrossAmount       decimal.Decimal             `json:"gross_amount"`
	NetAmount         decimal.Decimal             `json:"net_amount"`
	AllocatedAmount   decimal.Decimal             `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal             `json:"unallocated_amount"`
	Method            string                      `json:"method"`
	Reference         string                      `json:"reference,omitempty"`
	Status            string                      `json:"status"`
	CollectionDate    time.Time                   `json:"collection_date"`
	Withholdings      []WithholdingResponse       `json:"withholdings,omitempty"`
	Allocations       []InvoiceAllocationResponse `json:"allocations,omitempty"`
	ConfirmedAt       *time.Time                  `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time                  `json:"cancelled_at,omitempty"`
	CancelReason      string                      `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
	Version           int                         `json:"version"`
}

// AllocateCollectionResult is the outcome of one allocation request
type AllocateCollectionResult struct {
	Collection       *CollectionResponse `json:"collection"`
	UpdatedInvoices  []uuid.UUID         `json:"updated_invoices"`
	TotalAllocated   decimal.Decimal     `json:"total_allocated"`
	AlreadyProcessed bool                `json:"already_processed,omitempty"`
}

// CollectionListFilter defines filtering options for collection list queries
type CollectionListFilter struct {
	Search         string     `form:"search"`
	CounterpartyID *uuid.UUID `form:"counterparty_id"`
	Status         string     `form:"status"`
	Method         string     `form:"method"`
	Currency       string     `form:"currency"`
	FromDate       *time.Time `form:"from_date"`
	ToDate         *time.Time `form:"to_date"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}

// ===================== Operations =====================

// RegisterCollection registers a draft collection. Withholdings reduce the
// cash received, never the gross amount applied to the debtor's invoices.
func (s *CollectionService) RegisterCollection(ctx context.Context, req RegisterCollectionRequest) (*CollectionResponse, error) {
	gross, err := valueobject.NewMoney(req.GrossAmount, valueobject.Currency(req.Currency))
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
	}

	withholdings := make(settlement.Withholdings, 0, len(req.Withholdings))
	for _, w := range req.Withholdings {
		entry, err := settlement.NewWithholding(settlement.WithholdingType(w.Type), w.Name, w.Amount)
		if err != nil {
			return nil, err
		}
		withholdings = append(withholdings, entry)
	}

	collection, err := settlement.NewCollection(
		req.CounterpartyID,
		req.CounterpartyName,
		gross,
		settlement.PaymentMethod(req.Method),
		req.CollectionDate,
		withholdings,
	)
	if err != nil {
		return nil, err
	}

	if req.Reference != "" {
		if err := collection.SetReference(req.Reference); err != nil {
			return nil, err
		}
	}

	if err := s.collectionRepo.Save(ctx, collection); err != nil {
		return nil, err
	}

	s.publishCollectionEvents(ctx, collection)
	return toCollectionResponse(collection), nil
}

// GetCollectionByID gets a collection by ID
func (s *CollectionService) GetCollectionByID(ctx context.Context, id uuid.UUID) (*CollectionResponse, error) {
	collection, err := s.findCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCollectionResponse(collection), nil
}

// ListCollections lists collections with filtering
func (s *CollectionService) ListCollections(ctx context.Context, filter CollectionListFilter) ([]CollectionResponse, int64, error) {
	domainFilter := settlement.CollectionFilter{
		CounterpartyID: filter.CounterpartyID,
		FromDate:       filter.FromDate,
		ToDate:         filter.ToDate,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Status != "" {
		status := settlement.CollectionStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.Method != "" {
		method := settlement.PaymentMethod(filter.Method)
		domainFilter.Method = &method
	}
	if filter.Currency != "" {
		currency := valueobject.Currency(filter.Currency)
		domainFilter.Currency = &currency
	}

	collections, err := s.collectionRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.collectionRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]CollectionResponse, len(collections))
	for i := range collections {
		responses[i] = *toCollectionResponse(&collections[i])
	}
	return responses, total, nil
}

// ConfirmCollection confirms a draft collection so it can be allocated
func (s *CollectionService) ConfirmCollection(ctx context.Context, id uuid.UUID) (*CollectionResponse, error) {
	collection, err := s.findCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	expectedVersion := collection.Version
	if err := collection.Confirm(); err != nil {
		return nil, err
	}

	if err := s.collectionRepo.SaveWithLock(ctx, collection, expectedVersion); err != nil {
		return nil, err
	}

	s.publishCollectionEvents(ctx, collection)
	return toCollectionResponse(collection), nil
}

// AllocateCollection splits a confirmed collection's gross amount across
// invoices. The target amounts must sum exactly to the unallocated gross
// amount. A replayed request is answered from the idempotency guard without
// touching any aggregate.
func (s *CollectionService) AllocateCollection(ctx context.Context, id uuid.UUID, req AllocateCollectionRequest) (*AllocateCollectionResult, error) {
	collection, err := s.findCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	idempotencyKey := fmt.Sprintf("settlement:allocate:%s", id)
	if s.idempotencyCfg.Enabled && s.idempotencyStore != nil {
		processed, err := s.idempotencyStore.IsProcessed(ctx, idempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency check failed, continuing",
				zap.String("key", idempotencyKey), zap.Error(err))
		} else if processed {
			return &AllocateCollectionResult{
				Collection:       toCollectionResponse(collection),
				AlreadyProcessed: true,
			}, nil
		}
	}

	targets := make([]settlement.AllocationTarget, 0, len(req.Targets))
	invoiceVersions := make(map[uuid.UUID]int, len(req.Targets))
	for _, t := range req.Targets {
		invoice, err := s.invoiceRepo.FindByID(ctx, t.InvoiceID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainErrorf("NOT_FOUND", "Invoice %s not found", t.InvoiceID)
			}
			return nil, err
		}
		amount, err := valueobject.NewMoney(t.Amount, collection.Currency)
		if err != nil {
			return nil, shared.NewDomainError("VALIDATION_ERROR", err.Error())
		}
		invoiceVersions[invoice.ID] = invoice.Version
		targets = append(targets, settlement.AllocationTarget{Invoice: invoice, Amount: amount})
	}

	collectionVersion := collection.Version
	result, err := s.allocationSvc.AllocateCollection(collection, targets)
	if err != nil {
		return nil, err
	}

	if err := s.collectionRepo.SaveWithLock(ctx, collection, collectionVersion); err != nil {
		return nil, err
	}
	updatedIDs := make([]uuid.UUID, 0, len(result.UpdatedInvoices))
	for _, invoice := range result.UpdatedInvoices {
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice, invoiceVersions[invoice.ID]); err != nil {
			return nil, err
		}
		updatedIDs = append(updatedIDs, invoice.ID)
		s.publishEvents(ctx, invoice.ID, invoice.GetDomainEvents())
		invoice.ClearDomainEvents()
	}

	if s.idempotencyCfg.Enabled && s.idempotencyStore != nil {
		if _, err := s.idempotencyStore.MarkProcessed(ctx, idempotencyKey, s.idempotencyCfg.TTL); err != nil {
			s.logger.Warn("Failed to mark allocation processed",
				zap.String("key", idempotencyKey), zap.Error(err))
		}
	}

	s.logger.Info("Collection allocated",
		zap.String("collection_id", collection.ID.String()),
		zap.Int("invoices", len(updatedIDs)),
		zap.String("total_allocated", result.TotalAllocated.String()))

	s.publishCollectionEvents(ctx, collection)
	return &AllocateCollectionResult{
		Collection:      toCollectionResponse(collection),
		UpdatedInvoices: updatedIDs,
		TotalAllocated:  result.TotalAllocated,
	}, nil
}

// CancelCollection cancels a collection that has no allocations
func (s *CollectionService) CancelCollection(ctx context.Context, id uuid.UUID, reason string) (*CollectionResponse, error) {
	collection, err := s.findCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	expectedVersion := collection.Version
	if err := collection.Cancel(reason); err != nil {
		return nil, err
	}

	if err := s.collectionRepo.SaveWithLock(ctx, collection, expectedVersion); err != nil {
		return nil, err
	}

	s.publishCollectionEvents(ctx, collection)
	return toCollectionResponse(collection), nil
}

// ReverseCollectionOnInvoice undoes a collection's effect on one invoice.
// The reversal restores the pending amount and reopens the settlement status;
// the reversed record stays in the ledger for audit.
func (s *CollectionService) ReverseCollectionOnInvoice(ctx context.Context, invoiceID, collectionID uuid.UUID, reason string) error {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return err
	}

	expectedVersion := invoice.Version
	if err := invoice.ReverseCollection(collectionID, reason); err != nil {
		return err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice, expectedVersion); err != nil {
		return err
	}

	s.logger.Info("Collection reversed on invoice",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("collection_id", collectionID.String()),
		zap.String("reason", reason))

	s.publishEvents(ctx, invoice.ID, invoice.GetDomainEvents())
	invoice.ClearDomainEvents()
	return nil
}

// ===================== Helper Functions =====================

func (s *CollectionService) findCollection(ctx context.Context, id uuid.UUID) (*settlement.Collection, error) {
	collection, err := s.collectionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Collection not found")
		}
		return nil, err
	}
	return collection, nil
}

func (s *CollectionService) publishCollectionEvents(ctx context.Context, collection *settlement.Collection) {
	s.publishEvents(ctx, collection.ID, collection.GetDomainEvents())
	collection.ClearDomainEvents()
}

func (s *CollectionService) publishEvents(ctx context.Context, aggregateID uuid.UUID, events []shared.DomainEvent) {
	if len(events) == 0 || s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish settlement events",
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err))
	}
}

func toCollectionResponse(c *settlement.Collection) *CollectionResponse {
	withholdings := make([]WithholdingResponse, len(c.Withholdings))
	for i, w := range c.Withholdings {
		withholdings[i] = WithholdingResponse{
			Type:   string(w.Type),
			Name:   w.Name,
			Amount: w.Amount,
		}
	}

	allocations := make([]InvoiceAllocationResponse, len(c.Allocations))
	for i, a := range c.Allocations {
		allocations[i] = InvoiceAllocationResponse{
			ID:            a.ID,
			InvoiceID:     a.InvoiceID,
			VoucherNumber: a.VoucherNumber,
			Amount:        a.Amount,
			AllocatedAt:   a.AllocatedAt,
		}
	}

	return &CollectionResponse{
		ID:                c.ID,
		CounterpartyID:    c.CounterpartyID,
		CounterpartyName:  c.CounterpartyName,
		Currency:          string(c.Currency),
		GrossAmount:       c.GrossAmount,
		NetAmount:         c.NetAmount,
		AllocatedAmount:   c.AllocatedAmount,
		UnallocatedAmount: c.UnallocatedAmount,
		Method:            string(c.Method),
		Reference:         c.Reference,
		Status:            string(c.Status),
		CollectionDate:    c.CollectionDate,
		Withholdings:      withholdings,
		Allocations:       allocations,
		ConfirmedAt:       c.ConfirmedAt,
		CancelledAt:       c.CancelledAt,
		CancelReason:      c.CancelReason,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		Version:           c.Version,
	}
}
