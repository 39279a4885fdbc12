package settlement

import (
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant for Collection
const AggregateTypeCollection = "Collection"

// Event type constants for Collection
const (
	EventTypeCollectionRegistered = "CollectionRegistered"
	EventTypeCollectionConfirmed  = "CollectionConfirmed"
	EventTypeCollectionAllocated  = "CollectionAllocated"
	EventTypeCollectionCancelled  = "CollectionCancelled"
)

// CollectionRegisteredEvent is raised when a new collection is registered
type CollectionRegisteredEvent struct {
	shared.BaseDomainEvent
	CollectionID     uuid.UUID            `json:"collection_id"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Currency         valueobject.Currency `json:"currency"`
	GrossAmount      decimal.Decimal      `json:"gross_amount"`
	NetAmount        decimal.Decimal      `json:"net_amount"`
	WithholdingTotal decimal.Decimal      `json:"withholding_total"`
	Method           PaymentMethod        `json:"method"`
}

// NewCollectionRegisteredEvent creates a new CollectionRegisteredEvent
func NewCollectionRegisteredEvent(c *Collection) *CollectionRegisteredEvent {
	return &CollectionRegisteredEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCollectionRegistered, AggregateTypeCollection, c.ID),
		CollectionID:     c.ID,
		CounterpartyID:   c.CounterpartyID,
		CounterpartyName: c.CounterpartyName,
		Currency:         c.Currency,
		GrossAmount:      c.GrossAmount,
		NetAmount:        c.NetAmount,
		WithholdingTotal: c.Withholdings.Total(),
		Method:           c.Method,
	}
}

// CollectionConfirmedEvent is raised when a collection is confirmed
type CollectionConfirmedEvent struct {
	shared.BaseDomainEvent
	CollectionID uuid.UUID       `json:"collection_id"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
}

// NewCollectionConfirmedEvent creates a new CollectionConfirmedEvent
func NewCollectionConfirmedEvent(c *Collection) *CollectionConfirmedEvent {
	return &CollectionConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionConfirmed, AggregateTypeCollection, c.ID),
		CollectionID:    c.ID,
		GrossAmount:     c.GrossAmount,
	}
}

// CollectionAllocatedEvent is raised when part of a collection is allocated to an invoice
type CollectionAllocatedEvent struct {
	shared.BaseDomainEvent
	CollectionID      uuid.UUID       `json:"collection_id"`
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	Amount            decimal.Decimal `json:"amount"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	FullyAllocated    bool            `json:"fully_allocated"`
}

// NewCollectionAllocatedEvent creates a new CollectionAllocatedEvent
func NewCollectionAllocatedEvent(c *Collection, allocation *InvoiceAllocation) *CollectionAllocatedEvent {
	return &CollectionAllocatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeCollectionAllocated, AggregateTypeCollection, c.ID),
		CollectionID:      c.ID,
		InvoiceID:         allocation.InvoiceID,
		Amount:            allocation.Amount,
		UnallocatedAmount: c.UnallocatedAmount,
		FullyAllocated:    c.IsFullyAllocated(),
	}
}

// CollectionCancelledEvent is raised when a collection is cancelled
type CollectionCancelledEvent struct {
	shared.BaseDomainEvent
	CollectionID   uuid.UUID        `json:"collection_id"`
	PreviousStatus CollectionStatus `json:"previous_status"`
	CancelReason   string           `json:"cancel_reason"`
}

// NewCollectionCancelledEvent creates a new CollectionCancelledEvent
func NewCollectionCancelledEvent(c *Collection, previousStatus CollectionStatus) *CollectionCancelledEvent {
	return &CollectionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCollectionCancelled, AggregateTypeCollection, c.ID),
		CollectionID:    c.ID,
		PreviousStatus:  previousStatus,
		CancelReason:    c.CancelReason,
	}
}
