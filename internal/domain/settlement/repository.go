package settlement

import (
	"context"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CollectionFilter defines filtering options for collection queries
type CollectionFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID
	Status         *CollectionStatus
	Method         *PaymentMethod
	Currency       *valueobject.Currency
	FromDate       *time.Time
	ToDate         *time.Time
}

// CollectionRepository defines the interface for collection persistence
type CollectionRepository interface {
	// FindByID finds a collection by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Collection, error)

	// FindAll finds collections with filtering and pagination
	FindAll(ctx context.Context, filter CollectionFilter) ([]Collection, error)

	// FindByCounterparty finds collections for a counterparty
	FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, filter CollectionFilter) ([]Collection, error)

	// Save creates or updates a collection
	Save(ctx context.Context, collection *Collection) error

	// SaveWithLock saves with optimistic locking on the aggregate version
	SaveWithLock(ctx context.Context, collection *Collection, expectedVersion int) error

	// Count counts collections matching the filter
	Count(ctx context.Context, filter CollectionFilter) (int64, error)
}

// NoteFilter defines filtering options for note queries
type NoteFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID
	Kind           *NoteKind
	Status         *NoteStatus
	Direction      *invoicing.Direction
	Currency       *valueobject.Currency
	Unassociated   *bool // Filter only notes with no linked invoice
}

// NoteRepository defines the interface for credit/debit note persistence
type NoteRepository interface {
	// FindByID finds a note by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Note, error)

	// FindAll finds notes with filtering and pagination
	FindAll(ctx context.Context, filter NoteFilter) ([]Note, error)

	// FindByCounterparty finds notes for a counterparty in one direction
	FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction, filter NoteFilter) ([]Note, error)

	// FindUnassociated finds pending notes with no linked invoice for a
	// counterparty in one direction
	FindUnassociated(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction) ([]Note, error)

	// Save creates or updates a note
	Save(ctx context.Context, note *Note) error

	// SaveWithLock saves with optimistic locking on the aggregate version
	SaveWithLock(ctx context.Context, note *Note, expectedVersion int) error

	// Count counts notes matching the filter
	Count(ctx context.Context, filter NoteFilter) (int64, error)
}
