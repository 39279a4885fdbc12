package invoicing

import (
	"context"
	"time"

	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID            // Filter by counterparty
	Direction      *Direction            // Filter by receivable/payable direction
	Status         *InvoiceStatus        // Filter by lifecycle status
	VoucherType    *VoucherType          // Filter by fiscal document class
	Currency       *valueobject.Currency // Filter by currency
	IssuedFrom     *time.Time            // Filter by issue date range start
	IssuedTo       *time.Time            // Filter by issue date range end
	DueFrom        *time.Time            // Filter by due date range start
	DueTo          *time.Time            // Filter by due date range end
	Overdue        *bool                 // Filter only overdue invoices
	MinPending     *decimal.Decimal      // Filter by minimum pending amount
	MaxPending     *decimal.Decimal      // Filter by maximum pending amount
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByVoucher finds an issued invoice by its fiscal identity
	FindByVoucher(ctx context.Context, voucherType VoucherType, salesPoint int, voucherNumber int64) (*Invoice, error)

	// FindAll finds invoices with filtering and pagination
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

	// FindByCounterparty finds invoices for a counterparty in one direction
	FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, direction Direction, filter InvoiceFilter) ([]Invoice, error)

	// FindOutstanding finds issued or partially settled invoices for a
	// counterparty in one direction, oldest issue date first
	FindOutstanding(ctx context.Context, counterpartyID uuid.UUID, direction Direction) ([]Invoice, error)

	// FindOverdue finds invoices past their due date and not yet settled
	FindOverdue(ctx context.Context, asOf time.Time, filter InvoiceFilter) ([]Invoice, error)

	// NextVoucherNumber reserves the next sequential voucher number for a
	// voucher type and sales point
	NextVoucherNumber(ctx context.Context, voucherType VoucherType, salesPoint int) (int64, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking on the aggregate version.
	// Returns shared.ErrConcurrencyConflict when the stored version moved.
	SaveWithLock(ctx context.Context, invoice *Invoice, expectedVersion int) error

	// Count counts invoices matching the filter
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)
}
