package balance

import (
	"context"
	"testing"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mocks
// =============================================================================

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByVoucher(ctx context.Context, voucherType invoicing.VoucherType, salesPoint int, voucherNumber int64) (*invoicing.Invoice, error) {
	args := m.Called(ctx, voucherType, salesPoint, voucherNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, counterpartyID, direction, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOutstanding(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, counterpartyID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOverdue(ctx context.Context, asOf time.Time, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, asOf, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) NextVoucherNumber(ctx context.Context, voucherType invoicing.VoucherType, salesPoint int) (int64, error) {
	args := m.Called(ctx, voucherType, salesPoint)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice, expectedVersion int) error {
	args := m.Called(ctx, invoice, expectedVersion)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Count(ctx context.Context, filter invoicing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Note), args.Error(1)
}

func (m *MockNoteRepository) FindAll(ctx context.Context, filter settlement.NoteFilter) ([]settlement.Note, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]settlement.Note), args.Error(1)
}

func (m *MockNoteRepository) FindByCounterparty(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction, filter settlement.NoteFilter) ([]settlement.Note, error) {
	args := m.Called(ctx, counterpartyID, direction, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]settlement.Note), args.Error(1)
}

func (m *MockNoteRepository) FindUnassociated(ctx context.Context, counterpartyID uuid.UUID, direction invoicing.Direction) ([]settlement.Note, error) {
	args := m.Called(ctx, counterpartyID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]settlement.Note), args.Error(1)
}

func (m *MockNoteRepository) Save(ctx context.Context, note *settlement.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) SaveWithLock(ctx context.Context, note *settlement.Note, expectedVersion int) error {
	args := m.Called(ctx, note, expectedVersion)
	return args.Error(0)
}

func (m *MockNoteRepository) Count(ctx context.Context, filter settlement.NoteFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Tests
// =============================================================================

func issuedInvoice(t *testing.T, counterpartyID uuid.UUID, amount float64) invoicing.Invoice {
	t.Helper()

	line, err := invoicing.NewInvoiceLine(
		"Servicio profesional",
		decimal.NewFromInt(1),
		decimal.NewFromFloat(amount),
		decimal.Zero,
		invoicing.NotTaxedTaxRate(),
	)
	require.NoError(t, err)

	inv, err := invoicing.NewInvoice(
		invoicing.VoucherTypeA,
		1,
		invoicing.DirectionReceivable,
		counterpartyID,
		"ACME SA",
		invoicing.ConceptServices,
		valueobject.ARS,
		decimal.NewFromInt(1),
		[]invoicing.InvoiceLine{line},
		nil,
		nil,
		&invoicing.ServicePeriod{
			From: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
		},
	)
	require.NoError(t, err)
	require.NoError(t, inv.Issue(1, time.Now()))
	return *inv
}

func pendingCreditNote(t *testing.T, counterpartyID uuid.UUID, total float64) settlement.Note {
	t.Helper()

	note, err := settlement.NewNote(
		settlement.NoteKindCredit,
		invoicing.VoucherTypeA,
		1,
		5,
		invoicing.DirectionReceivable,
		counterpartyID,
		"ACME SA",
		valueobject.NewMoneyARSFromFloat(total),
		time.Now(),
		nil,
		nil,
	)
	require.NoError(t, err)
	return *note
}

func TestBalanceService_GetEntityBalances(t *testing.T) {
	t.Run("combines invoices and unassociated notes into a ranked position", func(t *testing.T) {
		counterpartyID := uuid.New()
		invoiceRepo := new(MockInvoiceRepository)
		noteRepo := new(MockNoteRepository)
		service := NewBalanceService(invoiceRepo, noteRepo, valueobject.ARS, nil)

		invoiceRepo.On("FindAll", mock.Anything, mock.AnythingOfType("invoicing.InvoiceFilter")).
			Return([]invoicing.Invoice{issuedInvoice(t, counterpartyID, 1000)}, nil)
		noteRepo.On("FindAll", mock.Anything, mock.AnythingOfType("settlement.NoteFilter")).
			Return([]settlement.Note{pendingCreditNote(t, counterpartyID, 300)}, nil)

		balances, err := service.GetEntityBalances(context.Background(), "RECEIVABLE")
		require.NoError(t, err)
		require.Len(t, balances, 1)

		b := balances[0]
		assert.Equal(t, counterpartyID, b.CounterpartyID)
		require.Len(t, b.Currencies, 1)
		assert.Equal(t, "ARS", b.Currencies[0].Currency)
		assert.True(t, b.Currencies[0].Pending.Equal(decimal.NewFromInt(1000)))
		assert.True(t, b.Currencies[0].Credits.Equal(decimal.NewFromInt(300)))
		assert.True(t, b.Currencies[0].NetAmount.Equal(decimal.NewFromInt(700)))
		assert.Equal(t, "DEBIT", b.Currencies[0].NetType)
	})

	t.Run("requests only pending unassociated notes from the repository", func(t *testing.T) {
		invoiceRepo := new(MockInvoiceRepository)
		noteRepo := new(MockNoteRepository)
		service := NewBalanceService(invoiceRepo, noteRepo, valueobject.ARS, nil)

		invoiceRepo.On("FindAll", mock.Anything, mock.AnythingOfType("invoicing.InvoiceFilter")).
			Return([]invoicing.Invoice{}, nil)

		var captured settlement.NoteFilter
		noteRepo.On("FindAll", mock.Anything, mock.AnythingOfType("settlement.NoteFilter")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(settlement.NoteFilter)
			}).
			Return([]settlement.Note{}, nil)

		_, err := service.GetEntityBalances(context.Background(), "PAYABLE")
		require.NoError(t, err)

		require.NotNil(t, captured.Status)
		assert.Equal(t, settlement.NoteStatusPending, *captured.Status)
		require.NotNil(t, captured.Unassociated)
		assert.True(t, *captured.Unassociated)
		require.NotNil(t, captured.Direction)
		assert.Equal(t, invoicing.DirectionPayable, *captured.Direction)
	})

	t.Run("rejects an unknown direction", func(t *testing.T) {
		service := NewBalanceService(new(MockInvoiceRepository), new(MockNoteRepository), valueobject.ARS, nil)

		_, err := service.GetEntityBalances(context.Background(), "SIDEWAYS")
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	})
}

func TestBalanceService_GetCounterpartyBalance(t *testing.T) {
	t.Run("returns nil for a counterparty with no open records", func(t *testing.T) {
		counterpartyID := uuid.New()
		invoiceRepo := new(MockInvoiceRepository)
		noteRepo := new(MockNoteRepository)
		service := NewBalanceService(invoiceRepo, noteRepo, valueobject.ARS, nil)

		invoiceRepo.On("FindAll", mock.Anything, mock.AnythingOfType("invoicing.InvoiceFilter")).
			Return([]invoicing.Invoice{}, nil)
		noteRepo.On("FindAll", mock.Anything, mock.AnythingOfType("settlement.NoteFilter")).
			Return([]settlement.Note{}, nil)

		b, err := service.GetCounterpartyBalance(context.Background(), counterpartyID, "RECEIVABLE")
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("scopes the repository queries to the counterparty", func(t *testing.T) {
		counterpartyID := uuid.New()
		invoiceRepo := new(MockInvoiceRepository)
		noteRepo := new(MockNoteRepository)
		service := NewBalanceService(invoiceRepo, noteRepo, valueobject.ARS, nil)

		var captured invoicing.InvoiceFilter
		invoiceRepo.On("FindAll", mock.Anything, mock.AnythingOfType("invoicing.InvoiceFilter")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(invoicing.InvoiceFilter)
			}).
			Return([]invoicing.Invoice{issuedInvoice(t, counterpartyID, 500)}, nil)
		noteRepo.On("FindAll", mock.Anything, mock.AnythingOfType("settlement.NoteFilter")).
			Return([]settlement.Note{}, nil)

		b, err := service.GetCounterpartyBalance(context.Background(), counterpartyID, "RECEIVABLE")
		require.NoError(t, err)
		require.NotNil(t, b)

		require.NotNil(t, captured.CounterpartyID)
		assert.Equal(t, counterpartyID, *captured.CounterpartyID)
		assert.True(t, b.Currencies[0].Pending.Equal(decimal.NewFromInt(500)))
	})
}
