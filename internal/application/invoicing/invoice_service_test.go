package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Invoice Repository
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

// =============================================================================
// Mock Event Publisher
// =============================================================================

type MockEventPublisher struct {
	mock.Mock
	published []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	m.published = append(m.published, events...)
	return args.Error(0)
}

// =============================================================================
// Tests
// =============================================================================

func createRequest() CreateInvoiceRequest {
	rate, _ := invoicing.NewPercentageTaxRate(decimal.NewFromFloat(21))
	return CreateInvoiceRequest{
		VoucherType:      "A",
		SalesPoint:       1,
		Direction:        "RECEIVABLE",
		CounterpartyID:   uuid.New(),
		CounterpartyName: "ACME SA",
		Concept:          "PRODUCTS",
		Currency:         "ARS",
		ExchangeRate:     decimal.NewFromInt(1),
		Lines: []InvoiceLineRequest{
			{
				Description:     "Notebook",
				Quantity:        decimal.NewFromInt(2),
				UnitPrice:       decimal.NewFromInt(100),
				DiscountPercent: decimal.NewFromInt(10),
				TaxRate:         rate,
			},
		},
	}
}

func TestInvoiceService_CreateInvoice(t *testing.T) {
	t.Run("creates a draft with computed totals", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		publisher := new(MockEventPublisher)
		service := NewInvoiceService(repo, publisher, nil)

		repo.On("Save", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		resp, err := service.CreateInvoice(context.Background(), createRequest())
		require.NoError(t, err)

		assert.Equal(t, "DRAFT", resp.Status)
		assert.True(t, resp.Subtotal.Equal(decimal.NewFromFloat(180.00)))
		assert.True(t, resp.TaxTotal.Equal(decimal.NewFromFloat(37.80)))
		assert.True(t, resp.GrandTotal.Equal(decimal.NewFromFloat(217.80)))
		assert.Empty(t, resp.FormattedVoucher)
		repo.AssertExpectations(t)
		assert.NotEmpty(t, publisher.published)
	})

	t.Run("rejects an invalid line", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		req := createRequest()
		req.Lines[0].Quantity = decimal.Zero

		_, err := service.CreateInvoice(context.Background(), req)
		require.Error(t, err)
		repo.AssertNotCalled(t, "Save")
	})

	t.Run("rejects an empty line list", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		req := createRequest()
		req.Lines = nil

		_, err := service.CreateInvoice(context.Background(), req)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	})

	t.Run("requires a service period for services concepts", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		req := createRequest()
		req.Concept = "SERVICES"

		_, err := service.CreateInvoice(context.Background(), req)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
		repo.AssertNotCalled(t, "Save")
	})

	t.Run("rejects a half-specified service period", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		req := createRequest()
		req.Concept = "SERVICES"
		req.ServiceFrom = &from

		_, err := service.CreateInvoice(context.Background(), req)
		require.Error(t, err)
		repo.AssertNotCalled(t, "Save")
	})

	t.Run("creates a services invoice with its billed period", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		publisher := new(MockEventPublisher)
		service := NewInvoiceService(repo, publisher, nil)

		repo.On("Save", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
		req := createRequest()
		req.Concept = "SERVICES"
		req.ServiceFrom = &from
		req.ServiceTo = &to

		resp, err := service.CreateInvoice(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, resp.ServiceFrom)
		require.NotNil(t, resp.ServiceTo)
		assert.True(t, resp.ServiceFrom.Equal(from))
		assert.True(t, resp.ServiceTo.Equal(to))
	})
}

func TestInvoiceService_IssueInvoice(t *testing.T) {
	t.Run("assigns the next voucher number in the sequence", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		publisher := new(MockEventPublisher)
		service := NewInvoiceService(repo, publisher, nil)

		draft := draftInvoice(t)
		repo.On("FindByID", mock.Anything, draft.ID).Return(draft, nil)
		repo.On("NextVoucherNumber", mock.Anything, invoicing.VoucherTypeA, 1).Return(int64(42), nil)
		repo.On("SaveWithLock", mock.Anything, draft, mock.AnythingOfType("int")).Return(nil)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		resp, err := service.IssueInvoice(context.Background(), draft.ID, IssueInvoiceRequest{})
		require.NoError(t, err)

		assert.Equal(t, "ISSUED", resp.Status)
		assert.Equal(t, int64(42), resp.VoucherNumber)
		assert.Equal(t, "A-0001-00000042", resp.FormattedVoucher)
		assert.True(t, resp.PendingAmount.Equal(resp.GrandTotal))
		repo.AssertExpectations(t)
	})

	t.Run("returns NOT_FOUND for an unknown invoice", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := service.IssueInvoice(context.Background(), id, IssueInvoiceRequest{})
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
		assert.Equal(t, "Invoice not found", domainErr.Message)
	})

	t.Run("does not reserve a voucher number for a non-draft invoice", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		issued := draftInvoice(t)
		require.NoError(t, issued.Issue(9, time.Now()))
		repo.On("FindByID", mock.Anything, issued.ID).Return(issued, nil)

		_, err := service.IssueInvoice(context.Background(), issued.ID, IssueInvoiceRequest{})
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
		repo.AssertNotCalled(t, "NextVoucherNumber")
	})

	t.Run("propagates a concurrency conflict from the repository", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		draft := draftInvoice(t)
		repo.On("FindByID", mock.Anything, draft.ID).Return(draft, nil)
		repo.On("NextVoucherNumber", mock.Anything, invoicing.VoucherTypeA, 1).Return(int64(7), nil)
		repo.On("SaveWithLock", mock.Anything, draft, mock.AnythingOfType("int")).Return(shared.ErrConcurrencyConflict)

		_, err := service.IssueInvoice(context.Background(), draft.ID, IssueInvoiceRequest{})
		require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestInvoiceService_UpdateInvoiceLines(t *testing.T) {
	t.Run("recomputes totals for a draft", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		draft := draftInvoice(t)
		repo.On("FindByID", mock.Anything, draft.ID).Return(draft, nil)
		repo.On("SaveWithLock", mock.Anything, draft, mock.AnythingOfType("int")).Return(nil)

		resp, err := service.UpdateInvoiceLines(context.Background(), draft.ID, UpdateInvoiceLinesRequest{
			Lines: []InvoiceLineRequest{
				{
					Description: "Soporte mensual",
					Quantity:    decimal.NewFromInt(1),
					UnitPrice:   decimal.NewFromInt(500),
					TaxRate:     invoicing.NotTaxedTaxRate(),
				},
			},
		})
		require.NoError(t, err)
		assert.True(t, resp.GrandTotal.Equal(decimal.NewFromInt(500)))
	})

	t.Run("rejects line changes once issued", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		issued := draftInvoice(t)
		require.NoError(t, issued.Issue(1, time.Now()))
		repo.On("FindByID", mock.Anything, issued.ID).Return(issued, nil)

		_, err := service.UpdateInvoiceLines(context.Background(), issued.ID, UpdateInvoiceLinesRequest{
			Lines: []InvoiceLineRequest{
				{
					Description: "Soporte mensual",
					Quantity:    decimal.NewFromInt(1),
					UnitPrice:   decimal.NewFromInt(500),
					TaxRate:     invoicing.NotTaxedTaxRate(),
				},
			},
		})
		require.Error(t, err)
		repo.AssertNotCalled(t, "SaveWithLock")
	})
}

func TestInvoiceService_VoidInvoice(t *testing.T) {
	t.Run("voids an invoice without settlements", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		draft := draftInvoice(t)
		repo.On("FindByID", mock.Anything, draft.ID).Return(draft, nil)
		repo.On("SaveWithLock", mock.Anything, draft, mock.AnythingOfType("int")).Return(nil)

		resp, err := service.VoidInvoice(context.Background(), draft.ID, "carga duplicada")
		require.NoError(t, err)
		assert.Equal(t, "VOIDED", resp.Status)
		assert.Equal(t, "carga duplicada", resp.VoidReason)
	})
}

func TestInvoiceService_ListInvoices(t *testing.T) {
	t.Run("maps filter fields onto the repository filter", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		service := NewInvoiceService(repo, nil, nil)

		draft := draftInvoice(t)
		var captured invoicing.InvoiceFilter
		repo.On("FindAll", mock.Anything, mock.AnythingOfType("invoicing.InvoiceFilter")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(invoicing.InvoiceFilter)
			}).
			Return([]invoicing.Invoice{*draft}, nil)
		repo.On("Count", mock.Anything, mock.AnythingOfType("invoicing.InvoiceFilter")).Return(int64(1), nil)

		responses, total, err := service.ListInvoices(context.Background(), InvoiceListFilter{
			Direction: "RECEIVABLE",
			Status:    "DRAFT",
			Currency:  "ARS",
			Page:      2,
			PageSize:  25,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, responses, 1)

		require.NotNil(t, captured.Direction)
		assert.Equal(t, invoicing.DirectionReceivable, *captured.Direction)
		require.NotNil(t, captured.Status)
		assert.Equal(t, invoicing.InvoiceStatusDraft, *captured.Status)
		assert.Equal(t, 2, captured.Page)
		assert.Equal(t, 25, captured.PageSize)
	})
}

// draftInvoice builds a draft with one not-taxed line of 1000 ARS
func draftInvoice(t *testing.T) *invoicing.Invoice {
	t.Helper()

	line, err := invoicing.NewInvoiceLine(
		"Servicio profesional",
		decimal.NewFromInt(1),
		decimal.NewFromInt(1000),
		decimal.Zero,
		invoicing.NotTaxedTaxRate(),
	)
	require.NoError(t, err)

	inv, err := invoicing.NewInvoice(
		invoicing.VoucherTypeA,
		1,
		invoicing.DirectionReceivable,
		uuid.New(),
		"ACME SA",
		invoicing.ConceptServices,
		"ARS",
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
	return inv
}
