package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	invoicingapp "github.com/facturante/backend/internal/application/invoicing"
	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/facturante/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInvoiceRepository implements invoicing.InvoiceRepository for testing
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

// MockEventPublisher implements shared.EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func newInvoiceTestRouter(repo invoicing.InvoiceRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	publisher := &MockEventPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	service := invoicingapp.NewInvoiceService(repo, publisher, nil)
	h := NewInvoiceHandler(service)

	engine := gin.New()
	api := engine.Group("/api/v1")
	h.RegisterRoutes(api)
	return engine
}

func draftTestInvoice(t *testing.T) *invoicing.Invoice {
	t.Helper()

	line, err := invoicing.NewInvoiceLine(
		"Consulting services",
		decimal.NewFromInt(10),
		decimal.NewFromInt(100),
		decimal.Zero,
		mustPercentageRate(t, 21),
	)
	require.NoError(t, err)

	inv, err := invoicing.NewInvoice(
		invoicing.VoucherTypeA,
		1,
		invoicing.DirectionReceivable,
		uuid.New(),
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
	return inv
}

func mustPercentageRate(t *testing.T, rate int64) invoicing.TaxRate {
	t.Helper()
	r, err := invoicing.NewPercentageTaxRate(decimal.NewFromInt(rate))
	require.NoError(t, err)
	return r
}

func TestInvoiceHandler_GetInvoice(t *testing.T) {
	t.Run("returns invoice when found", func(t *testing.T) {
		repo := &MockInvoiceRepository{}
		inv := draftTestInvoice(t)
		repo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

		router := newInvoiceTestRouter(repo)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+inv.ID.String(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, inv.ID.String(), data["id"])
		assert.Equal(t, "A", data["voucher_type"])
		assert.Equal(t, "DRAFT", data["status"])
		assert.Equal(t, "1210", data["grand_total"])

		repo.AssertExpectations(t)
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		repo := &MockInvoiceRepository{}
		repo.On("FindByID", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)

		router := newInvoiceTestRouter(repo)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("returns 400 for malformed ID", func(t *testing.T) {
		repo := &MockInvoiceRepository{}
		router := newInvoiceTestRouter(repo)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/not-a-uuid", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInvoiceHandler_CreateInvoice(t *testing.T) {
	t.Run("creates draft invoice", func(t *testing.T) {
		repo := &MockInvoiceRepository{}
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)

		router := newInvoiceTestRouter(repo)

		body := map[string]interface{}{
			"voucher_type":      "A",
			"sales_point":       1,
			"direction":         "RECEIVABLE",
			"counterparty_id":   uuid.NewString(),
			"counterparty_name": "ACME SA",
			"concept":           "SERVICES",
			"currency":          "ARS",
			"exchange_rate":     "1",
			"lines": []map[string]interface{}{
				{
					"description":      "Consulting services",
					"quantity":         "10",
					"unit_price":       "100",
					"discount_percent": "0",
					"tax_rate":         map[string]interface{}{"kind": "PERCENTAGE", "rate": "21"},
				},
			},
		}
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "DRAFT", data["status"])
		assert.Equal(t, "1000", data["subtotal"])
		assert.Equal(t, "210", data["tax_total"])
		assert.Equal(t, "1210", data["pending_amount"])
		assert.Equal(t, float64(0), data["voucher_number"])

		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid direction", func(t *testing.T) {
		repo := &MockInvoiceRepository{}
		router := newInvoiceTestRouter(repo)

		body := map[string]interface{}{
			"voucher_type":      "A",
			"sales_point":       1,
			"direction":         "SIDEWAYS",
			"counterparty_id":   uuid.NewString(),
			"counterparty_name": "ACME SA",
			"concept":           "SERVICES",
			"currency":          "ARS",
			"exchange_rate":     "1",
			"lines":             []map[string]interface{}{},
		}
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		repo.AssertNotCalled(t, "Save")
	})
}

func TestInvoiceHandler_ListInvoices(t *testing.T) {
	repo := &MockInvoiceRepository{}
	inv := draftTestInvoice(t)
	repo.On("FindAll", mock.Anything, mock.Anything).Return([]invoicing.Invoice{*inv}, nil)
	repo.On("Count", mock.Anything, mock.Anything).Return(int64(1), nil)

	router := newInvoiceTestRouter(repo)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices?direction=RECEIVABLE&page=1&page_size=10", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Equal(t, 10, resp.Meta.PageSize)

	items := resp.Data.([]interface{})
	assert.Len(t, items, 1)

	repo.AssertExpectations(t)
}

func TestInvoiceHandler_IssueInvoice(t *testing.T) {
	repo := &MockInvoiceRepository{}
	inv := draftTestInvoice(t)
	repo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	repo.On("NextVoucherNumber", mock.Anything, invoicing.VoucherTypeA, 1).Return(int64(42), nil)
	repo.On("SaveWithLock", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	router := newInvoiceTestRouter(repo)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/issue", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "ISSUED", data["status"])
	assert.Equal(t, float64(42), data["voucher_number"])
	assert.Equal(t, "A-0001-00000042", data["formatted_voucher"])

	repo.AssertExpectations(t)
}

func TestInvoiceHandler_VoidInvoice_RequiresReason(t *testing.T) {
	repo := &MockInvoiceRepository{}
	router := newInvoiceTestRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/void", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "FindByID")
}
