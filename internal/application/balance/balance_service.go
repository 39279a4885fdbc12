package balance

import (
	"context"
	"sort"

	"github.com/facturante/backend/internal/domain/balance"
	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/settlement"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceService computes per-counterparty positions on demand. Balances are
// derived from invoice and note state at read time, never stored.
type BalanceService struct {
	invoiceRepo     invoicing.InvoiceRepository
	noteRepo        settlement.NoteRepository
	primaryCurrency valueobject.Currency
	logger          *zap.Logger
}

// NewBalanceService creates a new BalanceService. primaryCurrency ranks the
// result; pass the book's primary currency (normally ARS).
func NewBalanceService(
	invoiceRepo invoicing.InvoiceRepository,
	noteRepo settlement.NoteRepository,
	primaryCurrency valueobject.Currency,
	logger *zap.Logger,
) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !primaryCurrency.IsValid() {
		primaryCurrency = valueobject.DefaultCurrency
	}
	return &BalanceService{
		invoiceRepo:     invoiceRepo,
		noteRepo:        noteRepo,
		primaryCurrency: primaryCurrency,
		logger:          logger,
	}
}

// ===================== Responses =====================

// CurrencyBalanceResponse is one currency bucket of a counterparty position
type CurrencyBalanceResponse struct {
	Currency  string          `json:"currency"`
	Pending   decimal.Decimal `json:"pending"`
	Credits   decimal.Decimal `json:"credits"`
	Debits    decimal.Decimal `json:"debits"`
	NetAmount decimal.Decimal `json:"net_amount"`
	NetType   string          `json:"net_type"`
}

// EntityBalanceResponse represents one counterparty position in API responses
type EntityBalanceResponse struct {
	CounterpartyID   uuid.UUID                 `json:"counterparty_id"`
	CounterpartyName string                    `json:"counterparty_name"`
	Direction        string                    `json:"direction"`
	Currencies       []CurrencyBalanceResponse `json:"currencies"`
}

// ===================== Operations =====================

// GetEntityBalances computes the position of every counterparty with open
// records in the given direction, ranked by descending pending amount in the
// primary currency
func (s *BalanceService) GetEntityBalances(ctx context.Context, direction string) ([]EntityBalanceResponse, error) {
	dir := invoicing.Direction(direction)
	if !dir.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR", "Unknown direction %q", direction)
	}

	invoices, notes, err := s.loadOpenRecords(ctx, dir, nil)
	if err != nil {
		return nil, err
	}

	balances := balance.AggregateEntityBalances(invoices, notes, dir, s.primaryCurrency)
	responses := make([]EntityBalanceResponse, len(balances))
	for i := range balances {
		responses[i] = *toEntityBalanceResponse(&balances[i])
	}
	return responses, nil
}

// GetCounterpartyBalance computes the position of one counterparty in the
// given direction. A counterparty with no open records yields nil, not an error.
func (s *BalanceService) GetCounterpartyBalance(ctx context.Context, counterpartyID uuid.UUID, direction string) (*EntityBalanceResponse, error) {
	dir := invoicing.Direction(direction)
	if !dir.IsValid() {
		return nil, shared.NewDomainErrorf("VALIDATION_ERROR", "Unknown direction %q", direction)
	}

	invoices, notes, err := s.loadOpenRecords(ctx, dir, &counterpartyID)
	if err != nil {
		return nil, err
	}

	balances := balance.AggregateEntityBalances(invoices, notes, dir, s.primaryCurrency)
	if len(balances) == 0 {
		return nil, nil
	}
	return toEntityBalanceResponse(&balances[0]), nil
}

// ===================== Helper Functions =====================

func (s *BalanceService) loadOpenRecords(ctx context.Context, direction invoicing.Direction, counterpartyID *uuid.UUID) ([]invoicing.Invoice, []settlement.Note, error) {
	invoiceFilter := invoicing.InvoiceFilter{
		CounterpartyID: counterpartyID,
		Direction:      &direction,
	}
	invoices, err := s.invoiceRepo.FindAll(ctx, invoiceFilter)
	if err != nil {
		return nil, nil, err
	}

	unassociated := true
	pending := settlement.NoteStatusPending
	noteFilter := settlement.NoteFilter{
		CounterpartyID: counterpartyID,
		Direction:      &direction,
		Status:         &pending,
		Unassociated:   &unassociated,
	}
	notes, err := s.noteRepo.FindAll(ctx, noteFilter)
	if err != nil {
		return nil, nil, err
	}

	return invoices, notes, nil
}

func toEntityBalanceResponse(b *balance.EntityBalance) *EntityBalanceResponse {
	currencies := make([]CurrencyBalanceResponse, 0, len(b.NetByCurrency))
	for currency, net := range b.NetByCurrency {
		currencies = append(currencies, CurrencyBalanceResponse{
			Currency:  string(currency),
			Pending:   b.PendingByCurrency[currency],
			Credits:   b.CreditsByCurrency[currency],
			Debits:    b.DebitsByCurrency[currency],
			NetAmount: net.Amount,
			NetType:   string(net.Type),
		})
	}
	// Deterministic order for callers; map iteration is not
	sort.Slice(currencies, func(i, j int) bool {
		return currencies[i].Currency < currencies[j].Currency
	})

	return &EntityBalanceResponse{
		CounterpartyID:   b.CounterpartyID,
		CounterpartyName: b.CounterpartyName,
		Direction:        string(b.Direction),
		Currencies:       currencies,
	}
}
