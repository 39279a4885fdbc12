package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/facturante/backend/internal/domain/invoicing"
	"github.com/facturante/backend/internal/domain/shared"
	"github.com/facturante/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService provides application-level invoice operations
type InvoiceService struct {
	invoiceRepo    invoicing.InvoiceRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo invoicing.InvoiceRepository,
	eventPublisher shared.EventPublisher,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoiceRepo:    invoiceRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// ===================== Requests and Responses =====================

// InvoiceLineRequest represents one invoice line in a create/update request.
// TaxRate accepts either the structured form or a bare legacy numeric code.
type InvoiceLineRequest struct {
	Description     string            `json:"description"`
	Quantity        decimal.Decimal   `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	TaxRate         invoicing.TaxRate `json:"tax_rate"`
}

// PerceptionRequest represents one perception line in a create/update request
type PerceptionRequest struct {
	Type string          `json:"type"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
	Base string          `json:"base"`
}

// CreateInvoiceRequest represents a request to create a draft invoice
type CreateInvoiceRequest struct {
	VoucherType      string               `json:"voucher_type"`
	SalesPoint       int                  `json:"sales_point"`
	Direction        string               `json:"direction"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Concept          string               `json:"concept"`
	Currency         string               `json:"currency"`
	ExchangeRate     decimal.Decimal      `json:"exchange_rate"`
	DueDate          *time.Time           `json:"due_date,omitempty"`
	ServiceFrom      *time.Time           `json:"service_from,omitempty"` // Required when the concept includes services
	ServiceTo        *time.Time           `json:"service_to,omitempty"`
	Lines            []InvoiceLineRequest `json:"lines"`
	Perceptions      []PerceptionRequest  `json:"perceptions,omitempty"`
}

// UpdateInvoiceLinesRequest replaces the lines and perceptions of a draft invoice
type UpdateInvoiceLinesRequest struct {
	Lines       []InvoiceLineRequest `json:"lines"`
	Perceptions []PerceptionRequest  `json:"perceptions,omitempty"`
}

// IssueInvoiceRequest represents a request to issue a draft invoice
type IssueInvoiceRequest struct {
	IssueDate *time.Time `json:"issue_date,omitempty"` // Defaults to now
}

// InvoiceLineResponse represents an invoice line in API responses
type InvoiceLineResponse struct {
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         string          `json:"tax_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
}

// PerceptionResponse represents a perception in API responses
type PerceptionResponse struct {
	Type string          `json:"type"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
	Base string          `json:"base"`
}

// SettlementRecordResponse represents one ledger entry in API responses
type SettlementRecordResponse struct {
	ID             uuid.UUID       `json:"id"`
	EventID        uuid.UUID       `json:"event_id"`
	Kind           string          `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Excess         decimal.Decimal `json:"excess,omitempty"`
	AppliedAt      time.Time       `json:"applied_at"`
	Status         string          `json:"status"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
	ReversalReason string          `json:"reversal_reason,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID               uuid.UUID                  `json:"id"`
	VoucherType      string                     `json:"voucher_type"`
	SalesPoint       int                        `json:"sales_point"`
	VoucherNumber    int64                      `json:"voucher_number"`
	FormattedVoucher string                     `json:"formatted_voucher,omitempty"`
	Direction        string                     `json:"direction"`
	CounterpartyID   uuid.UUID                  `json:"counterparty_id"`
	CounterpartyName string                     `json:"counterparty_name"`
	Concept          string                     `json:"concept"`
	Currency         string                     `json:"currency"`
	ExchangeRate     decimal.Decimal            `json:"exchange_rate"`
	IssueDate        *time.Time                 `json:"issue_date,omitempty"`
	DueDate          *time.Time                 `json:"due_date,omitempty"`
	ServiceFrom      *time.Time                 `json:"service_from,omitempty"`
	ServiceTo        *time.Time                 `json:"service_to,omitempty"`
	Lines            []InvoiceLineResponse      `json:"lines"`
	Perceptions      []PerceptionResponse       `json:"perceptions,omitempty"`
	Subtotal         decimal.Decimal            `json:"subtotal"`
	TaxTotal         decimal.Decimal            `json:"tax_total"`
	PerceptionTotal  decimal.Decimal            `json:"perception_total"`
	GrandTotal       decimal.Decimal            `json:"grand_total"`
	PendingAmount    decimal.Decimal            `json:"pending_amount"`
	Status           string                     `json:"status"`
	IsOverdue        bool                       `json:"is_overdue"`
	Settlements      []SettlementRecordResponse `json:"settlements,omitempty"`
	VoidedAt         *time.Time                 `json:"voided_at,omitempty"`
	VoidReason       string                     `json:"void_reason,omitempty"`
	SettledAt        *time.Time                 `json:"settled_at,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
	Version          int                        `json:"version"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	Search         string           `form:"search"`
	CounterpartyID *uuid.UUID       `form:"counterparty_id"`
	Direction      string           `form:"direction"`
	Status         string           `form:"status"`
	VoucherType    string           `form:"voucher_type"`
	Currency       string           `form:"currency"`
	IssuedFrom     *time.Time       `form:"issued_from"`
	IssuedTo       *time.Time       `form:"issued_to"`
	DueFrom        *time.Time       `form:"due_from"`
	DueTo          *time.Time       `form:"due_to"`
	Overdue        *bool            `form:"overdue"`
	MinPending     *decimal.Decimal `form:"min_pending"`
	MaxPending     *decimal.Decimal `form:"max_pending"`
	Page           int              `form:"page"`
	PageSize       int              `form:"page_size"`
}

// ===================== Operations =====================

// CreateInvoice creates a draft invoice with computed totals
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	lines, err := toLines(req.Lines)
	if err != nil {
		return nil, err
	}
	perceptions, err := toPerceptions(req.Perceptions)
	if err != nil {
		return nil, err
	}

	var servicePeriod *invoicing.ServicePeriod
	if req.ServiceFrom != nil || req.ServiceTo != nil {
		if req.ServiceFrom == nil || req.ServiceTo == nil {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Service period requires both a start and an end date")
		}
		period, err := invoicing.NewServicePeriod(*req.ServiceFrom, *req.ServiceTo)
		if err != nil {
			return nil, err
		}
		servicePeriod = &period
	}

	invoice, err := invoicing.NewInvoice(
		invoicing.VoucherType(req.VoucherType),
		req.SalesPoint,
		invoicing.Direction(req.Direction),
		req.CounterpartyID,
		req.CounterpartyName,
		invoicing.Concept(req.Concept),
		valueobject.Currency(req.Currency),
		req.ExchangeRate,
		lines,
		perceptions,
		req.DueDate,
		servicePeriod,
	)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	return toInvoiceResponse(invoice), nil
}

// GetInvoiceByID gets an invoice by ID
func (s *InvoiceService) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// GetInvoiceByVoucher gets an issued invoice by its fiscal identity
func (s *InvoiceService) GetInvoiceByVoucher(ctx context.Context, voucherType string, salesPoint int, voucherNumber int64) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByVoucher(ctx, invoicing.VoucherType(voucherType), salesPoint, voucherNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// ListInvoices lists invoices with filtering
func (s *InvoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	domainFilter := toDomainFilter(filter)

	invoices, err := s.invoiceRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.invoiceRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = *toInvoiceResponse(&invoices[i])
	}
	return responses, total, nil
}

// ListOverdueInvoices lists invoices past their due date and not yet settled
func (s *InvoiceService) ListOverdueInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.FindOverdue(ctx, time.Now(), toDomainFilter(filter))
	if err != nil {
		return nil, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = *toInvoiceResponse(&invoices[i])
	}
	return responses, nil
}

// UpdateInvoiceLines replaces the lines of a draft invoice and recomputes
// every derived total
func (s *InvoiceService) UpdateInvoiceLines(ctx context.Context, id uuid.UUID, req UpdateInvoiceLinesRequest) (*InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := toLines(req.Lines)
	if err != nil {
		return nil, err
	}
	perceptions, err := toPerceptions(req.Perceptions)
	if err != nil {
		return nil, err
	}

	expectedVersion := invoice.Version
	if err := invoice.ReplaceLines(lines, perceptions); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice, expectedVersion); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	return toInvoiceResponse(invoice), nil
}

// IssueInvoice assigns the next voucher number in the invoice's numbering
// sequence and freezes its totals
func (s *InvoiceService) IssueInvoice(ctx context.Context, id uuid.UUID, req IssueInvoiceRequest) (*InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reserve a voucher number only for an issuable draft; a rejected issue
	// must not leave a gap in the fiscal sequence.
	if err := invoice.CanIssue(); err != nil {
		return nil, err
	}

	voucherNumber, err := s.invoiceRepo.NextVoucherNumber(ctx, invoice.VoucherType, invoice.SalesPoint)
	if err != nil {
		return nil, err
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	expectedVersion := invoice.Version
	if err := invoice.Issue(voucherNumber, issueDate); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice issued",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("voucher", invoice.FormattedVoucherNumber()),
		zap.String("grand_total", invoice.GrandTotal.String()))

	s.publishEvents(ctx, invoice)
	return toInvoiceResponse(invoice), nil
}

// VoidInvoice voids an invoice that has no settlement activity
func (s *InvoiceService) VoidInvoice(ctx context.Context, id uuid.UUID, reason string) (*InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	expectedVersion := invoice.Version
	if err := invoice.Void(reason); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.SaveWithLock(ctx, invoice, expectedVersion); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	return toInvoiceResponse(invoice), nil
}

// ===================== Helper Functions =====================

func (s *InvoiceService) findInvoice(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, err
	}
	return invoice, nil
}

// publishEvents drains the aggregate's recorded events. Publish failures are
// logged, not returned: the state change is already persisted.
func (s *InvoiceService) publishEvents(ctx context.Context, invoice *invoicing.Invoice) {
	events := invoice.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish invoice events",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err))
		}
	}
	invoice.ClearDomainEvents()
}

func toLines(reqs []InvoiceLineRequest) ([]invoicing.InvoiceLine, error) {
	lines := make([]invoicing.InvoiceLine, 0, len(reqs))
	for _, r := range reqs {
		line, err := invoicing.NewInvoiceLine(r.Description, r.Quantity, r.UnitPrice, r.DiscountPercent, r.TaxRate)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func toPerceptions(reqs []PerceptionRequest) ([]invoicing.Perception, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	perceptions := make([]invoicing.Perception, 0, len(reqs))
	for _, r := range reqs {
		p, err := invoicing.NewPerception(
			invoicing.PerceptionType(r.Type),
			r.Name,
			r.Rate,
			invoicing.PerceptionBase(r.Base),
		)
		if err != nil {
			return nil, err
		}
		perceptions = append(perceptions, p)
	}
	return perceptions, nil
}

func toDomainFilter(filter InvoiceListFilter) invoicing.InvoiceFilter {
	domainFilter := invoicing.InvoiceFilter{
		CounterpartyID: filter.CounterpartyID,
		IssuedFrom:     filter.IssuedFrom,
		IssuedTo:       filter.IssuedTo,
		DueFrom:        filter.DueFrom,
		DueTo:          filter.DueTo,
		Overdue:        filter.Overdue,
		MinPending:     filter.MinPending,
		MaxPending:     filter.MaxPending,
	}
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize
	domainFilter.Search = filter.Search

	if filter.Direction != "" {
		direction := invoicing.Direction(filter.Direction)
		domainFilter.Direction = &direction
	}
	if filter.Status != "" {
		status := invoicing.InvoiceStatus(filter.Status)
		domainFilter.Status = &status
	}
	if filter.VoucherType != "" {
		voucherType := invoicing.VoucherType(filter.VoucherType)
		domainFilter.VoucherType = &voucherType
	}
	if filter.Currency != "" {
		currency := valueobject.Currency(filter.Currency)
		domainFilter.Currency = &currency
	}
	return domainFilter
}

func toInvoiceResponse(inv *invoicing.Invoice) *InvoiceResponse {
	lines := make([]InvoiceLineResponse, len(inv.Lines))
	for i, l := range inv.Lines {
		totals := l.Totals(inv.Currency)
		lines[i] = InvoiceLineResponse{
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxRate:         l.TaxRate.String(),
			Subtotal:        totals.Subtotal.Amount(),
			TaxAmount:       totals.Tax.Amount(),
		}
	}

	perceptions := make([]PerceptionResponse, len(inv.Perceptions))
	for i, p := range inv.Perceptions {
		perceptions[i] = PerceptionResponse{
			Type: string(p.Type),
			Name: p.Name,
			Rate: p.Rate,
			Base: string(p.Base),
		}
	}

	settlements := make([]SettlementRecordResponse, len(inv.Settlements))
	for i, r := range inv.Settlements {
		settlements[i] = SettlementRecordResponse{
			ID:             r.ID,
			EventID:        r.EventID,
			Kind:           string(r.Kind),
			Amount:         r.Amount,
			Excess:         r.Excess,
			AppliedAt:      r.AppliedAt,
			Status:         string(r.Status),
			ReversedAt:     r.ReversedAt,
			ReversalReason: r.ReversalReason,
		}
	}

	formatted := ""
	if inv.VoucherNumber > 0 {
		formatted = inv.FormattedVoucherNumber()
	}

	var serviceFrom, serviceTo *time.Time
	if inv.ServicePeriod != nil {
		serviceFrom, serviceTo = &inv.ServicePeriod.From, &inv.ServicePeriod.To
	}

	return &InvoiceResponse{
		ID:               inv.ID,
		VoucherType:      string(inv.VoucherType),
		SalesPoint:       inv.SalesPoint,
		VoucherNumber:    inv.VoucherNumber,
		FormattedVoucher: formatted,
		Direction:        string(inv.Direction),
		CounterpartyID:   inv.CounterpartyID,
		CounterpartyName: inv.CounterpartyName,
		Concept:          string(inv.Concept),
		Currency:         string(inv.Currency),
		ExchangeRate:     inv.ExchangeRate,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		ServiceFrom:      serviceFrom,
		ServiceTo:        serviceTo,
		Lines:            lines,
		Perceptions:      perceptions,
		Subtotal:         inv.Subtotal,
		TaxTotal:         inv.TaxTotal,
		PerceptionTotal:  inv.PerceptionTotal,
		GrandTotal:       inv.GrandTotal,
		PendingAmount:    inv.PendingAmount,
		Status:           string(inv.Status),
		IsOverdue:        inv.IsOverdue(time.Now()),
		Settlements:      settlements,
		VoidedAt:         inv.VoidedAt,
		VoidReason:       inv.VoidReason,
		SettledAt:        inv.SettledAt,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
		Version:          inv.Version,
	}
}
