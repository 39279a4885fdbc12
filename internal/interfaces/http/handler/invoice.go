package handler

import (
	"strconv"
	"time"

	invoicingapp "github.com/facturante/backend/internal/application/invoicing"
	"github.com/facturante/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice related API endpoints
type InvoiceHandler struct {
	BaseHandler
	service *invoicingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service *invoicingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
	}
}

// ===================== Request DTOs =====================

// InvoiceListFilter represents filter parameters for invoice list
type InvoiceListFilter struct {
	Search         string `form:"search"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Direction      string `form:"direction" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
	Status         string `form:"status"`
	VoucherType    string `form:"voucher_type"`
	Currency       string `form:"currency"`
	IssuedFrom     string `form:"issued_from"`
	IssuedTo       string `form:"issued_to"`
	DueFrom        string `form:"due_from"`
	DueTo          string `form:"due_to"`
	Overdue        *bool  `form:"overdue"`
	MinPending     string `form:"min_pending"`
	MaxPending     string `form:"max_pending"`
	Page           int    `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// VoidInvoiceRequest represents a request to void an invoice
type VoidInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ===================== Handlers =====================

// ListInvoices returns a paginated list of invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var filter InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	serviceFilter, err := toInvoiceServiceFilter(filter)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoices, total, err := h.service.ListInvoices(c.Request.Context(), serviceFilter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// ListOverdueInvoices returns invoices past their due date, oldest first
func (h *InvoiceHandler) ListOverdueInvoices(c *gin.Context) {
	var filter InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	serviceFilter, err := toInvoiceServiceFilter(filter)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoices, err := h.service.ListOverdueInvoices(c.Request.Context(), serviceFilter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoices)
}

// GetInvoice returns a single invoice by ID
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.service.GetInvoiceByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// GetInvoiceByVoucher looks up an invoice by its fiscal identity
func (h *InvoiceHandler) GetInvoiceByVoucher(c *gin.Context) {
	voucherType := c.Param("type")

	salesPoint, err := strconv.Atoi(c.Param("point"))
	if err != nil {
		h.BadRequest(c, "Invalid sales point")
		return
	}

	voucherNumber, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil {
		h.BadRequest(c, "Invalid voucher number")
		return
	}

	invoice, err := h.service.GetInvoiceByVoucher(c.Request.Context(), voucherType, salesPoint, voucherNumber)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// CreateInvoice creates a draft invoice
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req invoicingapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, invoice)
}

// UpdateInvoiceLines replaces the lines and perceptions of a draft invoice
func (h *InvoiceHandler) UpdateInvoiceLines(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req invoicingapp.UpdateInvoiceLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.service.UpdateInvoiceLines(c.Request.Context(), invoiceID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// IssueInvoice assigns a voucher number and makes the invoice outstanding
func (h *InvoiceHandler) IssueInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	// The body is optional, issue date defaults to now
	var req invoicingapp.IssueInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	invoice, err := h.service.IssueInvoice(c.Request.Context(), invoiceID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// VoidInvoice voids an invoice that has no applied settlements
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req VoidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.service.VoidInvoice(c.Request.Context(), invoiceID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// ===================== Helpers =====================

func toInvoiceServiceFilter(filter InvoiceListFilter) (invoicingapp.InvoiceListFilter, error) {
	serviceFilter := invoicingapp.InvoiceListFilter{
		Search:      filter.Search,
		Direction:   filter.Direction,
		Status:      filter.Status,
		VoucherType: filter.VoucherType,
		Currency:    filter.Currency,
		Overdue:     filter.Overdue,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
	}

	if filter.CounterpartyID != "" {
		id, err := uuid.Parse(filter.CounterpartyID)
		if err != nil {
			return serviceFilter, dto.ErrInvalidFilter("counterparty_id")
		}
		serviceFilter.CounterpartyID = &id
	}

	var err error
	if serviceFilter.IssuedFrom, err = parseDateParam(filter.IssuedFrom, false); err != nil {
		return serviceFilter, dto.ErrInvalidFilter("issued_from")
	}
	if serviceFilter.IssuedTo, err = parseDateParam(filter.IssuedTo, true); err != nil {
		return serviceFilter, dto.ErrInvalidFilter("issued_to")
	}
	if serviceFilter.DueFrom, err = parseDateParam(filter.DueFrom, false); err != nil {
		return serviceFilter, dto.ErrInvalidFilter("due_from")
	}
	if serviceFilter.DueTo, err = parseDateParam(filter.DueTo, true); err != nil {
		return serviceFilter, dto.ErrInvalidFilter("due_to")
	}

	if filter.MinPending != "" {
		min, err := decimal.NewFromString(filter.MinPending)
		if err != nil {
			return serviceFilter, dto.ErrInvalidFilter("min_pending")
		}
		serviceFilter.MinPending = &min
	}
	if filter.MaxPending != "" {
		max, err := decimal.NewFromString(filter.MaxPending)
		if err != nil {
			return serviceFilter, dto.ErrInvalidFilter("max_pending")
		}
		serviceFilter.MaxPending = &max
	}

	return serviceFilter, nil
}

// parseDateParam parses a YYYY-MM-DD query value. Upper bounds are pushed to
// the end of the day so the range is inclusive.
func parseDateParam(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

// RegisterRoutes registers all invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.GET("", h.ListInvoices)
		invoices.GET("/overdue", h.ListOverdueInvoices)
		invoices.GET("/voucher/:type/:point/:number", h.GetInvoiceByVoucher)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("", h.CreateInvoice)
		invoices.PUT("/:id/lines", h.UpdateInvoiceLines)
		invoices.POST("/:id/issue", h.IssueInvoice)
		invoices.POST("/:id/void", h.VoidInvoice)
	}
}
