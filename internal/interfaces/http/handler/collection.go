package handler

import (
	settlementapp "github.com/facturante/backend/internal/application/settlement"
	"github.com/facturante/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CollectionHandler handles collection related API endpoints
type CollectionHandler struct {
	BaseHandler
	service *settlementapp.CollectionService
}

// NewCollectionHandler creates a new CollectionHandler
func NewCollectionHandler(service *settlementapp.CollectionService) *CollectionHandler {
	return &CollectionHandler{
		service: service,
	}
}

// ===================== Request DTOs =====================

// CollectionListFilter represents filter parameters for collection list
type CollectionListFilter struct {
	Search         string `form:"search"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Status         string `form:"status"`
	Method         string `form:"method"`
	Currency       string `form:"currency"`
	FromDate       string `form:"from_date"`
	ToDate         string `form:"to_date"`
	Page           int    `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// CancelCollectionRequest represents a request to cancel a collection
type CancelCollectionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReverseAllocationRequest represents a request to reverse an allocation on an invoice
type ReverseAllocationRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" binding:"required"`
	Reason    string    `json:"reason" binding:"required"`
}

// ===================== Handlers =====================

// ListCollections returns a paginated list of collections
func (h *CollectionHandler) ListCollections(c *gin.Context) {
	var filter CollectionListFilter
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

	serviceFilter := settlementapp.CollectionListFilter{
		Search:   filter.Search,
		Status:   filter.Status,
		Method:   filter.Method,
		Currency: filter.Currency,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}

	if filter.CounterpartyID != "" {
		id, err := uuid.Parse(filter.CounterpartyID)
		if err != nil {
			h.BadRequest(c, "Invalid counterparty ID")
			return
		}
		serviceFilter.CounterpartyID = &id
	}

	var err error
	if serviceFilter.FromDate, err = parseDateParam(filter.FromDate, false); err != nil {
		h.BadRequest(c, dto.ErrInvalidFilter("from_date").Error())
		return
	}
	if serviceFilter.ToDate, err = parseDateParam(filter.ToDate, true); err != nil {
		h.BadRequest(c, dto.ErrInvalidFilter("to_date").Error())
		return
	}

	collections, total, err := h.service.ListCollections(c.Request.Context(), serviceFilter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, collections, total, filter.Page, filter.PageSize)
}

// GetCollection returns a single collection by ID
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}

	collection, err := h.service.GetCollectionByID(c.Request.Context(), collectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, collection)
}

// RegisterCollection registers a draft collection
func (h *CollectionHandler) RegisterCollection(c *gin.Context) {
	var req settlementapp.RegisterCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	collection, err := h.service.RegisterCollection(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, collection)
}

// ConfirmCollection confirms a draft collection
func (h *CollectionHandler) ConfirmCollection(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}

	collection, err := h.service.ConfirmCollection(c.Request.Context(), collectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, collection)
}

// AllocateCollection splits a confirmed collection across invoices
func (h *CollectionHandler) AllocateCollection(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}

	var req settlementapp.AllocateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AllocateCollection(c.Request.Context(), collectionID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// CancelCollection cancels a collection that has no applied allocations
func (h *CollectionHandler) CancelCollection(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}

	var req CancelCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	collection, err := h.service.CancelCollection(c.Request.Context(), collectionID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, collection)
}

// ReverseAllocation reverses this collection's settlement on one invoice
func (h *CollectionHandler) ReverseAllocation(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid collection ID")
		return
	}

	var req ReverseAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.service.ReverseCollectionOnInvoice(c.Request.Context(), req.InvoiceID, collectionID, req.Reason); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers all collection routes
func (h *CollectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	collections := rg.Group("/collections")
	{
		collections.GET("", h.ListCollections)
		collections.GET("/:id", h.GetCollection)
		collections.POST("", h.RegisterCollection)
		collections.POST("/:id/confirm", h.ConfirmCollection)
		collections.POST("/:id/allocate", h.AllocateCollection)
		collections.POST("/:id/cancel", h.CancelCollection)
		collections.POST("/:id/reverse", h.ReverseAllocation)
	}
}
