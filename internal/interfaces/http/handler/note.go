package handler

import (
	settlementapp "github.com/facturante/backend/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NoteHandler handles credit and debit note related API endpoints
type NoteHandler struct {
	BaseHandler
	service *settlementapp.NoteService
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(service *settlementapp.NoteService) *NoteHandler {
	return &NoteHandler{
		service: service,
	}
}

// ===================== Request DTOs =====================

// NoteListFilter represents filter parameters for note list
type NoteListFilter struct {
	Search         string `form:"search"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Kind           string `form:"kind" binding:"omitempty,oneof=CREDIT DEBIT"`
	Status         string `form:"status"`
	Direction      string `form:"direction" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
	Currency       string `form:"currency"`
	Unassociated   *bool  `form:"unassociated"`
	Page           int    `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// VoidNoteRequest represents a request to void a note
type VoidNoteRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ===================== Handlers =====================

// ListNotes returns a paginated list of notes
func (h *NoteHandler) ListNotes(c *gin.Context) {
	var filter NoteListFilter
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

	serviceFilter := settlementapp.NoteListFilter{
		Search:       filter.Search,
		Kind:         filter.Kind,
		Status:       filter.Status,
		Direction:    filter.Direction,
		Currency:     filter.Currency,
		Unassociated: filter.Unassociated,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}

	if filter.CounterpartyID != "" {
		id, err := uuid.Parse(filter.CounterpartyID)
		if err != nil {
			h.BadRequest(c, "Invalid counterparty ID")
			return
		}
		serviceFilter.CounterpartyID = &id
	}

	notes, total, err := h.service.ListNotes(c.Request.Context(), serviceFilter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, notes, total, filter.Page, filter.PageSize)
}

// GetNote returns a single note by ID
func (h *NoteHandler) GetNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid note ID")
		return
	}

	note, err := h.service.GetNoteByID(c.Request.Context(), noteID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, note)
}

// IssueNote issues a credit or debit note
func (h *NoteHandler) IssueNote(c *gin.Context) {
	var req settlementapp.IssueNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	note, err := h.service.IssueNote(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, note)
}

// ApplyNote applies a note to its linked invoice
func (h *NoteHandler) ApplyNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid note ID")
		return
	}

	result, err := h.service.ApplyNote(c.Request.Context(), noteID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// VoidNote voids a pending note
func (h *NoteHandler) VoidNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid note ID")
		return
	}

	var req VoidNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	note, err := h.service.VoidNote(c.Request.Context(), noteID, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, note)
}

// RegisterRoutes registers all note routes
func (h *NoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	notes := rg.Group("/notes")
	{
		notes.GET("", h.ListNotes)
		notes.GET("/:id", h.GetNote)
		notes.POST("", h.IssueNote)
		notes.POST("/:id/apply", h.ApplyNote)
		notes.POST("/:id/void", h.VoidNote)
	}
}
