package handler

import (
	balanceapp "github.com/facturante/backend/internal/application/balance"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BalanceHandler handles entity balance related API endpoints
type BalanceHandler struct {
	BaseHandler
	service *balanceapp.BalanceService
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(service *balanceapp.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		service: service,
	}
}

// BalanceListFilter represents filter parameters for balance queries
type BalanceListFilter struct {
	Direction string `form:"direction" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
}

// ListBalances returns per-counterparty balances grouped by currency
func (h *BalanceHandler) ListBalances(c *gin.Context) {
	var filter BalanceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	balances, err := h.service.GetEntityBalances(c.Request.Context(), filter.Direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balances)
}

// GetCounterpartyBalance returns the balance of a single counterparty
func (h *BalanceHandler) GetCounterpartyBalance(c *gin.Context) {
	counterpartyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID")
		return
	}

	var filter BalanceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	balance, err := h.service.GetCounterpartyBalance(c.Request.Context(), counterpartyID, filter.Direction)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, balance)
}

// RegisterRoutes registers all balance routes
func (h *BalanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	balances := rg.Group("/balances")
	{
		balances.GET("", h.ListBalances)
		balances.GET("/:id", h.GetCounterpartyBalance)
	}
}
