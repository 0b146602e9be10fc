package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"priceduel/internal/repository"
)

type AccountHandler struct {
	Repo repository.Repository

	// StartingBalance seeds newly created accounts.
	StartingBalance decimal.Decimal
}

func (h *AccountHandler) Register(r *gin.Engine) {
	a := r.Group("/api/v1/accounts")
	a.GET("", h.list)
	a.GET("/:participant", h.get)
	a.POST("/:participant", h.create)
	a.POST("/:participant/deposit", h.deposit)
}

func (h *AccountHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListAccountsParams{
		Limit:     intQuery(c, "limit", 50),
		Offset:    intQuery(c, "offset", 0),
		Simulated: boolQueryPtr(c, "simulated"),
	}
	items, err := h.Repo.ListAccounts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *AccountHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	participant := strings.TrimSpace(c.Param("participant"))
	item, err := h.Repo.GetAccount(c.Request.Context(), participant)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownAccount) {
			Error(c, http.StatusNotFound, "account not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *AccountHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	participant := strings.TrimSpace(c.Param("participant"))
	if participant == "" {
		Error(c, http.StatusBadRequest, "participant is required", nil)
		return
	}
	item, err := h.Repo.EnsureAccount(c.Request.Context(), participant, h.StartingBalance, false)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (h *AccountHandler) deposit(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	participant := strings.TrimSpace(c.Param("participant"))
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if !req.Amount.IsPositive() {
		Error(c, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	balance, err := h.Repo.AdjustBalance(c.Request.Context(), participant, req.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownAccount) {
			Error(c, http.StatusNotFound, "account not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"participant": participant, "balance": balance}, nil)
}
