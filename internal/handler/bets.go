package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"priceduel/internal/game"
	"priceduel/internal/repository"
	"priceduel/internal/round"
)

type BetHandler struct {
	Session *game.Session
}

func (h *BetHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/bets", h.place)
}

type placeBetRequest struct {
	Participant string          `json:"participant" binding:"required"`
	Direction   string          `json:"direction" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
}

type placeBetResponse struct {
	BetID       string          `json:"bet_id"`
	Round       int64           `json:"round"`
	Participant string          `json:"participant"`
	Direction   string          `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Status      string          `json:"status"`
}

func (h *BetHandler) place(c *gin.Context) {
	if h.Session == nil {
		Error(c, http.StatusInternalServerError, "session unavailable", nil)
		return
	}
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	direction := round.Direction(strings.ToUpper(strings.TrimSpace(req.Direction)))
	participant := strings.TrimSpace(req.Participant)
	if participant == "" {
		Error(c, http.StatusBadRequest, "participant is required", nil)
		return
	}

	bet, err := h.Session.PlaceBet(c.Request.Context(), participant, direction, req.Amount)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, round.ErrRoundLocked):
			status = http.StatusConflict
		case errors.Is(err, repository.ErrInsufficientFunds):
			status = http.StatusConflict
		case errors.Is(err, game.ErrInvalidDirection),
			errors.Is(err, round.ErrInvalidAmount),
			errors.Is(err, round.ErrBelowMinimum),
			errors.Is(err, round.ErrAboveMaximum):
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
		Error(c, status, err.Error(), nil)
		return
	}
	Ok(c, placeBetResponse{
		BetID:       bet.ID,
		Round:       h.Session.Status().Round,
		Participant: bet.Participant,
		Direction:   string(bet.Direction),
		Amount:      bet.Amount,
		Fee:         bet.Fee,
		Status:      string(bet.Status),
	}, nil)
}
