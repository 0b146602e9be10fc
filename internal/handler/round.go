package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"priceduel/internal/game"
)

type RoundHandler struct {
	Session *game.Session
}

func (h *RoundHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/round", h.status)
}

func (h *RoundHandler) status(c *gin.Context) {
	if h.Session == nil {
		Error(c, http.StatusInternalServerError, "session unavailable", nil)
		return
	}
	st := h.Session.Status()
	Ok(c, gin.H{
		"round":        st.Round,
		"phase":        st.Phase,
		"remaining_ms": st.Remaining.Milliseconds(),
		"asset":        st.Asset,
		"entry_price":  st.EntryPrice,
		"price":        st.Price,
		"price_at":     st.PriceAt,
		"bets":         st.Bets,
	}, nil)
}
