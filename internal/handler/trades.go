package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"priceduel/internal/repository"
)

type TradeHandler struct {
	Repo repository.Repository
}

func (h *TradeHandler) Register(r *gin.Engine) {
	t := r.Group("/api/v1/trades")
	t.GET("", h.list)
}

func (h *TradeHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(strings.TrimSpace(c.Query("order_by")), map[string]string{
		"end_time":   "end_time",
		"round":      "round_seq",
		"profit":     "profit",
		"created_at": "created_at",
	})
	if orderBy == "" {
		orderBy = "end_time"
	}
	asc := strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc")

	params := repository.ListTradesParams{
		Limit:       limit,
		Offset:      offset,
		Participant: strQueryPtr(c, "participant"),
		Result:      strQueryPtr(c, "result"),
		RoundSeq:    int64QueryPtr(c, "round"),
		Since:       timeQueryPtr(c, "since"),
		OrderBy:     orderBy,
		Asc:         boolPtr(asc),
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
