package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"priceduel/internal/repository"
)

type RoundHistoryHandler struct {
	Repo repository.Repository
}

func (h *RoundHistoryHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/rounds")
	g.GET("", h.list)
	g.GET("/:seq", h.get)
}

func (h *RoundHistoryHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListRoundsParams{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
		Since:  timeQueryPtr(c, "since"),
	}
	items, err := h.Repo.ListRoundSummaries(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *RoundHistoryHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid round sequence", nil)
		return
	}
	item, err := h.Repo.GetRoundSummary(c.Request.Context(), seq)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "round not found", nil)
		return
	}
	Ok(c, item, nil)
}
