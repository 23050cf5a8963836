package handlers

import (
	"net/http"

	"github.com/Varun5711/shortqr/internal/analytics"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/middleware"
	"github.com/Varun5711/shortqr/internal/service"
)

type AnalyticsHandler struct {
	links *service.LinkService
	log   *logger.Logger
}

func NewAnalyticsHandler(links *service.LinkService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{links: links, log: log}
}

// GetStats serves aggregated clicks for the last ?days= days.
func (h *AnalyticsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", analytics.DefaultStatsDays)
	stats, err := h.links.Stats(r.Context(), middleware.GetUserID(r.Context()), id, days)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: stats})
}

func (h *AnalyticsHandler) GetClicks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", analytics.DefaultClicks)
	clicks, err := h.links.Clicks(r.Context(), middleware.GetUserID(r.Context()), id, limit)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: clicks})
}

// GetDashboard serves totals, top links and the last week of activity for the caller.
func (h *AnalyticsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.links.Dashboard(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: dash})
}
