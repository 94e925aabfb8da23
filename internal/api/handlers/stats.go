package handlers

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// CountSource reports estimated document counts per collection.
type CountSource interface {
	EstimatedCounts(ctx context.Context) (map[string]int64, error)
}

// StatsHandler exposes rough collection sizes.
type StatsHandler struct {
	stats CountSource
	log   *log.Entry
}

// NewStatsHandler wires the handler.
func NewStatsHandler(stats CountSource) *StatsHandler {
	return &StatsHandler{
		stats: stats,
		log:   log.WithField("component", "api"),
	}
}

// HandleGet reports estimated counts for the fixed collection set.
// GET /collStats
func (h *StatsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	counts, err := h.stats.EstimatedCounts(r.Context())
	if err != nil {
		h.log.WithError(err).Error("collection stats failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error reading collection stats")
		return
	}
	WriteJSON(w, http.StatusOK, counts)
}
