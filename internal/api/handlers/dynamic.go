package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"wolfgang/internal/core/dynamic"
)

// LatestStore reads the newest dynamic-data document per name.
type LatestStore interface {
	Latest(ctx context.Context, name string) (*dynamic.Document, error)
}

// DynamicDataHandler serves the precomputed leaderboards.
type DynamicDataHandler struct {
	store LatestStore
	cache Cache
	log   *log.Entry
}

// NewDynamicDataHandler wires the handler; cache is a short-TTL KV
// bucket keyed by leaderboard name.
func NewDynamicDataHandler(store LatestStore, cache Cache) *DynamicDataHandler {
	return &DynamicDataHandler{
		store: store,
		cache: cache,
		log:   log.WithField("component", "api"),
	}
}

// HandleGet returns the newest snapshot's data payload.
// GET /dd/{name} where name is top_interactions or top_blocks
func (h *DynamicDataHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != dynamic.NameTopInteractions && name != dynamic.NameTopBlocks {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", "unknown dynamic data name")
		return
	}

	var cached bson.M
	if ok, err := h.cache.Get(name, &cached); err != nil {
		// cache trouble degrades to a store read
		h.log.WithError(err).Warn("dynamic data cache read failed")
	} else if ok {
		WriteJSON(w, http.StatusOK, cached)
		return
	}

	doc, err := h.store.Latest(r.Context(), name)
	if errors.Is(err, dynamic.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "NotFound", "no data yet")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("name", name).Error("dynamic data read failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error reading dynamic data")
		return
	}

	if err := h.cache.Put(name, doc.Data); err != nil {
		h.log.WithError(err).Warn("dynamic data cache write failed")
	}
	WriteJSON(w, http.StatusOK, doc.Data)
}
