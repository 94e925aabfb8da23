package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"wolfgang/internal/atproto/identity"
	"wolfgang/internal/core/interactions"
)

// interactionsWindow is how far back the interactive aggregations look.
const interactionsWindow = 7 * 24 * time.Hour

// InteractionSource is the aggregation side the handlers need.
type InteractionSource interface {
	Both(ctx context.Context, did string, since time.Time) (sent, rcvd []interactions.Counterparty, err error)
	Query(ctx context.Context, did string, source interactions.Source, since time.Time) (map[string][]interactions.Counterparty, error)
}

// Cache is the KV layer the handlers coordinate through. Expiry comes
// from the bucket TTL.
type Cache interface {
	Get(key string, v any) (bool, error)
	Has(key string) (bool, error)
	Put(key string, v any) error
	Delete(key string) error
}

// InteractionsHandler serves the per-actor interaction summaries.
type InteractionsHandler struct {
	resolver  identity.Resolver
	service   InteractionSource
	semaphore Cache
	results   Cache
	log       *log.Entry
}

// NewInteractionsHandler wires the handler. semaphore and results are
// distinct buckets: the semaphore TTL bounds how long a crashed
// computation can block an actor, the results TTL is the answer cache.
func NewInteractionsHandler(resolver identity.Resolver, service InteractionSource, semaphore, results Cache) *InteractionsHandler {
	return &InteractionsHandler{
		resolver:  resolver,
		service:   service,
		semaphore: semaphore,
		results:   results,
		log:       log.WithField("component", "api"),
	}
}

// interactionsResult is the two-direction aggregation payload.
type interactionsResult struct {
	Sent []interactions.Counterparty `json:"sent"`
	Rcvd []interactions.Counterparty `json:"rcvd"`
}

// InteractionsResponse is the POST /interactions response body.
type InteractionsResponse struct {
	DID          string             `json:"did"`
	Handle       string             `json:"handle"`
	Interactions interactionsResult `json:"interactions"`
}

// HandlePost computes both directions for one actor, deduplicating
// concurrent work per DID through the semaphore bucket.
// POST /interactions
//
// Request body: { "handle": "<handle or DID>" }
func (h *InteractionsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", "invalid request body")
		return
	}

	actor, err := identity.ResolveActor(r.Context(), h.resolver, req.Handle)
	if err != nil {
		writeResolveError(w, http.StatusBadRequest, req.Handle, err)
		return
	}

	busy, err := h.semaphore.Has(actor.DID)
	if err != nil {
		h.log.WithError(err).Error("semaphore check failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error getting interactions")
		return
	}
	if busy {
		WriteError(w, http.StatusBadRequest, "TryAgain", "check again later")
		return
	}

	var cached InteractionsResponse
	if ok, err := h.results.Get(actor.DID, &cached); err != nil {
		h.log.WithError(err).Warn("result cache read failed")
	} else if ok {
		WriteJSON(w, http.StatusOK, cached)
		return
	}

	if err := h.semaphore.Put(actor.DID, struct{}{}); err != nil {
		h.log.WithError(err).Error("semaphore set failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error getting interactions")
		return
	}

	sent, rcvd, err := h.service.Both(r.Context(), actor.DID, time.Now().Add(-interactionsWindow))
	if err != nil {
		// clear the semaphore so the next caller can retry right away
		if derr := h.semaphore.Delete(actor.DID); derr != nil {
			h.log.WithError(derr).Warn("semaphore clear failed")
		}
		h.log.WithError(err).WithField("did", actor.DID).Error("aggregation failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error getting interactions")
		return
	}

	resp := InteractionsResponse{
		DID:          actor.DID,
		Handle:       actor.Handle,
		Interactions: interactionsResult{Sent: sent, Rcvd: rcvd},
	}
	if err := h.results.Put(actor.DID, resp); err != nil {
		h.log.WithError(err).Warn("result cache write failed")
	}
	if err := h.semaphore.Delete(actor.DID); err != nil {
		h.log.WithError(err).Warn("semaphore clear failed")
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HandleGet answers the source-selector form, uncached.
// GET /interactions?actor=<handle-or-did>&source=<from|to|both>
func (h *InteractionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	source := interactions.Source(r.URL.Query().Get("source"))
	if source == "" {
		source = interactions.SourceFrom
	}
	if !source.Valid() {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", "source must be from, to or both")
		return
	}

	raw := r.URL.Query().Get("actor")
	actor, err := identity.ResolveActor(r.Context(), h.resolver, raw)
	if err != nil {
		writeResolveError(w, http.StatusNotFound, raw, err)
		return
	}

	res, err := h.service.Query(r.Context(), actor.DID, source, time.Now().Add(-interactionsWindow))
	if err != nil {
		h.log.WithError(err).WithField("did", actor.DID).Error("aggregation failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error getting interactions")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// writeResolveError maps resolver failures onto the status the route
// uses for unknown users; anything unexpected is a 500.
func writeResolveError(w http.ResponseWriter, status int, raw string, err error) {
	var invalid *identity.ErrInvalidIdentifier
	var notFound *identity.ErrNotFound
	if errors.As(err, &invalid) || errors.As(err, &notFound) {
		WriteError(w, status, "UserNotFound", fmt.Sprintf("user not found: %s", raw))
		return
	}
	log.WithError(err).Warn("identity resolution failed")
	WriteError(w, http.StatusInternalServerError, "InternalError", "identity resolution failed")
}
