package handlers

import (
	"context"
	"image"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"wolfgang/internal/atproto/appview"
	"wolfgang/internal/atproto/identity"
	"wolfgang/internal/circles"
	"wolfgang/internal/core/interactions"
)

// circlesTopK caps how many counterparties feed the image; the layout
// holds 21 of them, the rest act as padding when avatars fail.
const circlesTopK = 50

// ProfileSource hydrates actor profiles, avatar URLs included.
type ProfileSource interface {
	GetProfiles(ctx context.Context, dids []string) (map[string]appview.Profile, error)
}

// AvatarFetcher turns avatar URLs into images, placeholders included.
type AvatarFetcher interface {
	Fetch(ctx context.Context, urls []string) []image.Image
}

// CirclesHandler renders the interaction-circles image.
type CirclesHandler struct {
	resolver identity.Resolver
	service  InteractionSource
	profiles ProfileSource
	avatars  AvatarFetcher
	renderer *circles.Renderer
	log      *log.Entry
}

// NewCirclesHandler wires the handler.
func NewCirclesHandler(resolver identity.Resolver, service InteractionSource, profiles ProfileSource, avatars AvatarFetcher, renderer *circles.Renderer) *CirclesHandler {
	return &CirclesHandler{
		resolver: resolver,
		service:  service,
		profiles: profiles,
		avatars:  avatars,
		renderer: renderer,
		log:      log.WithField("component", "api"),
	}
}

// HandleGet renders the circles image for one actor.
// GET /circles?actor=<handle-or-did>&source=<from|to|both>
func (h *CirclesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	start := time.Now().Add(-interactionsWindow)
	grouped, err := h.service.Query(r.Context(), actor.DID, source, start)
	if err != nil {
		h.log.WithError(err).WithField("did", actor.DID).Error("circles aggregation failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error generating circles")
		return
	}

	lists := make([][]interactions.Counterparty, 0, len(grouped))
	for _, list := range grouped {
		lists = append(lists, list)
	}
	top := interactions.MergeTop(lists, circlesTopK)
	if len(top) < 2 {
		WriteError(w, http.StatusNotFound, "NotEnoughData", "not enough interactions to draw circles")
		return
	}

	dids := make([]string, 0, len(top)+1)
	dids = append(dids, actor.DID)
	for _, cp := range top {
		dids = append(dids, cp.DID)
	}
	profiles, err := h.profiles.GetProfiles(r.Context(), dids)
	if err != nil {
		h.log.WithError(err).WithField("did", actor.DID).Error("circles profile hydration failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error generating circles")
		return
	}

	// unknown DIDs resolve to the zero Profile, whose empty avatar URL
	// becomes the placeholder image
	urls := make([]string, 0, len(dids))
	for _, did := range dids {
		urls = append(urls, profiles[did].Avatar)
	}
	images := h.avatars.Fetch(r.Context(), urls)

	png, err := h.renderer.Render(images[0], images[1:], start, time.Now())
	if err != nil {
		h.log.WithError(err).WithField("did", actor.DID).Error("circles render failed")
		WriteError(w, http.StatusInternalServerError, "InternalError", "error generating circles")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.WithError(err).Debug("circles response write failed")
	}
}
