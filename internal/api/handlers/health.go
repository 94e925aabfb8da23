package handlers

import "net/http"

// Health answers the liveness probe.
// GET /
func Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{})
}
