package handler

import (
	"net/http"
)

// StatusHandler serves the backend status (operating mode) for the
// dashboard.
type StatusHandler struct {
	Mode string
}

// NewStatusHandler creates a StatusHandler with the given mode.
func NewStatusHandler(mode string) *StatusHandler {
	return &StatusHandler{Mode: mode}
}

// GetStatus responds with the current backend operating mode.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode": h.Mode,
	})
}
