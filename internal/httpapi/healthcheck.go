package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"clima-relay/internal/utils"
)

// Pinger is satisfied by *sql.DB. A nil Pinger means the service has no
// backing store to check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthchecker interface {
	handleHealth(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	pinger Pinger
}

func NewHealthchecker(pinger Pinger) healthchecker {
	return &healthcheckerImpl{pinger: pinger}
}

func (h *healthcheckerImpl) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.PingContext(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "failed to check database connectivity", "error", err)
			utils.WriteError(w, http.StatusServiceUnavailable, "failed to check database connectivity")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func registerHealthcheck(mux *http.ServeMux, pinger Pinger) {
	healthchecker := NewHealthchecker(pinger)
	mux.HandleFunc("GET /health", healthchecker.handleHealth)
}
