package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rate-room/ratebot/telemetry"
)

var (
	errNoStore     = errors.New("store not configured")
	errNoGateway   = errors.New("gateway not configured")
	errGatewayDown = errors.New("gateway not connected")
)

// HandleHealthz responds to liveness probe requests by checking store connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	if err := h.store.Ping(r.Context()); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("health check failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests. The bot is ready once the
// store answers and the gateway session is up.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"store", func() error {
			if h.store == nil {
				return errNoStore
			}
			return h.store.Ping(r.Context())
		}},
		{"gateway", func() error {
			if h.gateway == nil {
				return errNoGateway
			}
			if !h.gateway.Ready() {
				return errGatewayDown
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
