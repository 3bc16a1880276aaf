package server

import (
	"context"
	"net/http"
)

// AliveMessage is the body served at the root path.
const AliveMessage = "Rate bot is alive."

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway reports whether the chat platform session is established.
type Gateway interface {
	Ready() bool
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store   Pinger
	gateway Gateway
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// Either may be nil; the matching readiness check then reports not ready.
func NewHandlers(store Pinger, gateway Gateway) *Handlers {
	return &Handlers{store: store, gateway: gateway}
}

// HandleRoot answers the keep-alive probe. Only the exact root path exists.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(AliveMessage))
}
