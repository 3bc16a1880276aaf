package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// RecordedRequest is one call received by MockDiscordServer.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// MockDiscordServer is a test server standing in for the Discord REST API.
// Handlers are registered with Go 1.22 mux patterns, e.g. "GET /api/v9/channels/{id}/messages".
type MockDiscordServer struct {
	*httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewMockDiscordServer creates a new mock Discord API server.
func NewMockDiscordServer(t *testing.T) *MockDiscordServer {
	t.Helper()
	m := &MockDiscordServer{mux: http.NewServeMux()}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test mock
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
		m.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		m.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers a handler for a mux pattern.
func (m *MockDiscordServer) Handle(pattern string, h http.HandlerFunc) { m.mux.HandleFunc(pattern, h) }

// Requests returns a copy of every request received so far.
func (m *MockDiscordServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Count returns how many requests matched method and path.
func (m *MockDiscordServer) Count(method, path string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Session returns a discordgo session whose REST calls are routed to the mock server.
func (m *MockDiscordServer) Session(t *testing.T) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("discordgo.New: %v", err)
	}
	target, err := url.Parse(m.URL)
	if err != nil {
		t.Fatalf("parse mock url: %v", err)
	}
	s.Client = &http.Client{Transport: &rewriteTransport{target: target, base: http.DefaultTransport}}
	s.MaxRestRetries = 0
	return s
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// WriteAPIError writes a Discord JSON error body ({"code":..., "message":...}).
func WriteAPIError(w http.ResponseWriter, status, code int, message string) {
	WriteJSON(w, status, map[string]any{"code": code, "message": message})
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.URL.Scheme = t.target.Scheme
	r2.URL.Host = t.target.Host
	r2.Host = t.target.Host
	return t.base.RoundTrip(r2)
}
