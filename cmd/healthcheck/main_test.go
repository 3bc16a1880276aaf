package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeURL(t *testing.T) {
	tests := []struct {
		name, httpAddr, port, want string
	}{
		{"default", "", "", "http://localhost:3000/"},
		{"port", "", "8081", "http://localhost:8081/"},
		{"http addr wins", "127.0.0.1:9000", "8081", "http://127.0.0.1:9000/"},
		{"bare port addr", ":7000", "", "http://localhost:7000/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HTTP_ADDR", tt.httpAddr)
			t.Setenv("PORT", tt.port)
			if got := probeURL(); got != tt.want {
				t.Errorf("probeURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Rate bot is alive."))
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	if !probe(context.Background(), ok.Client(), ok.URL+"/") {
		t.Error("expected healthy probe")
	}
	if probe(context.Background(), bad.Client(), bad.URL+"/") {
		t.Error("expected unhealthy probe on 503")
	}
	if probe(context.Background(), ok.Client(), "http://127.0.0.1:1/") {
		t.Error("expected unhealthy probe when nothing listens")
	}
}
