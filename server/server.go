// Package server exposes the bot's small HTTP surface: the keep-alive root used by
// the hosting platform, health and readiness probes, and Prometheus metrics.
// Every request gets a correlation ID and, when tracing is enabled, a span.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(store Pinger, gateway Gateway) http.Handler {
	handlers := NewHandlers(store, gateway)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/", handlers.HandleRoot)

	return withCorrelation(withTracing(mux))
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, store Pinger, gateway Gateway, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(store, gateway),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// WithoutCancel keeps context values but lets shutdown finish
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err), slog.String("component", "http"))
		}
	}()

	slog.Info("server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err), slog.String("component", "http"))
		return err
	}
	return nil
}
