// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PresenceEvents     *prometheus.CounterVec // by gate outcome
	RoomRefreshes      *prometheus.CounterVec // by result: published, untracked, store_error, platform_error
	StatusActions      *prometheus.CounterVec // by action: sent, edited, deleted
	PlatformErrors     *prometheus.CounterVec // by op and error class
	CommandInvocations *prometheus.CounterVec // by command and result

	// Histograms (seconds)
	RefreshDuration prometheus.Observer

	// Gauges
	RoomRateGauge    *prometheus.GaugeVec
	GatewayConnected prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PresenceEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ratebot_presence_events_total", Help: "Voice state events by gate outcome"}, []string{"outcome"})
		RoomRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ratebot_room_refreshes_total", Help: "Room rate refreshes by result"}, []string{"result"})
		StatusActions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ratebot_status_messages_total", Help: "Status message actions (sent, edited, deleted)"}, []string{"action"})
		PlatformErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ratebot_platform_errors_total", Help: "Discord API failures by operation and class"}, []string{"op", "class"})
		CommandInvocations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "ratebot_commands_total", Help: "Slash command invocations by command and result"}, []string{"command", "result"})
		RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "ratebot_room_refresh_duration_seconds", Help: "Aggregate+publish duration seconds", Buckets: prometheus.DefBuckets})
		RoomRateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "ratebot_room_hourly_rate", Help: "Last published hourly rate per room"}, []string{"room"})
		GatewayConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "ratebot_gateway_connected", Help: "Discord gateway connected=1 disconnected=0"})
	})
}

// RecordPresenceEvent counts a gate outcome.
func RecordPresenceEvent(outcome string) {
	if PresenceEvents != nil {
		PresenceEvents.WithLabelValues(outcome).Inc()
	}
}

// RecordRoomRefresh counts the result of one room refresh.
func RecordRoomRefresh(result string) {
	if RoomRefreshes != nil {
		RoomRefreshes.WithLabelValues(result).Inc()
	}
}

// RecordStatusAction counts a status message send, edit or delete.
func RecordStatusAction(action string) {
	if StatusActions != nil {
		StatusActions.WithLabelValues(action).Inc()
	}
}

// RecordPlatformError counts a failed Discord call.
func RecordPlatformError(op, class string) {
	if PlatformErrors != nil {
		PlatformErrors.WithLabelValues(op, class).Inc()
	}
}

// RecordCommand counts a slash command outcome.
func RecordCommand(command, result string) {
	if CommandInvocations != nil {
		CommandInvocations.WithLabelValues(command, result).Inc()
	}
}

// SetRoomRate records the last published rate for a room.
func SetRoomRate(room string, rate float64) {
	if RoomRateGauge != nil {
		RoomRateGauge.WithLabelValues(room).Set(rate)
	}
}

// UpdateGatewayGauge sets gauge to 1 if connected else 0.
func UpdateGatewayGauge(connected bool) {
	if GatewayConnected == nil {
		return
	}
	if connected {
		GatewayConnected.Set(1)
	} else {
		GatewayConnected.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
