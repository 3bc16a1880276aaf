package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if PresenceEvents == nil || RoomRefreshes == nil || StatusActions == nil || PlatformErrors == nil || CommandInvocations == nil {
		t.Fatal("counters not initialized")
	}
	if RefreshDuration == nil || RoomRateGauge == nil || GatewayConnected == nil {
		t.Fatal("histogram/gauges not initialized")
	}
}

func TestCountersIncrement(t *testing.T) {
	Init()

	before := testutil.ToFloat64(StatusActions.WithLabelValues("edited"))
	RecordStatusAction("edited")
	RecordStatusAction("edited")
	if got := testutil.ToFloat64(StatusActions.WithLabelValues("edited")); got != before+2 {
		t.Errorf("edited = %v, want %v", got, before+2)
	}

	before = testutil.ToFloat64(PresenceEvents.WithLabelValues("toggle_only"))
	RecordPresenceEvent("toggle_only")
	if got := testutil.ToFloat64(PresenceEvents.WithLabelValues("toggle_only")); got != before+1 {
		t.Errorf("toggle_only = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(CommandInvocations.WithLabelValues("add-rate", "ok"))
	RecordCommand("add-rate", "ok")
	if got := testutil.ToFloat64(CommandInvocations.WithLabelValues("add-rate", "ok")); got != before+1 {
		t.Errorf("add-rate ok = %v, want %v", got, before+1)
	}

	RecordRoomRefresh("published")
	RecordPlatformError("send", "transient")
}

func TestGauges(t *testing.T) {
	Init()

	SetRoomRate("room-1", 42.5)
	if got := testutil.ToFloat64(RoomRateGauge.WithLabelValues("room-1")); got != 42.5 {
		t.Errorf("room rate = %v, want 42.5", got)
	}
	UpdateGatewayGauge(true)
	if got := testutil.ToFloat64(GatewayConnected); got != 1 {
		t.Errorf("gateway = %v, want 1", got)
	}
	UpdateGatewayGauge(false)
	if got := testutil.ToFloat64(GatewayConnected); got != 0 {
		t.Errorf("gateway = %v, want 0", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || metric.Histogram.GetSampleCount() == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestLoggerWithCorr(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithCorrelation(context.Background(), "abc-123")
	if GetCorrelation(ctx) != "abc-123" {
		t.Fatalf("GetCorrelation = %q", GetCorrelation(ctx))
	}
	LoggerWithCorr(ctx).Info("hello")
	if !strings.Contains(buf.String(), "corr=abc-123") {
		t.Errorf("log line missing corr: %q", buf.String())
	}
	if GetCorrelation(context.Background()) != "" {
		t.Error("expected empty correlation on bare context")
	}
}
