// Package tracker turns voice-state changes into room status refreshes.
//
// A Service gates each event on working hours and membership changes, then
// recomputes and republishes the rate of every affected room. Rooms are refreshed
// concurrently and independently: one room's failure never blocks another.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rate-room/ratebot/presence"
	"github.com/rate-room/ratebot/rate"
	"github.com/rate-room/ratebot/status"
	"github.com/rate-room/ratebot/telemetry"
)

// Aggregator computes a room's current rate.
type Aggregator interface {
	RoomRate(ctx context.Context, roomID string) (rate.Snapshot, error)
}

// Publisher shows a rate in a room.
type Publisher interface {
	Publish(ctx context.Context, roomID string, rate float64) (status.Result, error)
}

// Refresh results, also used as metric labels.
const (
	ResultPublished     = "published"
	ResultUntracked     = "untracked"
	ResultStoreError    = "store_error"
	ResultPlatformError = "platform_error"
)

// Service wires the gate to the aggregator and publisher.
type Service struct {
	gate      *presence.Gate
	rates     Aggregator
	publisher Publisher
	now       func() time.Time
}

func NewService(gate *presence.Gate, rates Aggregator, publisher Publisher) *Service {
	return &Service{gate: gate, rates: rates, publisher: publisher, now: time.Now}
}

// HandleVoiceState processes one presence event and waits until every affected room
// has been refreshed.
func (s *Service) HandleVoiceState(ctx context.Context, before, after presence.VoiceState) {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "tracker"), slog.String("user", after.UserID))

	d := s.gate.Evaluate(before, after, s.now())
	telemetry.RecordPresenceEvent(string(d.Outcome))
	if !d.Accepted() {
		log.Debug("voice state event discarded", slog.String("outcome", string(d.Outcome)))
		return
	}
	log.Debug("voice state event accepted", slog.String("outcome", string(d.Outcome)), slog.Any("rooms", d.Rooms))

	var g errgroup.Group
	for _, room := range d.Rooms {
		g.Go(func() error {
			s.RefreshRoom(ctx, room)
			return nil
		})
	}
	_ = g.Wait()
}

// RefreshRoom recomputes a room's rate and publishes it. It returns the refresh result.
// Errors are logged here; callers only need the result for accounting.
func (s *Service) RefreshRoom(ctx context.Context, roomID string) string {
	ctx, span := telemetry.StartSpan(ctx, "tracker.refresh_room", telemetry.RoomAttr(roomID))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "tracker"), slog.String("room", roomID))

	var result string
	telemetry.TimeFunc(telemetry.RefreshDuration, func() {
		result = s.refresh(ctx, log, roomID, span)
	})
	telemetry.RecordRoomRefresh(result)
	return result
}

func (s *Service) refresh(ctx context.Context, log *slog.Logger, roomID string, span trace.Span) string {
	snap, err := s.rates.RoomRate(ctx, roomID)
	if errors.Is(err, rate.ErrUntracked) {
		log.Debug("room is not tracked")
		telemetry.SetSpanSuccess(span)
		return ResultUntracked
	}
	if err != nil {
		log.Error("failed to compute room rate", slog.Any("err", err))
		telemetry.RecordError(span, err)
		return ResultStoreError
	}

	res, err := s.publisher.Publish(ctx, roomID, snap.Rate)
	if err != nil {
		log.Error("failed to publish room rate", slog.Float64("rate", snap.Rate), slog.Any("err", err))
		telemetry.RecordError(span, err)
		return ResultPlatformError
	}

	telemetry.SetRoomRate(roomID, snap.Rate)
	telemetry.SetSpanSuccess(span)
	log.Info("room rate published",
		slog.Float64("rate", snap.Rate),
		slog.Int("members", snap.Members),
		slog.Int("registered", snap.Registered),
		slog.String("action", string(res.Action)),
		slog.Int("deleted", res.Deleted),
	)
	return ResultPublished
}
