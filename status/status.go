// Package status keeps one live bot status message per room, edited in place.
//
// Publish inspects the tail of the room's text chat, keeps the newest bot message,
// deletes older bot duplicates left by races or restarts, then edits the survivor
// or sends a fresh message. No lock guards this sequence:
// two concurrent publishes may both send, and the next publish removes the extra.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/rate-room/ratebot/telemetry"
)

// ErrGone marks a message that no longer exists on the platform.
// Deleting a gone message is not a failure: another publisher got there first.
var ErrGone = errors.New("message no longer exists")

// Message is a chat message as the manager sees it.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
	CreatedAt time.Time
	EditedAt  time.Time
}

// EffectiveAt is the time that decides recency: the edit time when edited, else creation time.
func (m Message) EffectiveAt() time.Time {
	if !m.EditedAt.IsZero() {
		return m.EditedAt
	}
	return m.CreatedAt
}

// Messages is the platform surface needed to maintain a status message.
type Messages interface {
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	SendMessage(ctx context.Context, channelID, content string) (Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Action is what Publish ended up doing with the live message.
type Action string

const (
	ActionSent   Action = "sent"
	ActionEdited Action = "edited"
)

// Result summarizes one publish cycle.
type Result struct {
	Action         Action
	MessageID      string
	Deleted        int
	DeleteFailures int
}

// Options configure a Manager.
type Options struct {
	// HistoryLimit is how many recent messages are inspected (minimum 1).
	HistoryLimit int
	// Currency is appended to the rendered rate.
	Currency string
	// SelfID returns the bot's own user id once known. When it returns a non-empty id
	// only that author's messages are considered status messages; otherwise any bot author is.
	SelfID func() string
}

// Manager publishes room status messages.
type Manager struct {
	msgs Messages
	opts Options
}

func NewManager(msgs Messages, opts Options) *Manager {
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = 1
	}
	return &Manager{msgs: msgs, opts: opts}
}

// Publish makes the room show exactly one bot status message with the given rate.
func (m *Manager) Publish(ctx context.Context, roomID string, rate float64) (Result, error) {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "status"), slog.String("room", roomID))
	text := FormatRate(rate, m.opts.Currency)

	recent, err := m.msgs.RecentMessages(ctx, roomID, m.opts.HistoryLimit)
	if err != nil {
		return Result{}, fmt.Errorf("fetch recent messages in %s: %w", roomID, err)
	}

	live, stale := m.splitBotMessages(recent)
	res := Result{}
	for _, msg := range stale {
		if err := m.msgs.DeleteMessage(ctx, roomID, msg.ID); err != nil {
			if errors.Is(err, ErrGone) {
				log.Debug("stale status message already gone", slog.String("message_id", msg.ID))
				continue
			}
			res.DeleteFailures++
			log.Warn("failed to delete stale status message", slog.String("message_id", msg.ID), slog.Any("err", err))
			continue
		}
		res.Deleted++
		telemetry.RecordStatusAction("deleted")
	}

	if live != nil {
		err := m.msgs.EditMessage(ctx, roomID, live.ID, text)
		if err == nil {
			res.Action, res.MessageID = ActionEdited, live.ID
			telemetry.RecordStatusAction(string(ActionEdited))
			log.Debug("status message edited", slog.String("message_id", live.ID), slog.Float64("rate", rate))
			return res, nil
		}
		if !errors.Is(err, ErrGone) {
			return res, fmt.Errorf("edit status message %s: %w", live.ID, err)
		}
		// deleted between fetch and edit; fall through and post a new one
		log.Debug("live status message vanished before edit", slog.String("message_id", live.ID))
	}

	sent, err := m.msgs.SendMessage(ctx, roomID, text)
	if err != nil {
		return res, fmt.Errorf("send status message in %s: %w", roomID, err)
	}
	res.Action, res.MessageID = ActionSent, sent.ID
	telemetry.RecordStatusAction(string(ActionSent))
	log.Debug("status message sent", slog.String("message_id", sent.ID), slog.Float64("rate", rate))
	return res, nil
}

// splitBotMessages returns the newest status message and the older ones, newest first.
func (m *Manager) splitBotMessages(msgs []Message) (*Message, []Message) {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveAt().After(sorted[j].EffectiveAt())
	})

	self := ""
	if m.opts.SelfID != nil {
		self = m.opts.SelfID()
	}
	var live *Message
	var stale []Message
	for i := range sorted {
		msg := sorted[i]
		if !msg.AuthorBot || (self != "" && msg.AuthorID != self) {
			continue
		}
		if live == nil {
			live = &msg
			continue
		}
		stale = append(stale, msg)
	}
	return live, stale
}

// FormatRate renders the user-facing status line. The amount is spoiler-wrapped.
func FormatRate(rate float64, currency string) string {
	return fmt.Sprintf("Current hourly rate for this room is ||%s||%s.", FormatAmount(rate), currency)
}

// FormatAmount prints the shortest decimal form of a rate: 30, 12.5, 0.75.
func FormatAmount(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
