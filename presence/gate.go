// Package presence decides which voice-state changes should trigger a room rate refresh.
//
// Only "who is in which room" transitions matter. Mute, deafen and stream toggles
// inside the same room are noise, and everything outside the working-hours window
// is dropped before any store or platform call is made.
package presence

import (
	"time"
)

// VoiceState is the subset of a person's voice state the gate looks at.
// The zero value means "not connected anywhere".
type VoiceState struct {
	UserID     string
	GuildID    string
	ChannelID  string
	Mute       bool
	Deaf       bool
	SelfMute   bool
	SelfDeaf   bool
	SelfStream bool
}

// Outcome explains why an event was accepted or discarded.
type Outcome string

const (
	OutcomeOutsideHours Outcome = "outside_hours"
	OutcomeToggleOnly   Outcome = "toggle_only"
	OutcomeMoved        Outcome = "moved"
	OutcomeRefresh      Outcome = "refresh"
	OutcomeNoRoom       Outcome = "no_room"
)

// Decision is the gate verdict for one event.
type Decision struct {
	Outcome Outcome
	// Rooms are the channel ids to recompute, old room first. Empty when discarded.
	Rooms []string
}

// Accepted reports whether at least one room needs a refresh.
func (d Decision) Accepted() bool { return len(d.Rooms) > 0 }

// Gate filters presence events by relevance and by a daily time window.
type Gate struct {
	Window Window
}

// NewGate returns a gate using the given working-hours window.
func NewGate(w Window) *Gate { return &Gate{Window: w} }

// Evaluate classifies a before/after pair observed at now.
//
// A channel change is authoritative: it is accepted even when audio flags flipped
// at the same moment. Audio flags only discard events where the room stayed the same.
func (g *Gate) Evaluate(before, after VoiceState, now time.Time) Decision {
	if !g.Window.Contains(now) {
		return Decision{Outcome: OutcomeOutsideHours}
	}

	if before.ChannelID != after.ChannelID {
		rooms := make([]string, 0, 2)
		if before.ChannelID != "" {
			rooms = append(rooms, before.ChannelID)
		}
		if after.ChannelID != "" {
			rooms = append(rooms, after.ChannelID)
		}
		return Decision{Outcome: OutcomeMoved, Rooms: rooms}
	}

	if MutedChanged(before, after) || DeafenedChanged(before, after) || StreamingChanged(before, after) {
		return Decision{Outcome: OutcomeToggleOnly}
	}

	if after.ChannelID == "" {
		return Decision{Outcome: OutcomeNoRoom}
	}
	return Decision{Outcome: OutcomeRefresh, Rooms: []string{after.ChannelID}}
}

// MutedChanged covers both server and self mute.
func MutedChanged(before, after VoiceState) bool {
	return before.Mute != after.Mute || before.SelfMute != after.SelfMute
}

// DeafenedChanged covers both server and self deafen.
func DeafenedChanged(before, after VoiceState) bool {
	return before.Deaf != after.Deaf || before.SelfDeaf != after.SelfDeaf
}

func StreamingChanged(before, after VoiceState) bool {
	return before.SelfStream != after.SelfStream
}
