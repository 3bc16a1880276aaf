// Package rate sums the registered hourly rates of the people present in a tracked room.
package rate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rate-room/ratebot/db"
)

// ErrUntracked is returned for rooms that are not registered for tracking.
var ErrUntracked = errors.New("room is not tracked")

// Store is the slice of the rate store the aggregator reads.
type Store interface {
	IsTracked(ctx context.Context, channelID string) (bool, error)
	ListRates(ctx context.Context) ([]db.RateRecord, error)
}

// Roster returns the ids of the people currently connected to a voice channel.
type Roster interface {
	Members(ctx context.Context, channelID string) ([]string, error)
}

// Snapshot is the outcome of one computation.
type Snapshot struct {
	RoomID     string
	Rate       float64
	Members    int
	Registered int
}

// Aggregator computes room rates from injected store and roster dependencies.
type Aggregator struct {
	store  Store
	roster Roster
}

func NewAggregator(store Store, roster Roster) *Aggregator {
	return &Aggregator{store: store, roster: roster}
}

// RoomRate returns the sum of the rates of everyone connected to roomID.
// Untracked rooms return ErrUntracked without reading the roster or the rates.
// Any read error aborts the computation; no partial sum is returned.
func (a *Aggregator) RoomRate(ctx context.Context, roomID string) (Snapshot, error) {
	if roomID == "" {
		return Snapshot{}, fmt.Errorf("room rate: empty room id")
	}
	tracked, err := a.store.IsTracked(ctx, roomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("room rate %s: %w", roomID, err)
	}
	if !tracked {
		return Snapshot{}, ErrUntracked
	}

	members, err := a.roster.Members(ctx, roomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("room rate %s: roster: %w", roomID, err)
	}
	records, err := a.store.ListRates(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("room rate %s: %w", roomID, err)
	}

	total, registered := Sum(members, records)
	return Snapshot{RoomID: roomID, Rate: total, Members: len(members), Registered: registered}, nil
}

// Sum adds the rate of every member that has a record; unregistered members add 0.
// It also reports how many members had a record.
func Sum(members []string, records []db.RateRecord) (float64, int) {
	byID := make(map[string]float64, len(records))
	for _, r := range records {
		byID[r.ID] = r.Rate
	}
	var total float64
	registered := 0
	for _, id := range members {
		if r, ok := byID[id]; ok {
			total += r
			registered++
		}
	}
	return total, registered
}
