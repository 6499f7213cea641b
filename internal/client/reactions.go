package client

import (
	"context"
	"sync"
	"time"

	"live-canvas/internal/models"
)

const (
	// ReactionTTL is how long a reaction stays in the local collection.
	ReactionTTL = 4000 * time.Millisecond
	// reactionSweepPeriod is the cadence of the decay sweep.
	reactionSweepPeriod = 1000 * time.Millisecond
	// reactionSamplePeriod is the cadence at which a held-down reaction mode
	// fires: one broadcast plus one local append per tick.
	reactionSamplePeriod = 100 * time.Millisecond
)

// ReactionTracker keeps the local decaying collection of reactions and runs
// the two timer tasks around it: the sampler that fires reactions while the
// pointer is held in reaction mode, and the sweep that purges expired ones.
// Both timers stop when the session context is cancelled, so tearing down a
// canvas view never leaks tickers.
type ReactionTracker struct {
	mu        sync.Mutex
	reactions []models.Reaction

	value   string // active reaction symbol
	pressed bool

	now       func() time.Time
	broadcast func(models.ReactionEvent)
	cursor    func() *models.Point // nil when the pointer is off-canvas
}

// NewReactionTracker wires the tracker to its collaborators. broadcast sends
// the event to peers; cursor reports the current local cursor.
func NewReactionTracker(broadcast func(models.ReactionEvent), cursor func() *models.Point) *ReactionTracker {
	return &ReactionTracker{
		now:       time.Now,
		broadcast: broadcast,
		cursor:    cursor,
	}
}

// Run drives the sampler and sweep tickers until ctx is cancelled.
func (rt *ReactionTracker) Run(ctx context.Context) {
	sample := time.NewTicker(reactionSamplePeriod)
	sweep := time.NewTicker(reactionSweepPeriod)
	defer sample.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sample.C:
			rt.sample()
		case <-sweep.C:
			rt.Sweep()
		}
	}
}

// SetReaction arms the tracker with a reaction symbol (entering reaction
// mode). An empty value disarms it.
func (rt *ReactionTracker) SetReaction(value string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.value = value
	rt.pressed = false
}

// SetPressed tracks whether the pointer is held down.
func (rt *ReactionTracker) SetPressed(pressed bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.pressed = pressed
}

// OnRemote appends a reaction received from a peer. The timestamp is local
// receive time; decay is a local concern.
func (rt *ReactionTracker) OnRemote(event models.ReactionEvent) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.reactions = append(rt.reactions, models.Reaction{
		Point:     models.Point{X: event.X, Y: event.Y},
		Value:     event.Value,
		Timestamp: rt.now(),
	})
}

// Active returns the reactions currently alive in the local collection.
func (rt *ReactionTracker) Active() []models.Reaction {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]models.Reaction, len(rt.reactions))
	copy(out, rt.reactions)
	return out
}

// Sweep purges reactions older than the TTL.
func (rt *ReactionTracker) Sweep() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	cutoff := rt.now().Add(-ReactionTTL)
	kept := rt.reactions[:0]
	for _, r := range rt.reactions {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	rt.reactions = kept
}

// sample fires one reaction if reaction mode is armed, the pointer is held
// down, and the cursor is on-canvas.
func (rt *ReactionTracker) sample() {
	rt.mu.Lock()
	value, pressed := rt.value, rt.pressed
	rt.mu.Unlock()

	if value == "" || !pressed {
		return
	}
	cur := rt.cursor()
	if cur == nil {
		return
	}

	event := models.ReactionEvent{X: cur.X, Y: cur.Y, Value: value}

	rt.mu.Lock()
	rt.reactions = append(rt.reactions, models.Reaction{
		Point:     models.Point{X: event.X, Y: event.Y},
		Value:     event.Value,
		Timestamp: rt.now(),
	})
	rt.mu.Unlock()

	rt.broadcast(event)
}
