package client

import (
	"sort"
	"sync"
	"time"

	"live-canvas/internal/models"
)

// defaultPresenceDebounce bounds the publish rate under continuous pointer
// movement. Leave and mode transitions bypass it so peers never observe a
// stale cursor or a half-updated modal state.
const defaultPresenceDebounce = 50 * time.Millisecond

// ParticipantPresence pairs a peer's session ID with its latest state.
type ParticipantPresence struct {
	SessionID string
	User      models.UserInfo
	State     models.PresenceState
}

// PresencePublisher owns the local participant's ephemeral state and the live
// view of every peer's state. Local updates merge into one struct and publish
// as a unit, so a modal transition (chat mode plus its message buffer) is
// always visible to peers atomically.
type PresencePublisher struct {
	mu    sync.Mutex
	local models.PresenceState

	others map[string]*ParticipantPresence

	publish  func(models.PresenceState)
	debounce time.Duration
	timer    *time.Timer
	closed   bool
}

// NewPresencePublisher creates a publisher that delivers merged states
// through publish. A zero debounce publishes synchronously (used in tests).
func NewPresencePublisher(publish func(models.PresenceState), debounce time.Duration) *PresencePublisher {
	return &PresencePublisher{
		local:    models.PresenceState{Mode: models.ModeHidden},
		others:   make(map[string]*ParticipantPresence),
		publish:  publish,
		debounce: debounce,
	}
}

// SetCursor records pointer movement inside the canvas.
func (p *PresencePublisher) SetCursor(x, y float64) {
	p.mu.Lock()
	p.local.Cursor = &models.Point{X: x, Y: y}
	after := p.schedulePublishLocked()
	p.mu.Unlock()
	after()
}

// PointerLeave publishes immediately: the cursor becomes absent and any
// in-progress chat message is cleared, never leaving stale coordinates
// visible to peers.
func (p *PresencePublisher) PointerLeave() {
	p.mu.Lock()
	p.local.Cursor = nil
	p.local.Message = ""
	p.local.Mode = models.ModeHidden
	state := p.local.Clone()
	p.cancelTimerLocked()
	p.mu.Unlock()

	p.publish(state)
}

// SetMode switches interaction mode and publishes immediately, together with
// the current message buffer.
func (p *PresencePublisher) SetMode(mode models.CursorMode) {
	p.mu.Lock()
	p.local.Mode = mode
	if mode != models.ModeChat {
		p.local.Message = ""
	}
	state := p.local.Clone()
	p.cancelTimerLocked()
	p.mu.Unlock()

	p.publish(state)
}

// SetMessage updates the transient chat message.
func (p *PresencePublisher) SetMessage(msg string) {
	p.mu.Lock()
	p.local.Message = msg
	after := p.schedulePublishLocked()
	p.mu.Unlock()
	after()
}

// Local returns a copy of the local participant's current state.
func (p *PresencePublisher) Local() models.PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local.Clone()
}

// Flush publishes any pending debounced state now.
func (p *PresencePublisher) Flush() {
	p.mu.Lock()
	p.cancelTimerLocked()
	state := p.local.Clone()
	p.mu.Unlock()
	p.publish(state)
}

// Close cancels the debounce timer. Pending unpublished movement is dropped;
// the connection teardown removes this participant's presence on peers.
func (p *PresencePublisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.cancelTimerLocked()
	p.mu.Unlock()
}

// ApplyRemote merges a peer's published state into the live view.
func (p *PresencePublisher) ApplyRemote(sessionID string, state models.PresenceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.others[sessionID]; ok {
		existing.State = state.Clone()
		return
	}
	p.others[sessionID] = &ParticipantPresence{SessionID: sessionID, State: state.Clone()}
}

// AddParticipant registers a peer on join.
func (p *PresencePublisher) AddParticipant(sessionID string, user models.UserInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.others[sessionID]; ok {
		existing.User = user
		return
	}
	p.others[sessionID] = &ParticipantPresence{
		SessionID: sessionID,
		User:      user,
		State:     models.PresenceState{Mode: models.ModeHidden},
	}
}

// RemoveParticipant drops a peer's state on leave. Presence has no life
// beyond the connection.
func (p *PresencePublisher) RemoveParticipant(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.others, sessionID)
}

// Others returns the current view of all peers, ordered by session ID for
// deterministic iteration.
func (p *PresencePublisher) Others() []ParticipantPresence {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ParticipantPresence, 0, len(p.others))
	for _, pp := range p.others {
		out = append(out, ParticipantPresence{SessionID: pp.SessionID, User: pp.User, State: pp.State.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// schedulePublishLocked arranges the debounced publish. It returns a func to
// run after the lock is released; with a zero debounce that func publishes
// synchronously, otherwise it is a no-op and the timer publishes later.
func (p *PresencePublisher) schedulePublishLocked() func() {
	if p.closed {
		return func() {}
	}
	if p.debounce <= 0 {
		state := p.local.Clone()
		return func() { p.publish(state) }
	}
	if p.timer == nil {
		p.timer = time.AfterFunc(p.debounce, func() {
			p.mu.Lock()
			p.timer = nil
			if p.closed {
				p.mu.Unlock()
				return
			}
			state := p.local.Clone()
			p.mu.Unlock()
			p.publish(state)
		})
	}
	return func() {}
}

func (p *PresencePublisher) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
