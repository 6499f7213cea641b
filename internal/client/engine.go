package client

import (
	"log"
	"sync"

	"live-canvas/internal/models"
	"live-canvas/internal/store"
)

/*
CLIENT ENGINE

One Engine per participant per room. It owns:

- the optimistic local projection of the shared object store (local echo:
  commits apply here synchronously, before any network round trip),
- the mutation gateway (the only path from local intent to a committed op),
- the per-participant history manager,
- the presence publisher and reaction tracker,
- the pending-op table used to reconcile the local projection against the
  authoritative fan-out.

Reconciliation is deliberately simple because the conflict policy is
last-write-wins with whole-record replace: every op arriving in authoritative
order overwrites the local projection. If a remote commit for an object this
participant just edited arrives later in the total order, the local edit is
silently superseded. That is the documented policy, not an error path.
*/

// Engine is the client-side collaboration core.
type Engine struct {
	actorID string

	mu        sync.Mutex
	local     *store.ObjectStore
	history   *History
	pending   map[string]models.CanvasOp // opID -> op awaiting authoritative echo
	queue     []models.CanvasOp          // ops held while disconnected
	connected bool

	textEditing bool

	transport Transport
	presence  *PresencePublisher
	reactions *ReactionTracker

	interaction InteractionContext

	newOpID func() string
}

// maxQueuedOps bounds the offline op queue. Beyond it the oldest ops are
// dropped; the disconnected indicator is already up by then.
const maxQueuedOps = 512

// NewEngine builds an engine for one participant. Attach the transport with
// SetTransport once dialed (the transport needs the engine as its handler).
func NewEngine(actorID string) *Engine {
	e := &Engine{
		actorID: actorID,
		local:   store.New(),
		history: NewHistory(),
		pending: make(map[string]models.CanvasOp),
		newOpID: newOpID,
	}
	e.presence = NewPresencePublisher(e.sendPresence, defaultPresenceDebounce)
	e.reactions = NewReactionTracker(e.sendBroadcast, e.localCursor)
	e.interaction = NewInteractionContext()
	return e
}

// SetTransport attaches the replication transport.
func (e *Engine) SetTransport(t Transport) {
	e.mu.Lock()
	e.transport = t
	e.mu.Unlock()
}

// Store exposes the optimistic projection. The rendering collaborator reads
// Entries() from it; nothing outside the gateway writes to it.
func (e *Engine) Store() *store.ObjectStore { return e.local }

// Presence exposes the presence channel.
func (e *Engine) Presence() *PresencePublisher { return e.presence }

// Reactions exposes the broadcast/reaction tracker.
func (e *Engine) Reactions() *ReactionTracker { return e.reactions }

// History exposes undo/redo availability for UI state.
func (e *Engine) History() *History { return e.history }

// Connected reports the current connectivity indication.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// SetTextEditing flags that a text-editing interaction is focused. While set,
// undo/redo keyboard intents are suppressed so native text editing keeps its
// own undo.
func (e *Engine) SetTextEditing(editing bool) {
	e.mu.Lock()
	e.textEditing = editing
	e.mu.Unlock()
}

// --- EventHandler: the authoritative side talking back ---

// OnSnapshot replaces the local projection with the authoritative image.
// Delivered on connect and reconnect; "last state wins on reconnect".
func (e *Engine) OnSnapshot(entries []models.ObjectEntry, others map[string]*models.PresenceState) {
	e.local.Restore(entries)

	for sessionID, state := range others {
		if state != nil {
			e.presence.ApplyRemote(sessionID, *state)
		}
	}

	// Anything committed while offline goes out now; the authoritative order
	// decides how it lands.
	e.mu.Lock()
	queued := e.queue
	e.queue = nil
	t := e.transport
	e.mu.Unlock()
	for _, op := range queued {
		if t != nil {
			if err := t.SendOp(op); err != nil {
				log.Printf("engine: replaying queued op %s failed: %v", op.OpID, err)
			}
		}
	}
}

// OnOp applies one committed op from the authoritative total order. The local
// projection is overwritten wholesale - for our own ops this is the
// acknowledgment, for remote ops it may supersede an optimistic edit.
func (e *Engine) OnOp(op models.CanvasOp) {
	e.mu.Lock()
	delete(e.pending, op.OpID)
	e.mu.Unlock()

	e.local.Apply(op)
}

// OnPresence merges a peer's presence into the live view.
func (e *Engine) OnPresence(sessionID string, state models.PresenceState) {
	e.presence.ApplyRemote(sessionID, state)
}

// OnEvent appends a broadcast reaction to the local decaying collection.
func (e *Engine) OnEvent(event models.ReactionEvent) {
	e.reactions.OnRemote(event)
}

// OnJoin registers a new peer.
func (e *Engine) OnJoin(sessionID string, user models.UserInfo) {
	e.presence.AddParticipant(sessionID, user)
}

// OnLeave drops a departed peer's presence.
func (e *Engine) OnLeave(sessionID string) {
	e.presence.RemoveParticipant(sessionID)
}

// OnConnectionState surfaces connectivity to the UI. Disconnection is state,
// not an operation failure: local edits keep applying optimistically.
func (e *Engine) OnConnectionState(connected bool) {
	e.mu.Lock()
	e.connected = connected
	e.mu.Unlock()
}

// --- outbound plumbing ---

func (e *Engine) sendOp(op models.CanvasOp) {
	e.mu.Lock()
	t := e.transport
	connected := e.connected
	if t == nil || !connected {
		e.enqueueLocked(op)
		e.mu.Unlock()
		return
	}
	e.pending[op.OpID] = op
	e.mu.Unlock()

	if err := t.SendOp(op); err != nil {
		e.mu.Lock()
		delete(e.pending, op.OpID)
		e.enqueueLocked(op)
		e.mu.Unlock()
	}
}

func (e *Engine) enqueueLocked(op models.CanvasOp) {
	e.queue = append(e.queue, op)
	if len(e.queue) > maxQueuedOps {
		e.queue = e.queue[len(e.queue)-maxQueuedOps:]
	}
}

func (e *Engine) sendPresence(state models.PresenceState) {
	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.SendPresence(state); err != nil {
		log.Printf("engine: presence publish failed: %v", err)
	}
}

func (e *Engine) sendBroadcast(event models.ReactionEvent) {
	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	if t == nil {
		return
	}
	// Fire-and-forget: a failed broadcast is dropped, never retried.
	if err := t.Broadcast(event); err != nil {
		log.Printf("engine: broadcast dropped: %v", err)
	}
}

func (e *Engine) localCursor() *models.Point {
	return e.presence.Local().Cursor
}
