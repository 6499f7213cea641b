package collaboration

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"live-canvas/internal/middleware"
	"live-canvas/internal/models"
	"live-canvas/internal/store"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

/*
ROOM HUB

Central coordinator for real-time collaboration. One goroutine owns all room
state and consumes every register/unregister/inbound frame from a channel, so
commits are applied in a single total order per room - that serialization IS
the replication substrate's ordering guarantee. There is no other locking
discipline around the authoritative store.

Three traffic classes, three fates:
- Ops mutate the room's authoritative ObjectStore, get a sequence number,
  are persisted (latest record per object only), and fan out to every
  session including the sender (the echo doubles as the acknowledgment).
- Presence updates overwrite the sender's awareness entry and fan out to
  everyone else; they die with the connection.
- Broadcast events are relayed to everyone else and forgotten.
*/

// CanvasRepository is what the hub needs from persistence. Defined here,
// consumer-driven; the repository package implements it.
type CanvasRepository interface {
	UpsertObject(ctx context.Context, roomID string, record models.ShapeRecord, seq uint64) error
	DeleteObject(ctx context.Context, roomID, objectID string) error
	ClearRoom(ctx context.Context, roomID string) error
	LoadRoom(ctx context.Context, roomID string) ([]models.ObjectEntry, uint64, error)
}

// RoomManager manages all active rooms and their WebSocket sessions.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*room

	register   chan *Session
	unregister chan *Session
	inbound    chan inboundFrame

	canvasRepo CanvasRepository

	cleanupInterval time.Duration
	idleTimeout     time.Duration

	done chan struct{}
}

type room struct {
	id       string
	sessions map[*Session]bool
	store    *store.ObjectStore
	presence map[string]*models.PresenceState // sessionID -> latest state
}

type inboundFrame struct {
	session  *Session
	envelope models.Envelope
}

// Session represents an active WebSocket connection to a room.
type Session struct {
	*models.Session
	Conn    *websocket.Conn
	Send    chan []byte // Buffered channel for outbound messages
	Manager *RoomManager
	Color   string
}

// NewRoomManager creates a new room manager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:           make(map[string]*room),
		register:        make(chan *Session),
		unregister:      make(chan *Session),
		inbound:         make(chan inboundFrame, 256),
		cleanupInterval: 30 * time.Second,
		idleTimeout:     5 * time.Minute,
		done:            make(chan struct{}),
	}
}

// SetSessionTimeouts overrides the idle-session timeout and cleanup cadence.
// Call before Start.
func (rm *RoomManager) SetSessionTimeouts(idleTimeout, cleanupInterval time.Duration) {
	if idleTimeout > 0 {
		rm.idleTimeout = idleTimeout
	}
	if cleanupInterval > 0 {
		rm.cleanupInterval = cleanupInterval
	}
}

// SetCanvasRepository sets the repository used to persist room snapshots.
func (rm *RoomManager) SetCanvasRepository(repo CanvasRepository) {
	rm.canvasRepo = repo
}

// Start begins the hub event loop.
func (rm *RoomManager) Start() {
	log.Println("🔄 Starting room hub...")

	go func() {
		for {
			select {
			case <-rm.done:
				log.Println("Room hub shutting down...")
				return

			case session := <-rm.register:
				rm.handleRegister(session)

			case session := <-rm.unregister:
				rm.handleUnregister(session)

			case frame := <-rm.inbound:
				rm.handleInbound(frame)
			}
		}
	}()

	go rm.cleanupLoop()

	log.Println("✓ Room hub started")
}

// handleRegister adds a session to its room, loading the room's last
// persisted state on first join.
func (rm *RoomManager) handleRegister(session *Session) {
	rm.mu.Lock()
	r := rm.rooms[session.RoomID]
	if r == nil {
		r = &room{
			id:       session.RoomID,
			sessions: make(map[*Session]bool),
			store:    store.New(),
			presence: make(map[string]*models.PresenceState),
		}
		rm.rooms[session.RoomID] = r
		rm.loadRoomState(r)
	}
	r.sessions[session] = true
	others := make(map[string]*models.PresenceState, len(r.presence))
	for id, state := range r.presence {
		s := state.Clone()
		others[id] = &s
	}
	snapshot := r.store.Snapshot()
	rm.mu.Unlock()

	log.Printf("  Session %s joined room %s (total: %d users)",
		session.ID, session.RoomID, rm.roomSize(session.RoomID))

	// Authoritative image first - "last state wins on reconnect".
	rm.sendTo(session, models.Envelope{
		Type:     models.MessageTypeSync,
		Snapshot: snapshot,
		Others:   others,
	})

	rm.fanOut(session.RoomID, models.Envelope{
		Type:      models.MessageTypeJoin,
		SessionID: session.ID,
		User: &models.UserInfo{
			ID:    session.UserID,
			Name:  session.UserName,
			Color: session.Color,
		},
	}, session)
}

// handleUnregister removes a session and its presence from the room.
func (rm *RoomManager) handleUnregister(session *Session) {
	rm.mu.Lock()
	r := rm.rooms[session.RoomID]
	if r == nil || !r.sessions[session] {
		rm.mu.Unlock()
		return
	}
	delete(r.sessions, session)
	delete(r.presence, session.ID)
	close(session.Send)

	empty := len(r.sessions) == 0
	if empty {
		// Room state lives on in the repository; the in-memory replica goes.
		delete(rm.rooms, session.RoomID)
	}
	remaining := len(r.sessions)
	rm.mu.Unlock()

	log.Printf("  Session %s left room %s (remaining: %d users)",
		session.ID, session.RoomID, remaining)

	if !empty {
		rm.fanOut(session.RoomID, models.Envelope{
			Type:      models.MessageTypeLeave,
			SessionID: session.ID,
		}, nil)
	}
}

// handleInbound routes one parsed frame from a session.
func (rm *RoomManager) handleInbound(frame inboundFrame) {
	switch frame.envelope.Type {
	case models.MessageTypeOp:
		if frame.envelope.Op != nil {
			rm.commitOp(frame.session, *frame.envelope.Op)
		}

	case models.MessageTypePresence:
		if frame.envelope.Presence != nil {
			rm.updatePresence(frame.session, *frame.envelope.Presence)
		}

	case models.MessageTypeBroadcast:
		if frame.envelope.Event != nil {
			// Fire-and-forget: relay to peers, store nothing, replay nothing.
			rm.fanOut(frame.session.RoomID, models.Envelope{
				Type:      models.MessageTypeBroadcast,
				SessionID: frame.session.ID,
				Event:     frame.envelope.Event,
			}, frame.session)
		}

	default:
		rm.sendTo(frame.session, models.Envelope{
			Type:  models.MessageTypeError,
			Error: "unsupported message type",
		})
	}
}

// commitOp validates and applies one op to the authoritative store, assigns
// its sequence number, persists the result, and fans it out to every session
// in the room - sender included; the echo is the acknowledgment.
func (rm *RoomManager) commitOp(session *Session, op models.CanvasOp) {
	rm.mu.Lock()
	r := rm.rooms[session.RoomID]
	if r == nil {
		rm.mu.Unlock()
		return
	}

	op.ActorID = session.ID

	switch op.Type {
	case models.OpUpsert:
		if op.Record == nil {
			rm.mu.Unlock()
			rm.rejectOp(session, op, "upsert without record")
			return
		}
		if err := op.Record.Validate(); err != nil {
			rm.mu.Unlock()
			rm.rejectOp(session, op, err.Error())
			return
		}
		op.ObjectID = op.Record.ObjectID
		op.Seq = r.store.Set(op.ObjectID, *op.Record)

	case models.OpDelete:
		seq, ok := r.store.Delete(op.ObjectID)
		if !ok {
			// Benign: the object is already gone. Nothing to order or fan out.
			rm.mu.Unlock()
			return
		}
		op.Seq = seq

	case models.OpClear:
		op.Seq, _ = r.store.ClearAll()

	default:
		rm.mu.Unlock()
		rm.rejectOp(session, op, "unknown op type")
		return
	}
	rm.mu.Unlock()

	rm.persistOp(session.RoomID, op)

	rm.fanOut(session.RoomID, models.Envelope{
		Type:      models.MessageTypeOp,
		SessionID: session.ID,
		Op:        &op,
	}, nil)
}

func (rm *RoomManager) rejectOp(session *Session, op models.CanvasOp, reason string) {
	log.Printf("⚠️  Rejecting op %s from session %s: %s", op.OpID, session.ID, reason)
	rm.sendTo(session, models.Envelope{
		Type:  models.MessageTypeError,
		Error: reason,
	})
}

// persistOp writes the op's outcome through the repository. Persistence keeps
// only the latest record per object: enough for "last state wins" resync,
// deliberately not an op log.
func (rm *RoomManager) persistOp(roomID string, op models.CanvasOp) {
	if rm.canvasRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ctx, span := middleware.StartSpan(ctx, "RoomManager.PersistOp",
		attribute.String("room.id", roomID),
		attribute.String("op.type", string(op.Type)),
		attribute.Int64("op.seq", int64(op.Seq)),
	)
	defer span.End()

	var err error
	switch op.Type {
	case models.OpUpsert:
		err = rm.canvasRepo.UpsertObject(ctx, roomID, *op.Record, op.Seq)
	case models.OpDelete:
		err = rm.canvasRepo.DeleteObject(ctx, roomID, op.ObjectID)
	case models.OpClear:
		err = rm.canvasRepo.ClearRoom(ctx, roomID)
	}
	if err != nil {
		log.Printf("Failed to persist op %s for room %s: %v", op.OpID, roomID, err)
		middleware.AddSpanError(ctx, err)
	}
}

// updatePresence overwrites the sender's awareness entry and fans the state
// out to everyone else.
func (rm *RoomManager) updatePresence(session *Session, state models.PresenceState) {
	rm.mu.Lock()
	r := rm.rooms[session.RoomID]
	if r == nil {
		rm.mu.Unlock()
		return
	}
	s := state.Clone()
	r.presence[session.ID] = &s
	rm.mu.Unlock()

	rm.fanOut(session.RoomID, models.Envelope{
		Type:      models.MessageTypePresence,
		SessionID: session.ID,
		Presence:  &state,
	}, session)
}

// loadRoomState hydrates a fresh in-memory room from the repository.
// Called with rm.mu held.
func (rm *RoomManager) loadRoomState(r *room) {
	if rm.canvasRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, _, err := rm.canvasRepo.LoadRoom(ctx, r.id)
	if err != nil {
		log.Printf("Failed to load room %s state: %v", r.id, err)
		return
	}
	r.store.Restore(entries)
	log.Printf("  Loaded %d objects for room %s", len(entries), r.id)
}

// fanOut sends an envelope to every session in a room, skipping skip when
// set. Sessions with a full buffer are considered dead and unregistered.
func (rm *RoomManager) fanOut(roomID string, env models.Envelope, skip *Session) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("Failed to marshal envelope: %v", err)
		return
	}

	rm.mu.RLock()
	r := rm.rooms[roomID]
	var sessions []*Session
	if r != nil {
		for s := range r.sessions {
			if s != skip {
				sessions = append(sessions, s)
			}
		}
	}
	rm.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.Send <- data:
			// Message queued successfully
		default:
			// Buffer full - connection is slow/dead
			log.Printf("⚠️  Session %s buffer full, closing connection", s.ID)
			go func(dead *Session) { rm.unregister <- dead }(s)
		}
	}
}

func (rm *RoomManager) sendTo(session *Session, env models.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("Failed to marshal envelope: %v", err)
		return
	}
	select {
	case session.Send <- data:
	default:
		log.Printf("⚠️  Session %s buffer full on direct send", session.ID)
	}
}

// RoomEntries returns the current ordered store contents for a room, used by
// the HTTP snapshot endpoint. Falls back to the repository when the room has
// no live replica.
func (rm *RoomManager) RoomEntries(ctx context.Context, roomID string) ([]models.ObjectEntry, error) {
	rm.mu.RLock()
	r := rm.rooms[roomID]
	rm.mu.RUnlock()
	if r != nil {
		return r.store.Entries(), nil
	}
	if rm.canvasRepo == nil {
		return nil, nil
	}
	entries, _, err := rm.canvasRepo.LoadRoom(ctx, roomID)
	return entries, err
}

func (rm *RoomManager) roomSize(roomID string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if r := rm.rooms[roomID]; r != nil {
		return len(r.sessions)
	}
	return 0
}

// cleanupLoop periodically removes inactive sessions.
func (rm *RoomManager) cleanupLoop() {
	ticker := time.NewTicker(rm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.done:
			return
		case <-ticker.C:
			rm.cleanup()
		}
	}
}

// cleanup removes stale sessions.
func (rm *RoomManager) cleanup() {
	timeout := rm.idleTimeout
	now := time.Now()

	rm.mu.RLock()
	var stale []*Session
	for _, r := range rm.rooms {
		for s := range r.sessions {
			if now.Sub(s.LastActiveAt) > timeout {
				stale = append(stale, s)
			}
		}
	}
	rm.mu.RUnlock()

	for _, s := range stale {
		log.Printf("  Cleaning up inactive session %s", s.ID)
		rm.unregister <- s
	}
}

// Shutdown gracefully closes all connections.
func (rm *RoomManager) Shutdown() {
	log.Println("🛑 Shutting down room hub...")

	close(rm.done)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, r := range rm.rooms {
		for s := range r.sessions {
			close(s.Send)
			s.Conn.Close()
		}
	}
	rm.rooms = make(map[string]*room)

	log.Println("✓ Room hub shutdown complete")
}

// Session methods

// ReadPump reads frames from the WebSocket connection and hands them to the
// hub. One goroutine per session.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		s.Manager.unregister <- s
		s.Conn.Close()
	}()

	s.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		s.LastActiveAt = time.Now()
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.LastActiveAt = time.Now()

		msgCtx, span := middleware.StartSpan(ctx, "WebSocket.ProcessMessage",
			attribute.String("session.id", s.ID),
			attribute.String("room.id", s.RoomID),
			attribute.Int("message.size", len(message)),
		)

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Dropping malformed frame from session %s: %v", s.ID, err)
			middleware.AddSpanError(msgCtx, err)
			span.End()
			continue
		}

		s.Manager.inbound <- inboundFrame{session: s, envelope: env}

		span.End()
	}
}

// WritePump writes messages to the WebSocket connection. A separate goroutine
// per session prevents a slow client from blocking the hub.
func (s *Session) WritePump(ctx context.Context) {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
