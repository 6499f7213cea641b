package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"live-canvas/internal/models"

	"github.com/gorilla/websocket"
)

// EventHandler receives everything the replication substrate delivers to a
// participant. The engine implements it; tests substitute their own.
type EventHandler interface {
	// OnSnapshot delivers the authoritative store image on (re)connect,
	// together with the presence of participants already in the room.
	OnSnapshot(entries []models.ObjectEntry, others map[string]*models.PresenceState)
	// OnOp delivers one committed op in authoritative total order.
	OnOp(op models.CanvasOp)
	// OnPresence delivers a peer's updated presence state.
	OnPresence(sessionID string, state models.PresenceState)
	// OnEvent delivers one fire-and-forget broadcast event.
	OnEvent(event models.ReactionEvent)
	// OnJoin and OnLeave track peer connection lifecycle.
	OnJoin(sessionID string, user models.UserInfo)
	OnLeave(sessionID string)
	// OnConnectionState reports connectivity changes. A false value is the
	// "disconnected" indication the UI surfaces; it is never an operation
	// failure.
	OnConnectionState(connected bool)
}

// Transport is the client side of the replication substrate: ops toward the
// authoritative store, presence and broadcasts toward peers.
type Transport interface {
	SendOp(op models.CanvasOp) error
	SendPresence(state models.PresenceState) error
	Broadcast(event models.ReactionEvent) error
	Close() error
}

var (
	errDisconnected   = errors.New("not connected")
	errSendBufferFull = errors.New("send buffer full")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// WSTransport is the production Transport over a gorilla WebSocket
// connection. Reads and writes run on separate goroutines so a slow peer
// can never deadlock the engine.
type WSTransport struct {
	conn    *websocket.Conn
	handler EventHandler

	send chan models.Envelope

	mu        sync.Mutex
	connected bool
	closed    bool
}

// DialRoom connects to a room endpoint, e.g.
// ws://host:port/ws/rooms/{id}?user_id=u&user_name=n.
func DialRoom(ctx context.Context, url string, handler EventHandler) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &models.TransportError{Err: err}
	}

	t := &WSTransport{
		conn:      conn,
		handler:   handler,
		send:      make(chan models.Envelope, sendBufferSize),
		connected: true,
	}

	go t.readPump()
	go t.writePump()

	handler.OnConnectionState(true)
	return t, nil
}

func (t *WSTransport) SendOp(op models.CanvasOp) error {
	return t.enqueue(models.Envelope{Type: models.MessageTypeOp, Op: &op})
}

func (t *WSTransport) SendPresence(state models.PresenceState) error {
	return t.enqueue(models.Envelope{Type: models.MessageTypePresence, Presence: &state})
}

func (t *WSTransport) Broadcast(event models.ReactionEvent) error {
	return t.enqueue(models.Envelope{Type: models.MessageTypeBroadcast, Event: &event})
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.send)
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *WSTransport) enqueue(env models.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.connected {
		return &models.TransportError{Err: errDisconnected}
	}
	select {
	case t.send <- env:
		return nil
	default:
		// Buffer full - the connection is stalled. Report it as a transport
		// condition rather than blocking the caller.
		return &models.TransportError{Err: errSendBufferFull}
	}
}

func (t *WSTransport) readPump() {
	defer t.markDisconnected()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("transport read error: %v", err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("transport: dropping malformed frame: %v", err)
			continue
		}

		t.dispatch(env)
	}
}

func (t *WSTransport) dispatch(env models.Envelope) {
	switch env.Type {
	case models.MessageTypeSync:
		t.handler.OnSnapshot(env.Snapshot, env.Others)
	case models.MessageTypeOp:
		if env.Op != nil {
			t.handler.OnOp(*env.Op)
		}
	case models.MessageTypePresence:
		if env.Presence != nil {
			t.handler.OnPresence(env.SessionID, *env.Presence)
		}
	case models.MessageTypeBroadcast:
		if env.Event != nil {
			t.handler.OnEvent(*env.Event)
		}
	case models.MessageTypeJoin:
		if env.User != nil {
			t.handler.OnJoin(env.SessionID, *env.User)
		}
	case models.MessageTypeLeave:
		t.handler.OnLeave(env.SessionID)
	case models.MessageTypeError:
		log.Printf("transport: server error: %s", env.Error)
	}
}

func (t *WSTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case env, ok := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				t.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := t.conn.WriteJSON(env); err != nil {
				t.markDisconnected()
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.markDisconnected()
				return
			}
		}
	}
}

func (t *WSTransport) markDisconnected() {
	t.mu.Lock()
	was := t.connected
	t.connected = false
	t.mu.Unlock()
	if was {
		t.handler.OnConnectionState(false)
	}
}
