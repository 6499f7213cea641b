package collaboration

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"live-canvas/internal/middleware"
	"live-canvas/internal/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, validate origin properly
		return true
	},
}

// cursorColors is the palette assigned round-robin to joining participants.
var cursorColors = []string{
	"#E57373", "#9575CD", "#4FC3F7", "#81C784", "#FFD54F", "#FF8A65",
}

// WebSocketHandler handles WebSocket connections for canvas rooms
type WebSocketHandler struct {
	roomManager *RoomManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(roomManager *RoomManager) *WebSocketHandler {
	return &WebSocketHandler{
		roomManager: roomManager,
	}
}

// HandleRoomConnection upgrades the request and attaches the participant to
// a room.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	roomID := vars["id"]

	// Identity comes from query params (no auth in this system by design)
	userID := r.URL.Query().Get("user_id")
	userName := r.URL.Query().Get("user_name")

	if userID == "" {
		userID = "anonymous"
	}
	if userName == "" {
		userName = "Anonymous"
	}

	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.String("room.id", roomID),
		attribute.String("user.id", userID),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	session := &Session{
		Session: models.NewSession(roomID, userID, userName),
		Conn:    conn,
		Send:    make(chan []byte, 256), // Buffered channel
		Manager: h.roomManager,
		Color:   cursorColors[int(time.Now().UnixNano())%len(cursorColors)],
	}

	h.roomManager.register <- session

	// Separate goroutines prevent deadlock between reading and writing
	go session.WritePump(ctx)
	go session.ReadPump(ctx)

	log.Printf("✓ WebSocket connection established for room %s (user: %s, session: %s)",
		roomID, userName, session.ID)
}

// RoomURL builds the WebSocket path for a room, handy for clients and tests.
func RoomURL(roomID string) string {
	return fmt.Sprintf("/ws/rooms/%s", roomID)
}
