package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleRoomWebSocket handles WebSocket connections for canvas rooms
func (h *Handler) HandleRoomWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleRoomConnection(w, r)
}
