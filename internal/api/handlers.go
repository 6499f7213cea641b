package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"live-canvas/internal/models"
	"live-canvas/internal/services/collaboration"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests
type Handler struct {
	roomRepo    RoomRepository
	roomManager *collaboration.RoomManager
	wsHandler   *collaboration.WebSocketHandler
}

func NewHandler(
	roomRepo RoomRepository,
	roomManager *collaboration.RoomManager,
	wsHandler *collaboration.WebSocketHandler,
) *Handler {
	return &Handler{
		roomRepo:    roomRepo,
		roomManager: roomManager,
		wsHandler:   wsHandler,
	}
}

// Room handlers

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var create models.RoomCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if create.Name == "" {
		create.Name = "Untitled canvas"
	}

	room, err := h.roomRepo.Create(r.Context(), &create)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(room)
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 50 // default
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	rooms, err := h.roomRepo.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rooms":  rooms,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	room, err := h.roomRepo.GetByID(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// GetRoomObjects returns the room's current objects in painter's order -
// the same ordered sequence the rendering side and object panels consume.
func (h *Handler) GetRoomObjects(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	entries, err := h.roomManager.RoomEntries(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.ObjectEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room_id": id,
		"objects": entries,
		"count":   len(entries),
	})
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if err := h.roomRepo.Delete(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
