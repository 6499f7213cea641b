package client

import (
	"sync"

	"live-canvas/internal/models"
)

/*
HISTORY MANAGER

Per-participant undo/redo over the shared store. Each committed mutation
captures an immutable (before, after) pair of full store images. History is
local state - a participant undoes only through their own entries, never
through a shared global history, so undoing never rewinds someone else's
concurrent work beyond the objects this participant touched.

Standard branch-discard policy: a new commit clears the redo stack.
*/

// HistoryEntry is one committed mutation's snapshot pair.
type HistoryEntry struct {
	Before []models.ObjectEntry
	After  []models.ObjectEntry
}

// History holds the undo and redo stacks.
type History struct {
	mu   sync.Mutex
	undo []HistoryEntry
	redo []HistoryEntry
}

func NewHistory() *History {
	return &History{}
}

// Record pushes a new entry onto the undo stack and discards redo history.
func (h *History) Record(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, entry)
	h.redo = h.redo[:0]
}

// PopUndo removes and returns the top undo entry, moving it to the redo
// stack. ok is false when the undo stack is empty.
func (h *History) PopUndo() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return HistoryEntry{}, false
	}
	entry := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, entry)
	return entry, true
}

// PopRedo removes and returns the top redo entry, moving it back to the undo
// stack. ok is false when the redo stack is empty.
func (h *History) PopRedo() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return HistoryEntry{}, false
	}
	entry := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, entry)
	return entry, true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}
