package models

import "time"

// CursorMode is the participant's current interaction mode. It travels with
// presence so other participants can render the right cursor affordance.
type CursorMode string

const (
	ModeHidden           CursorMode = "hidden"
	ModeDrawing          CursorMode = "drawing"
	ModeChat             CursorMode = "chat"
	ModeReactionSelector CursorMode = "reaction_selector"
	ModeReaction         CursorMode = "reaction"
)

// PresenceState is one participant's ephemeral state: cursor position (nil
// when the pointer is outside the canvas), interaction mode, and any
// in-progress chat message. It lives only as long as the connection and is
// never part of the durable canvas state.
type PresenceState struct {
	Cursor  *Point     `json:"cursor"`
	Mode    CursorMode `json:"mode"`
	Message string     `json:"message,omitempty"`
}

// Clone returns a copy safe to hand to another goroutine.
func (p PresenceState) Clone() PresenceState {
	out := p
	if p.Cursor != nil {
		c := *p.Cursor
		out.Cursor = &c
	}
	return out
}

// ReactionEvent is a one-shot ephemeral event: a reaction value fired at a
// canvas position. It is broadcast to connected participants only - never
// stored, never replayed to late joiners.
type ReactionEvent struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value string  `json:"value"`
}

// Reaction is a received (or locally fired) reaction held in a participant's
// local decaying collection until its TTL expires.
type Reaction struct {
	Point     Point     `json:"point"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
