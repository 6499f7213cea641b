package models

/*
WIRE PROTOCOL

Every frame on the room WebSocket is one JSON Envelope. Three traffic classes
share the connection but never mix semantics:

- Ops: durable mutations of the shared object store. The hub assigns each op
  a sequence number, which is the single total order all replicas apply.
- Presence: ephemeral per-participant state, fanned out to peers, dropped on
  disconnect.
- Events: fire-and-forget broadcasts (reactions). Relayed once, never stored,
  never replayed.
*/

// MessageType defines types of messages in the collaboration protocol
type MessageType int

const (
	MessageTypeSync      MessageType = 0 // Initial snapshot of the room store
	MessageTypeOp        MessageType = 1 // Committed store mutation
	MessageTypePresence  MessageType = 2 // Presence state update
	MessageTypeBroadcast MessageType = 3 // Fire-and-forget event

	MessageTypeJoin  MessageType = 10 // Participant joined
	MessageTypeLeave MessageType = 11 // Participant left
	MessageTypeError MessageType = 99 // Error message
)

// OpType is the kind of store mutation an op carries.
type OpType string

const (
	OpUpsert OpType = "upsert"
	OpDelete OpType = "delete"
	OpClear  OpType = "clear"
)

// CanvasOp is one committed mutation of the shared object store. OpID is
// client-generated and lets the committing participant recognize its own op
// when it comes back in the authoritative order; Seq is assigned by the hub.
type CanvasOp struct {
	OpID     string       `json:"op_id"`
	Type     OpType       `json:"op_type"`
	ObjectID string       `json:"object_id,omitempty"`
	Record   *ShapeRecord `json:"record,omitempty"`
	ActorID  string       `json:"actor_id,omitempty"`
	Seq      uint64       `json:"seq,omitempty"`
}

// ObjectEntry is one (objectId, record) pair of a store snapshot, in
// painter's order.
type ObjectEntry struct {
	ObjectID string      `json:"object_id"`
	Record   ShapeRecord `json:"record"`
}

// Envelope is the single frame type exchanged over a room connection.
// Exactly one payload field is set, matching Type.
type Envelope struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`

	Op       *CanvasOp                 `json:"op,omitempty"`
	Presence *PresenceState            `json:"presence,omitempty"`
	Event    *ReactionEvent            `json:"event,omitempty"`
	Snapshot []ObjectEntry             `json:"snapshot,omitempty"`
	Others   map[string]*PresenceState `json:"others,omitempty"`
	User     *UserInfo                 `json:"user,omitempty"`
	Error    string                    `json:"error,omitempty"`
}
