package models

import "fmt"

/*
ERROR TAXONOMY

Three families, none fatal to the session:

1. ValidationError - malformed commit payload. Rejected before it reaches the
   store, surfaced to the caller, never retried automatically.
2. NotFoundError - delete/undo referencing a missing object. Benign; the
   operation becomes a no-op.
3. TransportError - replication substrate unreachable. Local optimistic edits
   keep applying; the condition surfaces to the UI as connectivity state, not
   as an operation failure.
*/

// ValidationError reports a commit payload that failed validation.
type ValidationError struct {
	ObjectID string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.ObjectID == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for object %s: %s", e.ObjectID, e.Reason)
}

// NotFoundError reports an operation against an object that does not exist.
// Callers may ignore it; the store is left unchanged.
type NotFoundError struct {
	ObjectID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %s not found", e.ObjectID)
}

// TransportError reports that the replication substrate is unreachable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport unavailable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
