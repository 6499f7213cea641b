package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// ShapeKind is the closed set of shape variants the canvas understands.
// Adding a kind means extending this set and the renderer boundary, not
// introducing a new type hierarchy.
type ShapeKind string

const (
	KindRectangle ShapeKind = "rectangle"
	KindEllipse   ShapeKind = "ellipse"
	KindLine      ShapeKind = "line"
	KindFreeform  ShapeKind = "freeform"
	KindText      ShapeKind = "text"
	KindImage     ShapeKind = "image"
)

// Point is a coordinate pair on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ShapeRecord is the flat on-wire and at-rest representation of one canvas
// object. It is replaced wholesale on every commit - conflict resolution is
// last-write-wins per ObjectID, never a field-level merge.
//
// The field order here defines the serialized order, and serialization must
// round-trip byte-for-byte: Marshal(Unmarshal(Marshal(r))) == Marshal(r).
type ShapeRecord struct {
	ObjectID string    `json:"objectId"`
	Kind     ShapeKind `json:"kind"`

	// Geometry
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle,omitempty"`
	Points []Point `json:"points,omitempty"` // line endpoints / freeform samples

	// Style
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	// Text shapes only
	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"`

	// Image shapes only
	Src string `json:"src,omitempty"`
}

var knownKinds = map[ShapeKind]bool{
	KindRectangle: true,
	KindEllipse:   true,
	KindLine:      true,
	KindFreeform:  true,
	KindText:      true,
	KindImage:     true,
}

// Validate checks that the record is well formed: a non-empty ObjectID, a
// known kind, and finite numeric geometry. It returns a *ValidationError so
// callers can distinguish malformed payloads from infrastructure failures.
func (r *ShapeRecord) Validate() error {
	if r == nil {
		return &ValidationError{Reason: "record is nil"}
	}
	if r.ObjectID == "" {
		return &ValidationError{Reason: "objectId is empty"}
	}
	if !knownKinds[r.Kind] {
		return &ValidationError{ObjectID: r.ObjectID, Reason: fmt.Sprintf("unknown shape kind %q", r.Kind)}
	}

	nums := []float64{r.Left, r.Top, r.Width, r.Height, r.Angle, r.StrokeWidth, r.FontSize}
	for _, p := range r.Points {
		nums = append(nums, p.X, p.Y)
	}
	for _, n := range nums {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return &ValidationError{ObjectID: r.ObjectID, Reason: "geometry contains a non-finite number"}
		}
	}

	return nil
}

// Clone returns a deep copy. History snapshots and the optimistic projection
// must never alias the Points slice of a live record.
func (r ShapeRecord) Clone() ShapeRecord {
	out := r
	if r.Points != nil {
		out.Points = make([]Point, len(r.Points))
		copy(out.Points, r.Points)
	}
	return out
}

// Serialize encodes the record into its persisted wire form.
func (r ShapeRecord) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// DeserializeShape decodes a persisted record and validates it.
func DeserializeShape(data []byte) (ShapeRecord, error) {
	var r ShapeRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return ShapeRecord{}, &ValidationError{Reason: fmt.Sprintf("malformed shape payload: %v", err)}
	}
	if err := r.Validate(); err != nil {
		return ShapeRecord{}, err
	}
	return r, nil
}
