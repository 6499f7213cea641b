package client

import (
	"live-canvas/internal/models"
)

/*
INPUT DISPATCH

Raw pointer/keyboard events from the input surface are translated into
discrete intents by a dispatch table of pure functions over the interaction
context, and a single application step turns intents into mutations. "What
happened" stays decoupled from "how it's applied": the table produces data,
Apply touches the gateway, presence, and reaction tracker.

The interaction context replaces ambient mutable cells (is-drawing flags,
active shape refs) with one explicit per-session struct.
*/

// InputKind is a raw event class from the input surface.
type InputKind string

const (
	InputPointerDown  InputKind = "pointer_down"
	InputPointerMove  InputKind = "pointer_move"
	InputPointerUp    InputKind = "pointer_up"
	InputPointerLeave InputKind = "pointer_leave"
	InputKeyDown      InputKind = "key_down"
	InputKeyUp        InputKind = "key_up"
)

// InputEvent is one raw event from the input surface.
type InputEvent struct {
	Kind  InputKind
	X, Y  float64
	Key   string
	Ctrl  bool
	Shift bool
}

// IntentKind is a discrete user intention derived from raw input.
type IntentKind string

const (
	IntentMoveCursor     IntentKind = "move_cursor"
	IntentPointerGone    IntentKind = "pointer_gone"
	IntentBeginShape     IntentKind = "begin_shape"
	IntentUpdateGeometry IntentKind = "update_shape_geometry"
	IntentFinalizeShape  IntentKind = "finalize_shape"
	IntentDeleteSelected IntentKind = "delete_selected"
	IntentUndo           IntentKind = "undo"
	IntentRedo           IntentKind = "redo"
	IntentPressReaction  IntentKind = "press_reaction"
	IntentReleasePress   IntentKind = "release_press"
	IntentOpenChat       IntentKind = "open_chat"
	IntentOpenReactions  IntentKind = "open_reactions"
	IntentDismiss        IntentKind = "dismiss"
)

// Intent is one derived intention with its parameters.
type Intent struct {
	Kind IntentKind
	X, Y float64
}

// InteractionContext is the explicit per-session transient interaction
// state: selected tool, in-progress shape, current selection.
type InteractionContext struct {
	Tool          models.ShapeKind
	Drawing       bool
	Active        *models.ShapeRecord
	SelectedID    string
	ReactionValue string
}

func NewInteractionContext() InteractionContext {
	return InteractionContext{Tool: models.KindRectangle}
}

type intentFunc func(ctx *InteractionContext, ev InputEvent) []Intent

// dispatch maps each raw event kind to its pure intent producer.
var dispatch = map[InputKind]intentFunc{
	InputPointerDown:  pointerDownIntents,
	InputPointerMove:  pointerMoveIntents,
	InputPointerUp:    pointerUpIntents,
	InputPointerLeave: pointerLeaveIntents,
	InputKeyDown:      keyDownIntents,
	InputKeyUp:        keyUpIntents,
}

func pointerDownIntents(ctx *InteractionContext, ev InputEvent) []Intent {
	intents := []Intent{{Kind: IntentMoveCursor, X: ev.X, Y: ev.Y}}
	if ctx.ReactionValue != "" {
		return append(intents, Intent{Kind: IntentPressReaction, X: ev.X, Y: ev.Y})
	}
	return append(intents, Intent{Kind: IntentBeginShape, X: ev.X, Y: ev.Y})
}

func pointerMoveIntents(ctx *InteractionContext, ev InputEvent) []Intent {
	intents := []Intent{{Kind: IntentMoveCursor, X: ev.X, Y: ev.Y}}
	if ctx.Drawing {
		intents = append(intents, Intent{Kind: IntentUpdateGeometry, X: ev.X, Y: ev.Y})
	}
	return intents
}

func pointerUpIntents(ctx *InteractionContext, ev InputEvent) []Intent {
	if ctx.ReactionValue != "" {
		return []Intent{{Kind: IntentReleasePress}}
	}
	if ctx.Drawing {
		return []Intent{{Kind: IntentFinalizeShape, X: ev.X, Y: ev.Y}}
	}
	return nil
}

func pointerLeaveIntents(ctx *InteractionContext, ev InputEvent) []Intent {
	return []Intent{{Kind: IntentPointerGone}}
}

func keyDownIntents(ctx *InteractionContext, ev InputEvent) []Intent {
	switch {
	case ev.Ctrl && ev.Shift && ev.Key == "z", ev.Ctrl && ev.Key == "y":
		return []Intent{{Kind: IntentRedo}}
	case ev.Ctrl && ev.Key == "z":
		return []Intent{{Kind: IntentUndo}}
	case ev.Key == "Delete", ev.Key == "Backspace":
		return []Intent{{Kind: IntentDeleteSelected}}
	}
	return nil
}

func keyUpIntents(ctx *InteractionContext, ev InputEvent) []Intent {
	switch ev.Key {
	case "/":
		return []Intent{{Kind: IntentOpenChat}}
	case "e":
		return []Intent{{Kind: IntentOpenReactions}}
	case "Escape":
		return []Intent{{Kind: IntentDismiss}}
	}
	return nil
}

// HandleInput runs one raw event through the dispatch table and applies the
// resulting intents.
func (e *Engine) HandleInput(ev InputEvent) {
	fn, ok := dispatch[ev.Kind]
	if !ok {
		return
	}
	for _, intent := range fn(&e.interaction, ev) {
		e.apply(intent)
	}
}

// SetTool selects the shape tool used by the next begin-shape intent.
func (e *Engine) SetTool(tool models.ShapeKind) {
	e.mu.Lock()
	e.interaction.Tool = tool
	e.mu.Unlock()
}

// SelectObject marks an object as the current selection.
func (e *Engine) SelectObject(objectID string) {
	e.mu.Lock()
	e.interaction.SelectedID = objectID
	e.mu.Unlock()
}

// SetReaction arms reaction mode with the given symbol (empty disarms).
func (e *Engine) SetReaction(value string) {
	e.mu.Lock()
	e.interaction.ReactionValue = value
	e.mu.Unlock()
	e.reactions.SetReaction(value)
	if value != "" {
		e.presence.SetMode(models.ModeReaction)
	}
}

// ModifySelected merges a partial attribute change into the selected
// object's record and commits it as a whole-record replace - the property
// panel path. Unknown objectIds surface as NotFoundError.
func (e *Engine) ModifySelected(apply func(*models.ShapeRecord)) error {
	e.mu.Lock()
	selected := e.interaction.SelectedID
	e.mu.Unlock()
	if selected == "" {
		return &models.NotFoundError{ObjectID: ""}
	}
	record, ok := e.local.Get(selected)
	if !ok {
		return &models.NotFoundError{ObjectID: selected}
	}
	apply(&record)
	return e.CommitUpsert(record)
}

func (e *Engine) apply(intent Intent) {
	switch intent.Kind {
	case IntentMoveCursor:
		// While the reaction selector overlay is open the cursor stays put
		// for peers.
		if e.presence.Local().Mode != models.ModeReactionSelector {
			e.presence.SetCursor(intent.X, intent.Y)
		}

	case IntentPointerGone:
		e.presence.PointerLeave()
		e.reactions.SetPressed(false)
		e.mu.Lock()
		e.interaction.Drawing = false
		e.interaction.Active = nil
		e.mu.Unlock()

	case IntentBeginShape:
		e.mu.Lock()
		record := newShapeAt(e.interaction.Tool, intent.X, intent.Y)
		e.interaction.Active = &record
		e.interaction.Drawing = true
		e.mu.Unlock()
		e.presence.SetMode(models.ModeDrawing)

	case IntentUpdateGeometry:
		e.mu.Lock()
		if e.interaction.Active != nil {
			growShape(e.interaction.Active, intent.X, intent.Y)
		}
		e.mu.Unlock()

	case IntentFinalizeShape:
		e.mu.Lock()
		active := e.interaction.Active
		e.interaction.Active = nil
		e.interaction.Drawing = false
		e.mu.Unlock()
		if active != nil {
			growShape(active, intent.X, intent.Y)
			if err := e.CommitUpsert(*active); err == nil {
				e.SelectObject(active.ObjectID)
			}
		}
		e.presence.SetMode(models.ModeHidden)

	case IntentDeleteSelected:
		e.mu.Lock()
		editing := e.textEditing
		selected := e.interaction.SelectedID
		e.interaction.SelectedID = ""
		e.mu.Unlock()
		if editing || selected == "" {
			return
		}
		// NotFound is benign here: the object may already be gone remotely.
		_ = e.CommitDelete(selected)

	case IntentUndo:
		e.mu.Lock()
		editing := e.textEditing
		e.mu.Unlock()
		if !editing {
			e.Undo()
		}

	case IntentRedo:
		e.mu.Lock()
		editing := e.textEditing
		e.mu.Unlock()
		if !editing {
			e.Redo()
		}

	case IntentPressReaction:
		e.reactions.SetPressed(true)

	case IntentReleasePress:
		e.reactions.SetPressed(false)

	case IntentOpenChat:
		e.presence.SetMode(models.ModeChat)

	case IntentOpenReactions:
		e.presence.SetMode(models.ModeReactionSelector)

	case IntentDismiss:
		e.SetReaction("")
		e.presence.SetMode(models.ModeHidden)
	}
}

// newShapeAt creates the in-progress record for a begin-shape intent.
func newShapeAt(tool models.ShapeKind, x, y float64) models.ShapeRecord {
	record := models.ShapeRecord{
		ObjectID: NewObjectID(),
		Kind:     tool,
		Left:     x,
		Top:      y,
		Fill:     "#aabbcc",
	}
	switch tool {
	case models.KindLine, models.KindFreeform:
		record.Points = []models.Point{{X: x, Y: y}}
		record.Stroke = "#aabbcc"
		record.StrokeWidth = 2
	case models.KindText:
		record.Text = ""
		record.FontSize = 16
		record.FontFamily = "Helvetica"
	}
	return record
}

// growShape folds one more pointer sample into the in-progress geometry.
// Nothing commits here - the drag commits once, on pointer-up.
func growShape(record *models.ShapeRecord, x, y float64) {
	switch record.Kind {
	case models.KindLine:
		if len(record.Points) < 2 {
			record.Points = append(record.Points, models.Point{X: x, Y: y})
		} else {
			record.Points[1] = models.Point{X: x, Y: y}
		}
	case models.KindFreeform:
		record.Points = append(record.Points, models.Point{X: x, Y: y})
	default:
		record.Width = x - record.Left
		record.Height = y - record.Top
		if record.Width < 0 {
			record.Left, record.Width = x, -record.Width
		}
		if record.Height < 0 {
			record.Top, record.Height = y, -record.Height
		}
	}
}
