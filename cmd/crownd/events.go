package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Logical Events
// ============================================================================
// A LogicalEvent is a classified, debounced crown event. Events are emitted
// by the classifier in strict time order and carry the modifier context that
// was active when they were recognized.
// ============================================================================

// EventKind enumerates the classified crown events.
type EventKind string

const (
	EventRotateCW         EventKind = "rotate_cw"
	EventRotateCCW        EventKind = "rotate_ccw"
	EventRotateCWPressed  EventKind = "rotate_cw_pressed"
	EventRotateCCWPressed EventKind = "rotate_ccw_pressed"
	EventPress            EventKind = "press"
	EventLongPress        EventKind = "long_press"
	EventRelease          EventKind = "release"
	EventTouch            EventKind = "touch"
	EventLeave            EventKind = "leave"
)

// parseEventKind converts a config string into an EventKind.
func parseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventRotateCW, EventRotateCCW, EventRotateCWPressed, EventRotateCCWPressed,
		EventPress, EventLongPress, EventRelease, EventTouch, EventLeave:
		return EventKind(s), nil
	default:
		return "", fmt.Errorf("unknown event kind: %q", s)
	}
}

// Modifier is the keyboard modifier context threaded alongside each event.
// At most one modifier is considered active; alt wins over shift over ctrl,
// matching how the device folds left/right variants into one byte.
type Modifier string

const (
	ModNone  Modifier = "none"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	ModCtrl  Modifier = "ctrl"
)

// parseModifier converts a config string into a Modifier. Empty means none.
func parseModifier(s string) (Modifier, error) {
	switch Modifier(s) {
	case "":
		return ModNone, nil
	case ModNone, ModShift, ModAlt, ModCtrl:
		return Modifier(s), nil
	default:
		return "", fmt.Errorf("unknown modifier: %q", s)
	}
}

// modifierFromRaw folds the raw keyboard modifier byte into a Modifier.
func modifierFromRaw(m uint8) Modifier {
	switch {
	case m&modMaskAlt != 0:
		return ModAlt
	case m&modMaskShift != 0:
		return ModShift
	case m&modMaskCtrl != 0:
		return ModCtrl
	default:
		return ModNone
	}
}

// LogicalEvent is one classified crown event.
type LogicalEvent struct {
	Kind     EventKind
	Modifier Modifier
	Delta    int // signed tick count for rotation kinds, 0 otherwise
	At       time.Time
}

// ============================================================================
// JSON wire format (event feed)
// ============================================================================
// Events cross the websocket feed as an envelope with a type discriminator:
//   {"type": "rotate_cw", "ts": "...", "data": {"modifier": "none", "delta": 1}}
// ============================================================================

type eventEnvelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data eventData  `json:"data"`
}

type eventData struct {
	Modifier Modifier `json:"modifier"`
	Delta    int      `json:"delta,omitempty"`
}

// marshalEvent serializes a LogicalEvent into its wire envelope.
func marshalEvent(ev LogicalEvent) ([]byte, error) {
	env := eventEnvelope{
		Type: string(ev.Kind),
		Data: eventData{Modifier: ev.Modifier, Delta: ev.Delta},
	}
	if !ev.At.IsZero() {
		ts := ev.At.UTC()
		env.Ts = &ts
	}
	return json.Marshal(env)
}

// unmarshalEvent deserializes a wire envelope back into a LogicalEvent.
// Used by feed consumers (cmd/crown-events).
func unmarshalEvent(b []byte) (LogicalEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return LogicalEvent{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	kind, err := parseEventKind(env.Type)
	if err != nil {
		return LogicalEvent{}, err
	}
	mod, err := parseModifier(string(env.Data.Modifier))
	if err != nil {
		return LogicalEvent{}, err
	}
	ev := LogicalEvent{Kind: kind, Modifier: mod, Delta: env.Data.Delta}
	if env.Ts != nil {
		ev.At = *env.Ts
	}
	return ev, nil
}
