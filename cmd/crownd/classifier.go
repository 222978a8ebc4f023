package main

import (
	"log/slog"
	"time"
)

// ============================================================================
// Event Classifier
// ============================================================================
// The classifier is a small state machine over low-level signals. It owns all
// debounce and hold-timing state and has a single owner: the dispatch loop.
// No other goroutine touches it, so the hot path needs no locks.
//
// Classification is report-driven only. A long press is recognized at release
// time by comparing the hold duration against the threshold; no timer fires
// while the button is still down.
// ============================================================================

// Classifier consumes signals and emits logical events.
type Classifier struct {
	logger    *slog.Logger
	longPress time.Duration
	ratcheted bool

	modifier         Modifier
	buttonDown       bool
	downAt           time.Time
	rotatedWhileDown bool
}

func newClassifier(longPress time.Duration, ratcheted bool, logger *slog.Logger) *Classifier {
	return &Classifier{
		logger:    logger,
		longPress: longPress,
		ratcheted: ratcheted,
		modifier:  ModNone,
	}
}

// Classify consumes one signal and returns the logical events it completes,
// in order. Most signals complete zero or one event; a button release
// completes two (Press/LongPress then Release).
func (c *Classifier) Classify(sig Signal, at time.Time) []LogicalEvent {
	switch s := sig.(type) {
	case ModifierSignal:
		c.modifier = modifierFromRaw(s.Raw)
		return nil

	case RotationSignal:
		return c.classifyRotation(s, at)

	case ButtonSignal:
		return c.classifyButton(s, at)

	case TouchSignal:
		kind := EventTouch
		if !s.Touching {
			kind = EventLeave
		}
		return []LogicalEvent{{Kind: kind, Modifier: c.modifier, At: at}}
	}

	return nil
}

func (c *Classifier) classifyRotation(s RotationSignal, at time.Time) []LogicalEvent {
	// In ratcheted mode only detent crossings count; free-wheel jitter
	// between detents is noise.
	delta := s.Amount
	if c.ratcheted {
		delta = s.Notches
	}
	if delta == 0 {
		return nil
	}

	pressed := s.Pressed || c.buttonDown
	if c.buttonDown {
		// Rotating with the button held turns the gesture into a
		// pressed-rotate; the eventual release must not count as a click.
		c.rotatedWhileDown = true
	}

	var kind EventKind
	switch {
	case delta > 0 && pressed:
		kind = EventRotateCWPressed
	case delta > 0:
		kind = EventRotateCW
	case pressed:
		kind = EventRotateCCWPressed
	default:
		kind = EventRotateCCW
	}

	// One event per rotation signal regardless of magnitude; the delta is
	// carried for consumers that care, but actions are not parameterized
	// by tick count.
	return []LogicalEvent{{Kind: kind, Modifier: c.modifier, Delta: delta, At: at}}
}

func (c *Classifier) classifyButton(s ButtonSignal, at time.Time) []LogicalEvent {
	if s.Pressed {
		if c.buttonDown {
			// Repeated pressed reports while already down are idempotent.
			return nil
		}
		c.buttonDown = true
		c.downAt = at
		c.rotatedWhileDown = false
		// Press vs long-press is only decided at release.
		return nil
	}

	if !c.buttonDown {
		c.logger.Warn("button release without prior press, resetting classifier")
		c.reset()
		return nil
	}

	held := at.Sub(c.downAt)
	rotated := c.rotatedWhileDown
	c.buttonDown = false
	c.rotatedWhileDown = false

	release := LogicalEvent{Kind: EventRelease, Modifier: c.modifier, At: at}
	if rotated {
		// The hold was spent rotating; it was not a click of either length.
		return []LogicalEvent{release}
	}

	kind := EventPress
	if held >= c.longPress {
		kind = EventLongPress
	}
	return []LogicalEvent{
		{Kind: kind, Modifier: c.modifier, At: at},
		release,
	}
}

func (c *Classifier) reset() {
	c.buttonDown = false
	c.rotatedWhileDown = false
	c.downAt = time.Time{}
}
