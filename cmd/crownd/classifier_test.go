package main

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func kinds(evs []LogicalEvent) []EventKind {
	out := make([]EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

func expectKinds(t *testing.T, evs []LogicalEvent, want ...EventKind) {
	t.Helper()
	got := kinds(evs)
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestClassifier_ShortPress(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base))
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(120*time.Millisecond)),
		EventPress, EventRelease)
}

func TestClassifier_LongPress(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base))
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(700*time.Millisecond)),
		EventLongPress, EventRelease)
}

func TestClassifier_ThresholdBoundaryIsLongPress(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	// A hold of exactly the threshold counts as a long press.
	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base))
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(500*time.Millisecond)),
		EventLongPress, EventRelease)
}

func TestClassifier_ReleaseWithoutPress(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	// Spurious release must not crash or emit; the classifier resets and the
	// next press/release cycle works normally.
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base))

	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base.Add(time.Second)))
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(1100*time.Millisecond)),
		EventPress, EventRelease)
}

func TestClassifier_RepeatedPressIdempotent(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base))
	// Duplicate pressed reports must not restart the hold timer.
	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base.Add(400*time.Millisecond)))
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(600*time.Millisecond)),
		EventLongPress, EventRelease)
}

func TestClassifier_RotationDirection(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	evs := c.Classify(RotationSignal{Amount: 3, Notches: 2}, base)
	expectKinds(t, evs, EventRotateCW)
	if evs[0].Delta != 2 {
		t.Errorf("expected delta=2 (ratcheted uses notches), got %d", evs[0].Delta)
	}

	evs = c.Classify(RotationSignal{Amount: -3, Notches: -1}, base)
	expectKinds(t, evs, EventRotateCCW)
	if evs[0].Delta != -1 {
		t.Errorf("expected delta=-1, got %d", evs[0].Delta)
	}
}

func TestClassifier_RatchetedFiltersSubNotchMovement(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	// Movement between detents carries amount but no notch crossing.
	expectKinds(t, c.Classify(RotationSignal{Amount: 2, Notches: 0}, base))
}

func TestClassifier_FreeModeUsesAmount(t *testing.T) {
	c := newClassifier(500*time.Millisecond, false, testLogger())
	base := time.Now()

	evs := c.Classify(RotationSignal{Amount: 2, Notches: 0}, base)
	expectKinds(t, evs, EventRotateCW)
	if evs[0].Delta != 2 {
		t.Errorf("expected delta=2, got %d", evs[0].Delta)
	}
}

func TestClassifier_OneEventPerRotationSignal(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	// A large magnitude still produces exactly one event, not one per tick.
	evs := c.Classify(RotationSignal{Amount: 9, Notches: 5}, base)
	if len(evs) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(evs))
	}
}

func TestClassifier_PressedRotationSuppressesClick(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base))
	expectKinds(t, c.Classify(RotationSignal{Amount: 1, Notches: 1}, base.Add(50*time.Millisecond)),
		EventRotateCWPressed)
	// The hold was spent rotating: release alone, no press or long-press.
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(800*time.Millisecond)),
		EventRelease)

	// The suppression does not leak into the next cycle.
	expectKinds(t, c.Classify(ButtonSignal{Pressed: true}, base.Add(time.Second)))
	expectKinds(t, c.Classify(ButtonSignal{Pressed: false}, base.Add(1100*time.Millisecond)),
		EventPress, EventRelease)
}

func TestClassifier_RotationPressedFlagFromReport(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	// The report itself can carry the pressed flag even if no press report
	// was seen yet.
	expectKinds(t, c.Classify(RotationSignal{Amount: -1, Notches: -1, Pressed: true}, base),
		EventRotateCCWPressed)
}

func TestClassifier_ModifierThreading(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	cases := []struct {
		raw  uint8
		want Modifier
	}{
		{modMaskAlt, ModAlt},
		{modMaskShift, ModShift},
		{modMaskCtrl, ModCtrl},
		{modMaskAlt | modMaskShift, ModAlt}, // alt wins
		{0x00, ModNone},
	}

	for _, tc := range cases {
		expectKinds(t, c.Classify(ModifierSignal{Raw: tc.raw}, base))
		evs := c.Classify(RotationSignal{Amount: 1, Notches: 1}, base)
		expectKinds(t, evs, EventRotateCW)
		if evs[0].Modifier != tc.want {
			t.Errorf("raw=0x%02x: expected modifier %s, got %s", tc.raw, tc.want, evs[0].Modifier)
		}
	}
}

func TestClassifier_TouchLeave(t *testing.T) {
	c := newClassifier(500*time.Millisecond, true, testLogger())
	base := time.Now()

	expectKinds(t, c.Classify(TouchSignal{Touching: true}, base), EventTouch)
	expectKinds(t, c.Classify(TouchSignal{Touching: false}, base), EventLeave)
}
