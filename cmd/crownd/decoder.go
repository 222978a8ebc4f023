package main

import "time"

// RawReport is one raw HID report plus its arrival time. Reports are
// ephemeral: produced by the device reader, consumed immediately by the
// decoder, never stored.
type RawReport struct {
	Data []byte
	At   time.Time
}

// Signal is the decoded low-level meaning of one raw report.
type Signal interface {
	signalMarker()
}

// RotationSignal is crown movement within one polling interval. The device
// batches ticks per interval, so Amount/Notches are already sums.
type RotationSignal struct {
	Amount  int  // signed free-wheel movement (positive = clockwise)
	Notches int  // signed ratchet detents crossed
	Pressed bool // crown button held during the movement
}

// ButtonSignal is a crown button state change.
type ButtonSignal struct {
	Pressed bool
}

// TouchSignal is a finger landing on (or leaving) the crown surface.
type TouchSignal struct {
	Touching bool
}

// ModifierSignal is the raw keyboard modifier byte.
type ModifierSignal struct {
	Raw uint8
}

// ConnectSignal is the device announcing itself after (re)connecting.
// The ratchet mode must be re-applied when this arrives.
type ConnectSignal struct{}

func (RotationSignal) signalMarker() {}
func (ButtonSignal) signalMarker()   {}
func (TouchSignal) signalMarker()    {}
func (ModifierSignal) signalMarker() {}
func (ConnectSignal) signalMarker()  {}

// Decoder turns raw crown reports into low-level signals.
//
// Malformed or unrecognized reports are expected on a physical bus; they
// yield no signal, bump the discard counter, and are never fatal.
type Decoder struct {
	discarded uint64
}

// Discarded reports the number of reports dropped as unrecognized.
func (d *Decoder) Discarded() uint64 { return d.discarded }

// Decode returns the signal carried by one report, or nil if the report
// carries none.
func (d *Decoder) Decode(r RawReport) Signal {
	b := r.Data

	switch {
	case len(b) > offButton && b[0] == reportIDLong && b[2] == crownFeatureIdx && b[3] == 0x00:
		if b[offRotFlag] != 0 {
			return RotationSignal{
				Amount:  int(int8(b[offRotAmount])),
				Notches: int(int8(b[offRotNotch])),
				Pressed: b[offButton] != 0,
			}
		}
		switch b[offButton] {
		case buttonPressVal:
			return ButtonSignal{Pressed: true}
		case buttonReleaseVal:
			return ButtonSignal{Pressed: false}
		}
		switch b[offTouch] {
		case touchVal:
			return TouchSignal{Touching: true}
		case leaveVal:
			return TouchSignal{Touching: false}
		}

	case len(b) >= 4 && b[0] == reportIDVndKB && b[2] == 0x01:
		return ModifierSignal{Raw: b[3]}

	case len(b) >= 2 && b[0] == reportIDBoot:
		return ModifierSignal{Raw: b[1]}

	case len(b) >= 3 && b[0] == reportIDShort && b[2] == connectFnVal:
		return ConnectSignal{}
	}

	d.discarded++
	return nil
}
