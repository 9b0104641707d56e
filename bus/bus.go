// Package bus defines the cycle-level interface between the harness and a
// streaming transform device.
//
// A device exposes one input channel and one output channel. Every cycle the
// harness presents up to InWidth input units and advertises OutReady units of
// output capacity, evaluates the device, reads back how much was accepted and
// produced, and then clocks the device. Units are bytes on the byte-oriented
// side of a device and single bits on the bit-oriented side.
package bus

import "fmt"

// MaxLanes is the widest input or output channel a device may declare.
const MaxLanes = 64

// Lanes is a fixed-width vector of per-lane values. On a bit-oriented channel
// each lane carries 0 or 1; on a byte-oriented channel each lane carries a
// byte.
type Lanes [MaxLanes]uint8

// Signals holds every wire of the handshake bus.
type Signals struct {
	// Driven by the harness.

	// InValid is the number of input lanes holding valid data.
	InValid int
	// InData carries the presented input units.
	InData Lanes
	// InLast marks that the presented units end the current page.
	InLast bool
	// OutReady is the number of output units the harness can take.
	OutReady int
	// OutRestart acknowledges the last output unit of a page.
	OutRestart bool

	// Driven by the device.

	// InReady is the number of presented input units the device takes.
	InReady int
	// InRestart pulses when the device consumed the last unit of a page and
	// is ready for the next page.
	InRestart bool
	// OutValid is the number of output lanes holding valid data.
	OutValid int
	// OutData carries the produced output units.
	OutData Lanes
	// OutLast marks that the valid output units end the current page.
	OutLast bool
}

// Accepted returns the number of input units transferred this cycle.
func (s *Signals) Accepted() int {
	return min(s.InValid, s.InReady)
}

// Produced returns the number of output units transferred this cycle.
func (s *Signals) Produced() int {
	return min(s.OutValid, s.OutReady)
}

// ClearDeviceOutputs drops everything the device drives. Devices call it at
// the top of Eval.
func (s *Signals) ClearDeviceOutputs() {
	s.InReady = 0
	s.InRestart = false
	s.OutValid = 0
	s.OutLast = false
}

// Device is a cycle-stepped transform under test.
type Device interface {
	// Name identifies the device in logs and traces.
	Name() string

	// InWidth is the number of input units the device can take per cycle.
	InWidth() int

	// OutWidth is the number of output units the device can emit per cycle.
	OutWidth() int

	// Signals returns the bus shared between the harness and the device.
	Signals() *Signals

	// Reset returns the device to its power-on state.
	Reset()

	// Eval updates the device-driven signals from the harness-driven ones.
	// It must not change registered state.
	Eval()

	// Clock applies a rising edge, committing the transfers agreed on
	// during Eval.
	Clock()
}

// ValidateWidths checks that the device's channel widths fit on the bus.
func ValidateWidths(d Device) error {
	if d.InWidth() <= 0 || d.InWidth() > MaxLanes {
		return fmt.Errorf("device %s: input width %d out of range [1, %d]",
			d.Name(), d.InWidth(), MaxLanes)
	}
	if d.OutWidth() <= 0 || d.OutWidth() > MaxLanes {
		return fmt.Errorf("device %s: output width %d out of range [1, %d]",
			d.Name(), d.OutWidth(), MaxLanes)
	}
	return nil
}
