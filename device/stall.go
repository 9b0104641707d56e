package device

import "github.com/sarchlab/codecsim/bus"

// Stalled is a device that never takes input and never produces output.
type Stalled struct {
	name     string
	inWidth  int
	outWidth int
	sig      bus.Signals
}

// NewStalled creates a stalled device with the given lane widths.
func NewStalled(name string, inWidth, outWidth int) *Stalled {
	return &Stalled{name: name, inWidth: inWidth, outWidth: outWidth}
}

// Name implements bus.Device.
func (d *Stalled) Name() string { return d.name }

// InWidth implements bus.Device.
func (d *Stalled) InWidth() int { return d.inWidth }

// OutWidth implements bus.Device.
func (d *Stalled) OutWidth() int { return d.outWidth }

// Signals implements bus.Device.
func (d *Stalled) Signals() *bus.Signals { return &d.sig }

// Reset implements bus.Device.
func (d *Stalled) Reset() { d.sig = bus.Signals{} }

// Eval implements bus.Device.
func (d *Stalled) Eval() { d.sig.ClearDeviceOutputs() }

// Clock implements bus.Device.
func (d *Stalled) Clock() {}
