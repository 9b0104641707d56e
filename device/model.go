// Package device provides behavioral models of streaming transform devices
// that speak the handshake bus. They stand in for the hardware under test.
package device

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/codecsim/bus"
)

// Transform turns the input units of a page into its output units. On error
// the returned units are still emitted.
type Transform func(in []byte) ([]byte, error)

type outPage struct {
	units   []byte
	pos     int
	readyAt uint64
}

// Model is a page-at-a-time device. Input units are collected in a page RAM
// until the page's last unit arrives, the page is transformed, and the
// result is streamed out after a fixed latency. Up to Depth pages may be
// waiting for output; while that many are pending the model stops taking
// input.
type Model struct {
	name     string
	inWidth  int
	outWidth int
	latency  uint64
	depth    int
	ramSize  uint64
	fn       Transform

	sig    bus.Signals
	ram    *mem.Storage
	curLen uint64
	queue  []*outPage
	cycle  uint64
	errs   int
}

// DefaultRAMSize is the page RAM capacity in units when none is configured.
const DefaultRAMSize = 16 * mem.MB

// Option configures a Model.
type Option func(*Model)

// WithWidths sets the input and output lanes per cycle.
func WithWidths(in, out int) Option {
	return func(m *Model) {
		m.inWidth = in
		m.outWidth = out
	}
}

// WithLatency sets the cycles between a page's last input unit and its first
// output unit.
func WithLatency(cycles int) Option {
	return func(m *Model) {
		m.latency = uint64(cycles)
	}
}

// WithDepth sets how many finished pages may wait for output.
func WithDepth(pages int) Option {
	return func(m *Model) {
		m.depth = pages
	}
}

// WithRAMSize sets the page RAM capacity in units. A page larger than the
// RAM can never complete.
func WithRAMSize(units uint64) Option {
	return func(m *Model) {
		m.ramSize = units
	}
}

// NewModel creates a model named name that applies fn to each page.
func NewModel(name string, fn Transform, opts ...Option) *Model {
	m := &Model{
		name:     name,
		inWidth:  8,
		outWidth: 8,
		depth:    2,
		ramSize:  DefaultRAMSize,
		fn:       fn,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.depth <= 0 {
		m.depth = 1
	}
	unit := uint64(4 * mem.KB)
	m.ram = mem.NewStorage((m.ramSize + unit - 1) / unit * unit)

	return m
}

// Name implements bus.Device.
func (m *Model) Name() string { return m.name }

// InWidth implements bus.Device.
func (m *Model) InWidth() int { return m.inWidth }

// OutWidth implements bus.Device.
func (m *Model) OutWidth() int { return m.outWidth }

// Signals implements bus.Device.
func (m *Model) Signals() *bus.Signals { return &m.sig }

// Errors returns how many pages failed to transform cleanly.
func (m *Model) Errors() int { return m.errs }

// Reset implements bus.Device.
func (m *Model) Reset() {
	m.sig = bus.Signals{}
	m.curLen = 0
	m.queue = nil
	m.cycle = 0
	m.errs = 0
}

// Eval implements bus.Device.
func (m *Model) Eval() {
	s := &m.sig
	s.ClearDeviceOutputs()

	if len(m.queue) < m.depth {
		room := m.ramSize - m.curLen
		s.InReady = int(min(uint64(min(s.InValid, m.inWidth)), room))
		s.InRestart = s.InLast && s.InReady == s.InValid
	}

	if len(m.queue) > 0 && m.cycle >= m.queue[0].readyAt {
		head := m.queue[0]
		n := min(m.outWidth, len(head.units)-head.pos)
		copy(s.OutData[:n], head.units[head.pos:head.pos+n])
		s.OutValid = n
		s.OutLast = head.pos+n == len(head.units)
	}
}

// Clock implements bus.Device.
func (m *Model) Clock() {
	s := &m.sig

	if n := s.Accepted(); n > 0 {
		if err := m.ram.Write(m.curLen, s.InData[:n]); err != nil {
			panic(fmt.Sprintf("device %s: page RAM write: %v", m.name, err))
		}
		m.curLen += uint64(n)
	}

	if s.InRestart {
		m.closePage()
	}

	if len(m.queue) > 0 && m.cycle >= m.queue[0].readyAt {
		m.queue[0].pos += s.Produced()
		if s.OutRestart {
			m.queue = m.queue[1:]
		}
	}

	m.cycle++
}

func (m *Model) closePage() {
	var in []byte
	if m.curLen > 0 {
		var err error
		in, err = m.ram.Read(0, m.curLen)
		if err != nil {
			panic(fmt.Sprintf("device %s: page RAM read: %v", m.name, err))
		}
	}

	out, err := m.fn(in)
	if err != nil {
		m.errs++
	}

	m.queue = append(m.queue, &outPage{
		units:   out,
		readyAt: m.cycle + m.latency,
	})
	m.curLen = 0
}
