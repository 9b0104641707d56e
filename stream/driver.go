// Package stream drives a transform device over the handshake bus, one
// clock cycle at a time, moving pages between slot buffers and the device.
package stream

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/codecsim/bus"
	"github.com/sarchlab/codecsim/job"
)

// DefaultIdleLimit is the number of consecutive cycles without progress
// after which a run is declared livelocked.
const DefaultIdleLimit = 1000

// HookPosBusCycle marks the point in a cycle where every bus signal has
// settled, right before the clock edge. Hooks receive a CycleRecord.
var HookPosBusCycle = &sim.HookPos{Name: "BusCycle"}

// CycleRecord is the bus state of one cycle as seen by hooks.
type CycleRecord struct {
	Direction  Direction
	Cycle      uint64
	Signals    bus.Signals
	InputSlot  int
	OutputSlot int
}

// Driver runs the handshake for one direction. The input cursor follows the
// pages being fed to the device; the output cursor follows the pages the
// device is still producing, and may lag behind by as many slots as the
// device keeps in flight.
type Driver struct {
	sim.HookableBase

	dir       Direction
	ep        endpoint
	dev       bus.Device
	pool      *job.Pool
	summary   *job.Summary
	idleLimit int
	floor     int
	log       logr.Logger

	inSeq    uint64
	outSeq   uint64
	inOffset int
	idle     int
	cycle    uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithIdleLimit sets the livelock threshold in cycles.
func WithIdleLimit(cycles int) Option {
	return func(d *Driver) {
		d.idleLimit = cycles
	}
}

// WithGrowthFloor sets the smallest allocation for an output buffer,
// usually the page size.
func WithGrowthFloor(bytes int) Option {
	return func(d *Driver) {
		d.floor = bytes
	}
}

// WithLogger sets the logger for page boundary events.
func WithLogger(log logr.Logger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// NewDriver creates a driver for dir connecting pool to dev.
func NewDriver(
	dir Direction,
	dev bus.Device,
	pool *job.Pool,
	summary *job.Summary,
	opts ...Option,
) *Driver {
	d := &Driver{
		dir:       dir,
		ep:        endpointFor(dir),
		dev:       dev,
		pool:      pool,
		summary:   summary,
		idleLimit: DefaultIdleLimit,
		floor:     4096,
		log:       logr.Discard(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Name identifies the driver.
func (d *Driver) Name() string {
	return fmt.Sprintf("%s.%s", d.dir, d.dev.Name())
}

// Direction returns the direction this driver serves.
func (d *Driver) Direction() Direction { return d.dir }

// Device returns the device under test.
func (d *Driver) Device() bus.Device { return d.dev }

// InputSlot returns the index of the slot being fed to the device.
func (d *Driver) InputSlot() int { return int(d.inSeq % uint64(d.pool.Len())) }

// OutputSlot returns the index of the slot receiving device output.
func (d *Driver) OutputSlot() int { return int(d.outSeq % uint64(d.pool.Len())) }

// InputOffset returns how many units of the input slot were consumed.
func (d *Driver) InputOffset() int { return d.inOffset }

// Cycles returns the number of device cycles run so far.
func (d *Driver) Cycles() uint64 { return d.cycle }

// Reset puts the device into its power-on state and rewinds the cursors.
func (d *Driver) Reset() {
	d.dev.Reset()
	d.inSeq = 0
	d.outSeq = 0
	d.inOffset = 0
	d.idle = 0
}

// inputReady reports whether the input cursor holds a page to feed. The
// input cursor never laps the output cursor.
func (d *Driver) inputReady() bool {
	if d.inSeq-d.outSeq >= uint64(d.pool.Len()) {
		return false
	}
	return d.pool.Slot(d.InputSlot()).Stage == d.ep.stage()
}

func (d *Driver) outputPending() bool {
	return d.pool.Slot(d.OutputSlot()).Stage == d.ep.stage()
}

// Busy reports whether the driver has a page to feed or to drain.
func (d *Driver) Busy() bool {
	return d.inputReady() || d.outputPending()
}

// Tick runs device cycles until the input side has no page left to feed in
// this direction. Output still owed for earlier pages is drained on later
// ticks. Errors are fatal.
func (d *Driver) Tick() error {
	if !d.Busy() {
		return nil
	}

	for {
		stop, err := d.step()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

func (d *Driver) step() (bool, error) {
	sig := d.dev.Signals()
	inIdx := d.InputSlot()
	outIdx := d.OutputSlot()
	in := d.pool.Slot(inIdx)
	out := d.pool.Slot(outIdx)
	feeding := d.inputReady()
	draining := out.Stage == d.ep.stage()

	if draining {
		err := d.ep.reserveOutput(out, d.dev.OutWidth(), d.floor)
		if err != nil {
			return true, d.fail(outIdx, err)
		}
	}

	sig.InValid = 0
	sig.InLast = false
	if feeding {
		remaining := d.ep.inputLen(in) - d.inOffset
		n := min(remaining, d.dev.InWidth())
		d.ep.loadInput(in, d.inOffset, &sig.InData, n)
		sig.InValid = n
		sig.InLast = remaining <= d.dev.InWidth()
	}

	sig.OutReady = 0
	if draining {
		sig.OutReady = d.dev.OutWidth()
	}
	sig.OutRestart = false

	d.dev.Eval()

	accepted := sig.Accepted()
	produced := sig.Produced()
	if produced > 0 {
		d.ep.storeOutput(out, &sig.OutData, produced)
	}

	inRestart := feeding && sig.InRestart
	outRestart := draining && sig.OutLast && produced == sig.OutValid
	sig.OutRestart = outRestart

	d.invokeCycleHook(sig, inIdx, outIdx)
	d.dev.Clock()

	d.inOffset += accepted
	d.attribute(accepted == 0 && produced == 0)
	d.cycle++

	if accepted > 0 || produced > 0 || inRestart || outRestart {
		d.idle = 0
	} else {
		d.idle++
	}

	stop := false
	if inRestart {
		d.log.V(2).Info("input page done", "dir", d.dir, "slot", inIdx,
			"id", in.ID, "units", d.inOffset)
		d.inSeq++
		d.inOffset = 0
		stop = !d.inputReady()
	}

	if outRestart {
		d.log.V(2).Info("output page done", "dir", d.dir, "slot", outIdx,
			"id", out.ID, "cycles", d.ep.counters(out).Cycles)
		out.Advance()
		d.outSeq++
	}

	if !d.inputReady() && !d.outputPending() {
		stop = true
	}

	if d.idle >= d.idleLimit {
		return true, d.fail(d.InputSlot(),
			fmt.Errorf("%w: no progress for %d cycles", ErrProtocolLivelock, d.idle))
	}

	return stop, nil
}

// attribute charges the cycle to every page between the output cursor and
// the input cursor, inclusive, that is still owned by this direction.
func (d *Driver) attribute(stalled bool) {
	cycles, stalls := d.ep.totals(d.summary)
	*cycles++
	if stalled {
		*stalls++
	}

	from, to := d.outSeq, d.inSeq
	if from > to {
		from, to = to, from
	}
	if to-from >= uint64(d.pool.Len()) {
		to = from + uint64(d.pool.Len()) - 1
	}

	k := uint64(d.pool.Len())
	d.pool.Walk(int(from%k), int(to%k), func(_ int, s *job.Slot) {
		if s.Stage != d.ep.stage() {
			return
		}
		c := d.ep.counters(s)
		c.Cycles++
		if stalled {
			c.Stalls++
		}
	})
}

func (d *Driver) invokeCycleHook(sig *bus.Signals, inIdx, outIdx int) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    HookPosBusCycle,
		Item: CycleRecord{
			Direction:  d.dir,
			Cycle:      d.cycle,
			Signals:    *sig,
			InputSlot:  inIdx,
			OutputSlot: outIdx,
		},
	})
}

func (d *Driver) fail(slot int, err error) error {
	return &Error{
		Direction: d.dir,
		Device:    d.dev.Name(),
		Cycle:     d.cycle,
		Slot:      slot,
		Err:       err,
	}
}
