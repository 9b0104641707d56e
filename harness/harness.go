// Package harness wires the loader, the two stream drivers and the verifier
// into one round-trip pipeline and runs it to completion.
package harness

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/sarchlab/codecsim/bus"
	"github.com/sarchlab/codecsim/config"
	"github.com/sarchlab/codecsim/device"
	"github.com/sarchlab/codecsim/job"
	"github.com/sarchlab/codecsim/loader"
	"github.com/sarchlab/codecsim/stream"
	"github.com/sarchlab/codecsim/trace"
	"github.com/sarchlab/codecsim/verify"
)

// PipelineContext owns every stage of one run. Each stage keeps its own
// cursor into the shared slot pool.
type PipelineContext struct {
	cfg     *config.Config
	pool    *job.Pool
	summary job.Summary
	log     logr.Logger

	loader   *loader.Loader
	encoder  *stream.Driver
	decoder  *stream.Driver
	verifier *verify.Verifier
	report   *verify.Reporter
	traces   []*trace.VCD

	encDev bus.Device
	decDev bus.Device
	ticks  uint64
}

// Option configures a PipelineContext.
type Option func(*PipelineContext)

// WithLogger sets the logger handed to every stage.
func WithLogger(log logr.Logger) Option {
	return func(p *PipelineContext) {
		p.log = log
	}
}

// WithDevices replaces the devices the configuration would build.
func WithDevices(encoder, decoder bus.Device) Option {
	return func(p *PipelineContext) {
		p.encDev = encoder
		p.decDev = decoder
	}
}

// New builds a pipeline reading pages from src and writing the report to
// report.
func New(cfg *config.Config, src io.Reader, report io.Writer, opts ...Option) (*PipelineContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &PipelineContext{
		cfg: cfg.Clone(),
		log: logr.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.buildDevices(); err != nil {
		return nil, err
	}

	p.pool = job.NewPool(cfg.Slots)
	p.pool.SetBufferLimit(cfg.MaxBufferBytes)
	p.report = verify.NewReporter(report)

	p.loader = loader.New(p.pool, &p.summary, src,
		loader.WithPageSize(cfg.PageSize),
		loader.WithLogger(p.log.WithName("loader")),
	)
	p.encoder = p.newDriver(stream.Encode, p.encDev)
	p.decoder = p.newDriver(stream.Decode, p.decDev)
	p.verifier = verify.NewVerifier(p.pool, &p.summary, p.report,
		verify.WithLogger(p.log.WithName("verifier")),
	)

	return p, nil
}

func (p *PipelineContext) buildDevices() error {
	var err error
	if p.encDev == nil {
		p.encDev, err = device.New(p.cfg.Encoder.Kind, device.Encoder, p.cfg.Encoder.Params(p.cfg.PageSize))
		if err != nil {
			return fmt.Errorf("building encoder: %w", err)
		}
	}
	if p.decDev == nil {
		p.decDev, err = device.New(p.cfg.Decoder.Kind, device.Decoder, p.cfg.Decoder.Params(p.cfg.PageSize))
		if err != nil {
			return fmt.Errorf("building decoder: %w", err)
		}
	}

	for _, dev := range []bus.Device{p.encDev, p.decDev} {
		if err := bus.ValidateWidths(dev); err != nil {
			return err
		}
	}
	return nil
}

func (p *PipelineContext) newDriver(dir stream.Direction, dev bus.Device) *stream.Driver {
	return stream.NewDriver(dir, dev, p.pool, &p.summary,
		stream.WithIdleLimit(p.cfg.IdleLimit),
		stream.WithGrowthFloor(p.cfg.PageSize),
		stream.WithLogger(p.log.WithName(dir.String())),
	)
}

// Driver returns the stream driver of dir.
func (p *PipelineContext) Driver(dir stream.Direction) *stream.Driver {
	if dir == stream.Decode {
		return p.decoder
	}
	return p.encoder
}

// Trace records the bus of dir as a VCD waveform into w.
func (p *PipelineContext) Trace(dir stream.Direction, w io.Writer) *trace.VCD {
	d := p.Driver(dir)
	vcd := trace.NewVCD(w, d.Device().Name(), d.Device().InWidth(), d.Device().OutWidth())
	d.AcceptHook(vcd)
	p.traces = append(p.traces, vcd)
	return vcd
}

// Summary returns the run totals so far.
func (p *PipelineContext) Summary() job.Summary { return p.summary }

// Discarded returns the number of all-zero pages skipped.
func (p *PipelineContext) Discarded() int { return p.loader.Discarded() }

// Ticks returns the number of outer ticks run.
func (p *PipelineContext) Ticks() uint64 { return p.ticks }

// Done reports whether the input is exhausted and every page has been
// verified.
func (p *PipelineContext) Done() bool {
	return p.loader.Done() && p.pool.Idle()
}

// Reset puts both devices into their power-on state.
func (p *PipelineContext) Reset() {
	p.encoder.Reset()
	p.decoder.Reset()
}

// Tick runs every stage once, in pipeline order.
func (p *PipelineContext) Tick() error {
	p.ticks++

	if err := p.loader.Tick(); err != nil {
		return err
	}
	if err := p.encoder.Tick(); err != nil {
		return err
	}
	if err := p.decoder.Tick(); err != nil {
		return err
	}
	return p.verifier.Tick()
}

// Run resets the devices and ticks until every page has been verified. A
// read error on the input ends loading; the pages already loaded are still
// verified before the error is returned.
func (p *PipelineContext) Run() error {
	p.Reset()
	p.log.V(1).Info("run started",
		"encoder", p.encDev.Name(), "decoder", p.decDev.Name(),
		"pageSize", p.cfg.PageSize, "slots", p.pool.Len())

	for !p.Done() {
		if err := p.Tick(); err != nil {
			_ = p.flushTraces()
			return err
		}
	}

	if err := p.report.Close(); err != nil {
		return err
	}
	if err := p.flushTraces(); err != nil {
		return err
	}

	p.log.Info("run finished",
		"pages", p.summary.ProcessedPages,
		"passed", p.summary.PassedPages,
		"failed", p.summary.FailedPages,
		"discarded", p.loader.Discarded())

	return p.loader.Err()
}

func (p *PipelineContext) flushTraces() error {
	var first error
	for _, t := range p.traces {
		if err := t.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
