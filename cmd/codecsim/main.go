// Package main provides the codecsim command, which streams a page dump
// through an encoder and a decoder device and verifies the round trip.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/codecsim/config"
	"github.com/sarchlab/codecsim/device"
	"github.com/sarchlab/codecsim/harness"
	"github.com/sarchlab/codecsim/job"
	"github.com/sarchlab/codecsim/loader"
	"github.com/sarchlab/codecsim/stream"
	"github.com/sarchlab/codecsim/verify"
)

var (
	configPath  = flag.String("config", "", "Path to run configuration JSON file")
	saveConfig  = flag.String("save-config", "", "Write the effective configuration to this path")
	summaryPath = flag.String("summary", "", "Write a JSON run summary to this path")
	verbosity   = flag.Int("v", 0, "Log verbosity (1: pages, 2: page boundaries)")
	timeout     = flag.Duration("timeout", 0, "Abort the run after this wall-clock duration (0 = none)")
	pageSize    = flag.Int("page-size", loader.DefaultPageSize, "Page size in bytes")
	slots       = flag.Int("slots", job.DefaultPoolSize, "Pages that may be in flight at once")
	idleLimit   = flag.Int("idle-limit", stream.DefaultIdleLimit, "Cycles without progress before a livelock is reported")
	encoderKind = flag.String("encoder", "huffman", "Encoder device: "+strings.Join(device.Kinds(), ", "))
	decoderKind = flag.String("decoder", "huffman", "Decoder device: "+strings.Join(device.Kinds(), ", "))
	latency     = flag.Int("latency", 0, "Output latency of both devices in cycles")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: codecsim [options] [dump [report [encoder-trace [decoder-trace]]]]\n")
	fmt.Fprintf(os.Stderr, "\nA \"-\" reads stdin, writes stdout, or disables a trace.\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	if *saveConfig != "" {
		if err := cfg.SaveConfig(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			return 1
		}
	}

	log := newLogger(*verbosity)

	src, err := loader.Open(cfg.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening dump: %v\n", err)
		return 1
	}
	defer func() { _ = src.Close() }()

	report, err := verify.CreateSink(cfg.Report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening report: %v\n", err)
		return 1
	}
	defer func() { _ = report.Close() }()

	p, err := harness.New(cfg, src, report, harness.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	for _, t := range []struct {
		dir  stream.Direction
		path string
	}{
		{stream.Encode, cfg.EncoderTrace},
		{stream.Decode, cfg.DecoderTrace},
	} {
		if !config.TraceEnabled(t.path) {
			continue
		}
		sink, err := verify.CreateSink(t.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s trace: %v\n", t.dir, err)
			return 1
		}
		defer func() { _ = sink.Close() }()
		p.Trace(t.dir, sink)
	}

	if *timeout > 0 {
		go func() {
			time.Sleep(*timeout)
			fmt.Fprintf(os.Stderr, "\nTimeout reached after %v - stopping run\n", *timeout)
			os.Exit(2)
		}()
	}

	runErr := p.Run()

	if err := report.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("closing report: %w", err)
	}

	p.PrintSummary(os.Stderr)

	if config.TraceEnabled(cfg.Summary) {
		if err := writeSummary(p, cfg.Summary); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summary: %v\n", err)
			return 1
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}

	return 0
}

// loadConfig layers the config file, explicitly set flags and positional
// arguments, in that order.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "summary":
			cfg.Summary = *summaryPath
		case "page-size":
			cfg.PageSize = *pageSize
		case "slots":
			cfg.Slots = *slots
		case "idle-limit":
			cfg.IdleLimit = *idleLimit
		case "encoder":
			cfg.Encoder.Kind = *encoderKind
		case "decoder":
			cfg.Decoder.Kind = *decoderKind
		case "latency":
			cfg.Encoder.Latency = *latency
			cfg.Decoder.Latency = *latency
		}
	})

	positional := []*string{&cfg.Input, &cfg.Report, &cfg.EncoderTrace, &cfg.DecoderTrace}
	if flag.NArg() > len(positional) {
		return nil, fmt.Errorf("too many arguments (want at most %d)", len(positional))
	}
	for i, arg := range flag.Args() {
		*positional[i] = arg
	}

	return cfg, nil
}

func writeSummary(p *harness.PipelineContext, path string) error {
	sink, err := verify.CreateSink(path)
	if err != nil {
		return err
	}

	if err := p.PrintJSON(sink); err != nil {
		_ = sink.Close()
		return err
	}
	return sink.Close()
}

func newLogger(v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: v})
}
