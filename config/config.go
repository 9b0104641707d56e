// Package config holds the run configuration of the verification harness.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/sarchlab/codecsim/bus"
	"github.com/sarchlab/codecsim/device"
	"github.com/sarchlab/codecsim/job"
	"github.com/sarchlab/codecsim/loader"
	"github.com/sarchlab/codecsim/stream"
)

// Disabled turns an optional output off. It is also the stdin/stdout marker
// for the input and the report.
const Disabled = "-"

// DeviceConfig selects and sizes one device under test.
type DeviceConfig struct {
	// Kind is the codec name, see device.Kinds.
	Kind string `json:"kind"`

	// InWidth and OutWidth are lanes per cycle. Zero picks the codec default.
	InWidth  int `json:"in_width"`
	OutWidth int `json:"out_width"`

	// Latency is the cycles between a page's last input and first output.
	Latency int `json:"latency"`

	// Depth is how many finished pages the device may hold. Zero picks the
	// device default.
	Depth int `json:"depth"`
}

// Params converts the configuration into device parameters for pages of
// pageSize bytes.
func (d DeviceConfig) Params(pageSize int) device.Params {
	return device.Params{
		InWidth:  d.InWidth,
		OutWidth: d.OutWidth,
		Latency:  d.Latency,
		Depth:    d.Depth,
		PageSize: pageSize,
	}
}

func (d DeviceConfig) validate(name string) error {
	if !slices.Contains(device.Kinds(), d.Kind) {
		return fmt.Errorf("%s.kind %q is not one of %v", name, d.Kind, device.Kinds())
	}
	if d.InWidth < 0 || d.InWidth > bus.MaxLanes {
		return fmt.Errorf("%s.in_width must be in [0, %d]", name, bus.MaxLanes)
	}
	if d.OutWidth < 0 || d.OutWidth > bus.MaxLanes {
		return fmt.Errorf("%s.out_width must be in [0, %d]", name, bus.MaxLanes)
	}
	if d.Latency < 0 {
		return fmt.Errorf("%s.latency must be >= 0", name)
	}
	if d.Depth < 0 {
		return fmt.Errorf("%s.depth must be >= 0", name)
	}
	return nil
}

// Config is the complete run configuration.
type Config struct {
	// Input is the page dump to read. "-" reads standard input.
	Input string `json:"input"`

	// Report is where the per-page report goes. "-" writes standard output.
	Report string `json:"report"`

	// EncoderTrace and DecoderTrace are VCD waveform paths. "-" or empty
	// disables the trace.
	EncoderTrace string `json:"encoder_trace"`
	DecoderTrace string `json:"decoder_trace"`

	// Summary is an optional JSON summary path.
	Summary string `json:"summary"`

	// PageSize is the page size in bytes. Default: 4096.
	PageSize int `json:"page_size"`

	// Slots is the number of pages that may be in flight. Default: 10.
	Slots int `json:"slots"`

	// IdleLimit is the number of cycles without progress that counts as a
	// livelock. Default: 1000.
	IdleLimit int `json:"idle_limit"`

	// MaxBufferBytes caps any single page buffer. Default: 1 GiB.
	MaxBufferBytes int `json:"max_buffer_bytes"`

	Encoder DeviceConfig `json:"encoder"`
	Decoder DeviceConfig `json:"decoder"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Input:          Disabled,
		Report:         Disabled,
		EncoderTrace:   Disabled,
		DecoderTrace:   Disabled,
		PageSize:       loader.DefaultPageSize,
		Slots:          job.DefaultPoolSize,
		IdleLimit:      stream.DefaultIdleLimit,
		MaxBufferBytes: job.DefaultMaxBufferBytes,
		Encoder:        DeviceConfig{Kind: "huffman"},
		Decoder:        DeviceConfig{Kind: "huffman"},
	}
}

// LoadConfig reads a Config from a JSON file. Fields missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a runnable setup.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be > 0")
	}
	if c.Slots <= 0 {
		return fmt.Errorf("slots must be > 0")
	}
	if c.IdleLimit <= 0 {
		return fmt.Errorf("idle_limit must be > 0")
	}
	if c.MaxBufferBytes < c.PageSize {
		return fmt.Errorf("max_buffer_bytes must be >= page_size")
	}
	if err := c.Encoder.validate("encoder"); err != nil {
		return err
	}
	return c.Decoder.validate("decoder")
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// TraceEnabled reports whether path names a trace destination.
func TraceEnabled(path string) bool {
	return path != "" && path != Disabled
}
