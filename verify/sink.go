package verify

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Stdio names standard output as a report destination.
const Stdio = "-"

// Sink is an output file. Closing it flushes any compression layer and
// closes the file, leaving standard output open.
type Sink struct {
	io.Writer
	closers []io.Closer
}

// Close closes every layer, outermost first.
func (s *Sink) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// CreateSink opens path for writing. "-" or "" selects standard output. A
// ".gz" suffix gzips the output.
func CreateSink(path string) (*Sink, error) {
	if path == "" || path == Stdio {
		return &Sink{Writer: os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".gz") {
		zw := gzip.NewWriter(f)
		return &Sink{Writer: zw, closers: []io.Closer{zw, f}}, nil
	}

	return &Sink{Writer: f, closers: []io.Closer{f}}, nil
}
