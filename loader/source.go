package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Stdio is the path that selects standard input or output.
const Stdio = "-"

// Source is an opened page dump.
type Source struct {
	io.Reader
	closers []io.Closer
}

// Close releases the decompressor and the underlying file.
func (s *Source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens a page dump. An empty path or "-" reads standard input. Dumps
// ending in .gz, .zst, .s2 or .lz4 are decompressed on the fly.
func Open(path string) (*Source, error) {
	if path == "" || path == Stdio {
		return &Source{Reader: os.Stdin}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump file: %w", err)
	}

	src, err := wrap(f, filepath.Ext(path))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open dump file %s: %w", path, err)
	}

	return src, nil
}

func wrap(f *os.File, ext string) (*Source, error) {
	switch strings.ToLower(ext) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &Source{Reader: zr, closers: []io.Closer{f, zr}}, nil

	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		rc := dec.IOReadCloser()
		return &Source{Reader: rc, closers: []io.Closer{f, rc}}, nil

	case ".s2":
		return &Source{Reader: s2.NewReader(f), closers: []io.Closer{f}}, nil

	case ".lz4":
		return &Source{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil

	default:
		return &Source{Reader: f, closers: []io.Closer{f}}, nil
	}
}
