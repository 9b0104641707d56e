// Package verify checks round-tripped pages against their source and writes
// the per-page report.
package verify

import (
	"fmt"
	"io"
)

// Header is the first line of every report.
const Header = "id,pass?,raw size,compressed size,cycles in compressor,cycles in decompressor"

// Record is the outcome of one verified page.
type Record struct {
	ID             int
	Pass           bool
	RawSize        int
	CompressedBits int
	EncodeCycles   uint64
	DecodeCycles   uint64
}

// Reporter writes records as comma-separated lines. The header is written
// once, before the first record. Write errors are sticky.
type Reporter struct {
	out           io.Writer
	headerWritten bool
	records       int
	err           error
}

// NewReporter creates a reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Write appends one record to the report.
func (r *Reporter) Write(rec Record) error {
	r.writeHeader()

	outcome := "fail"
	if rec.Pass {
		outcome = "pass"
	}

	r.printf("%d,%s,%d,%d,%d,%d\n",
		rec.ID,
		outcome,
		rec.RawSize,
		rec.CompressedBits,
		rec.EncodeCycles,
		rec.DecodeCycles,
	)
	if r.err == nil {
		r.records++
	}

	return r.err
}

// Records returns the number of records written.
func (r *Reporter) Records() int { return r.records }

// Close finishes the report. A report without records still gets its
// header. Close does not close the underlying writer.
func (r *Reporter) Close() error {
	r.writeHeader()
	return r.err
}

func (r *Reporter) writeHeader() {
	if r.headerWritten {
		return
	}
	r.headerWritten = true
	r.printf("%s\n", Header)
}

func (r *Reporter) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.err = fmt.Errorf("writing report: %w", err)
	}
}
