// Package loader splits an input byte stream into fixed-size pages and
// hands them to the pipeline.
package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/sarchlab/codecsim/job"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 4096

// Loader fills the slot under its cursor from the input stream. A page is
// complete when it reaches the page size or the stream ends. All-zero pages
// are dropped in place and the slot is reused for the next page.
type Loader struct {
	pool     *job.Pool
	summary  *job.Summary
	src      io.Reader
	pageSize int
	log      logr.Logger

	cursor    int
	done      bool
	err       error
	discarded int
}

// Option configures a Loader.
type Option func(*Loader)

// WithPageSize sets the page size in bytes.
func WithPageSize(size int) Option {
	return func(l *Loader) {
		l.pageSize = size
	}
}

// WithLogger sets the logger for page-level events.
func WithLogger(log logr.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// New creates a loader reading src into pool and counting into summary.
func New(pool *job.Pool, summary *job.Summary, src io.Reader, opts ...Option) *Loader {
	l := &Loader{
		pool:     pool,
		summary:  summary,
		src:      src,
		pageSize: DefaultPageSize,
		log:      logr.Discard(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.pageSize <= 0 {
		l.pageSize = DefaultPageSize
	}

	return l
}

// Tick performs one read into the current slot. It does nothing once the
// stream is exhausted or when the current slot is still owned by a later
// stage. The returned error is fatal to the run.
func (l *Loader) Tick() error {
	if l.done {
		return nil
	}

	slot := l.pool.Slot(l.cursor)
	if slot.Stage != job.StageLoad {
		return nil
	}

	if err := slot.Raw.Reserve(l.pageSize-slot.Raw.Len(), l.pageSize); err != nil {
		return fmt.Errorf("allocating page buffer for slot %d: %w", l.cursor, err)
	}

	n, err := l.src.Read(slot.Raw.Free()[:l.pageSize-slot.Raw.Len()])
	slot.Raw.Commit(n)

	eof := false
	switch {
	case errors.Is(err, io.EOF):
		eof = true
	case err != nil:
		// Loading stops for good; the partial page is dropped.
		l.err = fmt.Errorf("reading page %d: %w", l.summary.TotalPages, err)
		l.done = true
		slot.Raw.Reset()
		return nil
	}

	if slot.Raw.Len() < l.pageSize && !eof {
		return nil
	}

	if eof {
		l.done = true
	}

	if isZero(slot.Raw.Data()) {
		if slot.Raw.Len() > 0 {
			l.discarded++
			l.log.V(1).Info("discarded zero page", "slot", l.cursor, "size", slot.Raw.Len())
		}
		slot.Raw.Reset()
		return nil
	}

	l.commit(slot)

	return nil
}

func (l *Loader) commit(slot *job.Slot) {
	size := uint64(slot.Raw.Len())

	l.summary.TotalPages++
	l.summary.TotalSize += size
	l.summary.NonzeroPages++
	l.summary.NonzeroSize += size

	slot.ID = l.summary.ProcessedPages
	l.summary.ProcessedPages++
	l.summary.ProcessedSize += size

	slot.Advance()
	l.log.V(1).Info("loaded page", "id", slot.ID, "slot", l.cursor, "size", size)

	l.cursor = l.pool.Next(l.cursor)
}

// Done reports whether the loader will never produce another page.
func (l *Loader) Done() bool { return l.done }

// Err returns the read error that stopped loading, if any. End of stream is
// not an error.
func (l *Loader) Err() error { return l.err }

// Discarded returns the number of all-zero pages dropped so far.
func (l *Loader) Discarded() int { return l.discarded }

// PageSize returns the configured page size.
func (l *Loader) PageSize() int { return l.pageSize }

func isZero(p []byte) bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}
