package verify

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"

	"github.com/sarchlab/codecsim/job"
)

// Verifier finalizes pages in order: it compares each round-tripped page
// with its source, reports it, and returns the slot to the loader.
type Verifier struct {
	pool    *job.Pool
	summary *job.Summary
	report  *Reporter
	log     logr.Logger

	cursor int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger for per-page outcomes.
func WithLogger(log logr.Logger) Option {
	return func(v *Verifier) {
		v.log = log
	}
}

// NewVerifier creates a verifier reporting into report.
func NewVerifier(pool *job.Pool, summary *job.Summary, report *Reporter, opts ...Option) *Verifier {
	v := &Verifier{
		pool:    pool,
		summary: summary,
		report:  report,
		log:     logr.Discard(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Cursor returns the index of the next slot to finalize.
func (v *Verifier) Cursor() int { return v.cursor }

// Tick finalizes every page waiting at the cursor.
func (v *Verifier) Tick() error {
	for {
		slot := v.pool.Slot(v.cursor)
		if slot.Stage != job.StageFinalize {
			return nil
		}

		if err := v.finalize(slot); err != nil {
			return err
		}

		slot.Recycle()
		v.cursor = v.pool.Next(v.cursor)
	}
}

func (v *Verifier) finalize(slot *job.Slot) error {
	raw := slot.Raw.Data()
	got := slot.Decompressed.Data()
	pass := bytes.Equal(raw, got)

	if pass {
		v.summary.PassedPages++
	} else {
		v.summary.FailedPages++
		v.log.Info("page mismatch",
			"id", slot.ID,
			"rawSize", len(raw),
			"decompressedSize", len(got),
			"firstMismatch", firstMismatch(raw, got),
			"rawDigest", fmt.Sprintf("%016x", xxhash.Sum64(raw)),
			"decompressedDigest", fmt.Sprintf("%016x", xxhash.Sum64(got)),
		)
	}
	v.summary.FinalizedSize += uint64(len(raw))
	v.summary.CompressedBits += uint64(slot.Compressed.Len())

	v.log.V(1).Info("finalized page", "id", slot.ID, "pass", pass,
		"compressedBits", slot.Compressed.Len())

	return v.report.Write(Record{
		ID:             slot.ID,
		Pass:           pass,
		RawSize:        len(raw),
		CompressedBits: slot.Compressed.Len(),
		EncodeCycles:   slot.Encode.Cycles,
		DecodeCycles:   slot.Decode.Cycles,
	})
}

// firstMismatch returns the offset of the first differing byte. A length
// difference counts as a mismatch at the end of the shorter page.
func firstMismatch(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
