package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/sarchlab/codecsim/config"
	"github.com/sarchlab/codecsim/job"
)

// RunReport is the machine-readable record of one run.
type RunReport struct {
	RunID     string         `json:"run_id"`
	Timestamp string         `json:"timestamp"`
	Config    *config.Config `json:"config"`
	Summary   job.Summary    `json:"summary"`
	Discarded int            `json:"discarded_pages"`
	Ratio     float64        `json:"compression_ratio"`
	Ticks     uint64         `json:"ticks"`
}

// PrintSummary writes the run totals in human-readable form.
func (p *PipelineContext) PrintSummary(w io.Writer) {
	s := p.summary

	_, _ = fmt.Fprintln(w, "=== codecsim summary ===")
	_, _ = fmt.Fprintf(w, "Encoder: %s\n", p.encDev.Name())
	_, _ = fmt.Fprintf(w, "Decoder: %s\n", p.decDev.Name())
	_, _ = fmt.Fprintln(w, "  --- Input ---")
	_, _ = fmt.Fprintf(w, "  Total Pages:      %d (%d bytes)\n", s.TotalPages, s.TotalSize)
	_, _ = fmt.Fprintf(w, "  Nonzero Pages:    %d (%d bytes)\n", s.NonzeroPages, s.NonzeroSize)
	_, _ = fmt.Fprintf(w, "  Discarded Pages:  %d\n", p.loader.Discarded())
	_, _ = fmt.Fprintf(w, "  Processed Pages:  %d (%d bytes)\n", s.ProcessedPages, s.ProcessedSize)
	_, _ = fmt.Fprintln(w, "  --- Verification ---")
	_, _ = fmt.Fprintf(w, "  Passed:           %d\n", s.PassedPages)
	_, _ = fmt.Fprintf(w, "  Failed:           %d\n", s.FailedPages)
	if s.FinalizedSize > 0 {
		_, _ = fmt.Fprintf(w, "  Ratio:            %.3f\n", s.Ratio())
	}
	_, _ = fmt.Fprintln(w, "  --- Devices ---")
	_, _ = fmt.Fprintf(w, "  Encode Cycles:    %d (%d stalls)\n", s.EncodeCycles, s.EncodeStalls)
	_, _ = fmt.Fprintf(w, "  Decode Cycles:    %d (%d stalls)\n", s.DecodeCycles, s.DecodeStalls)
}

// PrintJSON writes the run totals as JSON, tagged with a fresh run ID.
func (p *PipelineContext) PrintJSON(w io.Writer) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate run id: %w", err)
	}

	report := RunReport{
		RunID:     id.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Config:    p.cfg,
		Summary:   p.summary,
		Discarded: p.loader.Discarded(),
		Ratio:     p.summary.Ratio(),
		Ticks:     p.ticks,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
