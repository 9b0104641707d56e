// Package job holds the pipeline-resident page slots and their stage state
// machine.
package job

import "fmt"

// Stage is a slot's position in the pipeline.
type Stage int

// Pipeline stages, in the only order a slot may visit them.
const (
	StageLoad Stage = iota
	StageEncode
	StageDecode
	StageFinalize
	NumStages
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageEncode:
		return "encode"
	case StageDecode:
		return "decode"
	case StageFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Next returns the stage following s. Finalize has no successor; a finished
// slot goes back to Load through Slot.Recycle.
func (s Stage) Next() Stage {
	if s >= StageFinalize {
		panic(fmt.Sprintf("job: no stage after %s", s))
	}
	return s + 1
}

// Counters are the cycles a page spent inside one device.
type Counters struct {
	// Cycles counts every device cycle while the page was in flight.
	Cycles uint64
	// Stalls counts in-flight cycles where the device moved no data.
	Stalls uint64
}

// Slot carries one page through the pipeline.
type Slot struct {
	// Stage gates which component may touch the slot.
	Stage Stage

	// ID is the page sequence number. It is only meaningful once the slot
	// has left StageLoad.
	ID int

	// Raw holds the source page.
	Raw Bytes
	// Compressed holds the encoder output, bit-packed.
	Compressed Bits
	// Decompressed holds the decoder output.
	Decompressed Bytes

	// Encode and Decode hold per-device cycle counters.
	Encode Counters
	Decode Counters
}

// Advance moves the slot to its next stage.
func (s *Slot) Advance() {
	s.Stage = s.Stage.Next()
}

// Recycle makes a finalized slot available to the loader again. Buffers keep
// their capacity.
func (s *Slot) Recycle() {
	if s.Stage != StageFinalize {
		panic(fmt.Sprintf("job: recycling slot %d in stage %s", s.ID, s.Stage))
	}

	s.Stage = StageLoad
	s.ID = 0
	s.Raw.Reset()
	s.Compressed.Reset()
	s.Decompressed.Reset()
	s.Encode = Counters{}
	s.Decode = Counters{}
}
