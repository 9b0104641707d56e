package stream

import (
	"fmt"

	"github.com/sarchlab/codecsim/bus"
	"github.com/sarchlab/codecsim/job"
)

// Direction selects which slot buffers a driver reads and writes.
type Direction int

const (
	// Encode feeds raw bytes in and collects compressed bits.
	Encode Direction = iota
	// Decode feeds compressed bits in and collects decompressed bytes.
	Decode
)

func (d Direction) String() string {
	switch d {
	case Encode:
		return "encode"
	case Decode:
		return "decode"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// endpoint maps bus units onto the slot buffers of one direction.
type endpoint interface {
	stage() job.Stage
	inputLen(s *job.Slot) int
	loadInput(s *job.Slot, off int, lanes *bus.Lanes, n int)
	reserveOutput(s *job.Slot, units, floor int) error
	storeOutput(s *job.Slot, lanes *bus.Lanes, n int)
	counters(s *job.Slot) *job.Counters
	totals(sum *job.Summary) (cycles, stalls *uint64)
}

func endpointFor(d Direction) endpoint {
	switch d {
	case Encode:
		return encodeEndpoint{}
	case Decode:
		return decodeEndpoint{}
	default:
		panic(fmt.Sprintf("stream: unknown direction %d", int(d)))
	}
}

// encodeEndpoint: bytes from Raw in, bits into Compressed out.
type encodeEndpoint struct{}

func (encodeEndpoint) stage() job.Stage { return job.StageEncode }

func (encodeEndpoint) inputLen(s *job.Slot) int { return s.Raw.Len() }

func (encodeEndpoint) loadInput(s *job.Slot, off int, lanes *bus.Lanes, n int) {
	copy(lanes[:n], s.Raw.Data()[off:off+n])
}

func (encodeEndpoint) reserveOutput(s *job.Slot, units, floor int) error {
	return s.Compressed.Reserve(units, floor)
}

func (encodeEndpoint) storeOutput(s *job.Slot, lanes *bus.Lanes, n int) {
	for i := 0; i < n; i++ {
		s.Compressed.AppendBit(lanes[i] != 0)
	}
}

func (encodeEndpoint) counters(s *job.Slot) *job.Counters { return &s.Encode }

func (encodeEndpoint) totals(sum *job.Summary) (*uint64, *uint64) {
	return &sum.EncodeCycles, &sum.EncodeStalls
}

// decodeEndpoint: bits from Compressed in, bytes into Decompressed out.
type decodeEndpoint struct{}

func (decodeEndpoint) stage() job.Stage { return job.StageDecode }

func (decodeEndpoint) inputLen(s *job.Slot) int { return s.Compressed.Len() }

// loadInput reads at the input slot's own bit cursor.
func (decodeEndpoint) loadInput(s *job.Slot, off int, lanes *bus.Lanes, n int) {
	for i := 0; i < n; i++ {
		if s.Compressed.Bit(off + i) {
			lanes[i] = 1
		} else {
			lanes[i] = 0
		}
	}
}

func (decodeEndpoint) reserveOutput(s *job.Slot, units, floor int) error {
	return s.Decompressed.Reserve(units, floor)
}

func (decodeEndpoint) storeOutput(s *job.Slot, lanes *bus.Lanes, n int) {
	s.Decompressed.Append(lanes[:n])
}

func (decodeEndpoint) counters(s *job.Slot) *job.Counters { return &s.Decode }

func (decodeEndpoint) totals(sum *job.Summary) (*uint64, *uint64) {
	return &sum.DecodeCycles, &sum.DecodeStalls
}
