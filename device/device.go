package device

import (
	"fmt"
	"sort"

	"github.com/sarchlab/codecsim/bus"
)

// Side selects the encoder or the decoder half of a codec.
type Side int

const (
	// Encoder takes bytes and emits bits.
	Encoder Side = iota
	// Decoder takes bits and emits bytes.
	Decoder
)

// Params sizes a device built by New.
type Params struct {
	// InWidth and OutWidth are lanes per cycle. Zero picks the codec default.
	InWidth  int
	OutWidth int
	// Latency is the cycles between a page's last input and first output.
	Latency int
	// Depth is the number of finished pages that may wait for output. Zero
	// picks the model default.
	Depth int
	// PageSize is the largest page of the run in bytes. The page RAM is
	// sized to hold a whole page of input units; zero keeps the default.
	PageSize int
}

// ramUnits returns the page RAM a device needs for pages of pageSize bytes.
// A decoder takes one unit per compressed bit, and no page codes to more
// than MaxCodeLen bits per byte plus the code length header.
func ramUnits(side Side, pageSize int) uint64 {
	need := uint64(pageSize)
	if side == Decoder {
		need = MaxCodeLen*uint64(pageSize) + headerBits
	}
	return max(DefaultRAMSize, need)
}

type codec struct {
	encode Transform
	decode Transform
}

var codecs = map[string]codec{
	"huffman": {encode: HuffmanEncode, decode: HuffmanDecode},
	"raw":     {encode: RawEncode, decode: RawDecode},
	"stall":   {},
}

// Kinds lists the device kinds New accepts.
func Kinds() []string {
	kinds := make([]string, 0, len(codecs))
	for k := range codecs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Default lane widths. The encoder takes bytes and emits bits, the decoder
// the other way round.
const (
	DefaultByteLanes = 8
	DefaultBitLanes  = 32
)

// New builds the encoder or decoder of the named codec.
func New(kind string, side Side, p Params) (bus.Device, error) {
	c, ok := codecs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown device kind %q (want one of %v)", kind, Kinds())
	}

	in, out := DefaultByteLanes, DefaultBitLanes
	fn, name := c.encode, kind+"Encoder"
	if side == Decoder {
		in, out = DefaultBitLanes, DefaultByteLanes
		fn, name = c.decode, kind+"Decoder"
	}
	if p.InWidth > 0 {
		in = p.InWidth
	}
	if p.OutWidth > 0 {
		out = p.OutWidth
	}

	var dev bus.Device
	if fn == nil {
		dev = NewStalled(name, in, out)
	} else {
		opts := []Option{
			WithWidths(in, out),
			WithLatency(p.Latency),
			WithRAMSize(ramUnits(side, p.PageSize)),
		}
		if p.Depth > 0 {
			opts = append(opts, WithDepth(p.Depth))
		}
		dev = NewModel(name, fn, opts...)
	}

	if err := bus.ValidateWidths(dev); err != nil {
		return nil, err
	}
	return dev, nil
}
