package device

import (
	"bytes"
	"container/heap"
	"errors"
	"fmt"
	"sort"

	"github.com/icza/bitio"
)

// MaxCodeLen is the longest Huffman code the encoder emits. Lengths are
// stored in the page header as 4-bit fields.
const MaxCodeLen = 15

const (
	numSymbols = 256
	lenBits    = 4
	headerBits = numSymbols * lenBits
)

// ErrCorruptStream is returned by the decoder for a code stream it cannot
// parse.
var ErrCorruptStream = errors.New("corrupt huffman stream")

// HuffmanEncode compresses a page into a bit stream, one unit per bit. The
// stream is a header of 256 four-bit canonical code lengths followed by the
// code of every byte.
func HuffmanEncode(page []byte) ([]byte, error) {
	var freq [numSymbols]int
	for _, b := range page {
		freq[b]++
	}

	lengths := codeLengths(freq)
	codes := canonicalCodes(lengths)

	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	nbits := 0
	for _, l := range lengths {
		w.TryWriteBits(uint64(l), lenBits)
	}
	nbits += headerBits
	for _, b := range page {
		w.TryWriteBits(uint64(codes[b]), lengths[b])
		nbits += int(lengths[b])
	}
	if w.TryError != nil {
		return nil, w.TryError
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return unpackBits(buf.Bytes(), nbits)
}

// HuffmanDecode reverses HuffmanEncode. On a corrupt stream it returns the
// bytes decoded so far with ErrCorruptStream.
func HuffmanDecode(units []byte) ([]byte, error) {
	nbits := len(units)
	if nbits < headerBits {
		return nil, fmt.Errorf("%w: %d bits is shorter than the header", ErrCorruptStream, nbits)
	}

	packed, err := packBits(units)
	if err != nil {
		return nil, err
	}
	r := bitio.NewReader(bytes.NewReader(packed))

	var lengths [numSymbols]uint8
	for i := range lengths {
		v, err := r.ReadBits(lenBits)
		if err != nil {
			return nil, err
		}
		lengths[i] = uint8(v)
	}
	table := newDecodeTable(lengths)

	out := make([]byte, 0, nbits/8)
	for read := headerBits; read < nbits; {
		code := 0
		l := 1
		for ; l <= MaxCodeLen; l++ {
			if read == nbits {
				return out, fmt.Errorf("%w: truncated code after %d bytes", ErrCorruptStream, len(out))
			}
			bit, err := r.ReadBool()
			if err != nil {
				return out, err
			}
			read++
			code <<= 1
			if bit {
				code |= 1
			}
			if sym, ok := table.lookup(l, code); ok {
				out = append(out, sym)
				break
			}
		}
		if l > MaxCodeLen {
			return out, fmt.Errorf("%w: invalid code after %d bytes", ErrCorruptStream, len(out))
		}
	}

	return out, nil
}

// unpackBits spreads the first n bits of an MSB-first stream into units.
func unpackBits(packed []byte, n int) ([]byte, error) {
	r := bitio.NewReader(bytes.NewReader(packed))
	units := make([]byte, n)
	for i := range units {
		bit, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if bit {
			units[i] = 1
		}
	}
	return units, nil
}

// packBits packs one-bit units into an MSB-first stream.
func packBits(units []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	for _, u := range units {
		if err := w.WriteBool(u != 0); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type decodeTable struct {
	first  [MaxCodeLen + 2]int
	count  [MaxCodeLen + 2]int
	offset [MaxCodeLen + 2]int
	syms   []byte
}

func newDecodeTable(lengths [numSymbols]uint8) *decodeTable {
	t := &decodeTable{}
	for sym, l := range lengths {
		if l > 0 {
			t.count[l]++
			t.syms = append(t.syms, byte(sym))
		}
	}
	sort.SliceStable(t.syms, func(i, j int) bool {
		return lengths[t.syms[i]] < lengths[t.syms[j]]
	})

	code, idx := 0, 0
	for l := 1; l <= MaxCodeLen; l++ {
		t.first[l] = code
		t.offset[l] = idx
		code = (code + t.count[l]) << 1
		idx += t.count[l]
	}
	return t
}

func (t *decodeTable) lookup(l, code int) (byte, bool) {
	d := code - t.first[l]
	if d < 0 || d >= t.count[l] {
		return 0, false
	}
	return t.syms[t.offset[l]+d], true
}

// canonicalCodes assigns codes in (length, symbol) order.
func canonicalCodes(lengths [numSymbols]uint8) [numSymbols]uint32 {
	var count [MaxCodeLen + 1]int
	for _, l := range lengths {
		if l > 0 {
			count[l]++
		}
	}

	var next [MaxCodeLen + 1]uint32
	code := uint32(0)
	for l := 1; l <= MaxCodeLen; l++ {
		next[l] = code
		code = (code + uint32(count[l])) << 1
	}

	var codes [numSymbols]uint32
	for sym, l := range lengths {
		if l > 0 {
			codes[sym] = next[l]
			next[l]++
		}
	}
	return codes
}

type node struct {
	weight int
	sym    int
	left   *node
	right  *node
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].sym < h[j].sym
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// codeLengths builds Huffman code lengths no longer than MaxCodeLen. When
// the tree is too deep the frequencies are flattened and the tree rebuilt.
func codeLengths(freq [numSymbols]int) [numSymbols]uint8 {
	for {
		lengths, ok := buildLengths(freq)
		if ok {
			return lengths
		}
		for i, f := range freq {
			if f > 0 {
				freq[i] = (f + 1) / 2
			}
		}
	}
}

func buildLengths(freq [numSymbols]int) ([numSymbols]uint8, bool) {
	var lengths [numSymbols]uint8

	h := &nodeHeap{}
	for sym, f := range freq {
		if f > 0 {
			*h = append(*h, &node{weight: f, sym: sym})
		}
	}

	switch h.Len() {
	case 0:
		return lengths, true
	case 1:
		lengths[(*h)[0].sym] = 1
		return lengths, true
	}

	heap.Init(h)
	for h.Len() > 1 {
		a := heap.Pop(h).(*node)
		b := heap.Pop(h).(*node)
		heap.Push(h, &node{
			weight: a.weight + b.weight,
			sym:    min(a.sym, b.sym),
			left:   a,
			right:  b,
		})
	}

	ok := true
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		if n.left == nil {
			if depth > MaxCodeLen {
				ok = false
			}
			lengths[n.sym] = uint8(depth)
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(heap.Pop(h).(*node), 0)

	return lengths, ok
}
