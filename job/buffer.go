package job

import (
	"errors"
	"fmt"
)

// ErrResourceExhausted is returned when a buffer cannot grow to the
// requested size.
var ErrResourceExhausted = errors.New("resource exhausted")

// DefaultMaxBufferBytes caps the size of any single slot buffer.
const DefaultMaxBufferBytes = 1 << 30

// growSize returns the capacity a buffer of capacity cur must grow to so that
// need bytes fit. Growth starts at floor and doubles until need fits.
func growSize(cur, need, floor, limit int) (int, error) {
	size := max(cur*2, floor, 1)
	for size < need {
		if size > limit/2 {
			size = limit
			break
		}
		size *= 2
	}
	size = min(size, limit)
	if size < need {
		return 0, fmt.Errorf("%w: %d bytes requested, limit is %d",
			ErrResourceExhausted, need, limit)
	}
	return size, nil
}

// Bytes is a growable byte buffer. Its capacity never shrinks.
type Bytes struct {
	buf   []byte
	n     int
	limit int
}

// Len returns the number of valid bytes.
func (b *Bytes) Len() int { return b.n }

// Cap returns the allocated capacity in bytes.
func (b *Bytes) Cap() int { return len(b.buf) }

// Data returns the valid bytes. The slice aliases the buffer.
func (b *Bytes) Data() []byte { return b.buf[:b.n] }

// SetLimit bounds the capacity the buffer may grow to. Zero means
// DefaultMaxBufferBytes.
func (b *Bytes) SetLimit(limit int) { b.limit = limit }

// Reserve makes room for extra more bytes. A first allocation or a growth
// step is at least floor bytes; afterwards capacity doubles.
func (b *Bytes) Reserve(extra, floor int) error {
	need := b.n + extra
	if need <= len(b.buf) {
		return nil
	}

	size, err := growSize(len(b.buf), need, floor, limitOr(b.limit))
	if err != nil {
		return err
	}

	buf := make([]byte, size)
	copy(buf, b.buf[:b.n])
	b.buf = buf

	return nil
}

// Free returns the writable tail between Len and Cap.
func (b *Bytes) Free() []byte { return b.buf[b.n:] }

// Commit extends the valid length by n bytes already written into Free.
func (b *Bytes) Commit(n int) {
	if b.n+n > len(b.buf) {
		panic("job: commit past buffer capacity")
	}
	b.n += n
}

// Append copies p to the end of the buffer. The caller must have reserved
// room for it.
func (b *Bytes) Append(p []byte) {
	copy(b.buf[b.n:], p)
	b.Commit(len(p))
}

// Reset drops the contents but keeps the allocation.
func (b *Bytes) Reset() { b.n = 0 }

// Bits is a growable bit buffer. Bit i lives in bit i%8 of byte i/8.
type Bits struct {
	buf   []byte
	n     int
	limit int
}

// Len returns the number of valid bits.
func (b *Bits) Len() int { return b.n }

// Cap returns the allocated capacity in bytes.
func (b *Bits) Cap() int { return len(b.buf) }

// Data returns the bytes covering every valid bit. Bits past Len in the
// final byte are unspecified.
func (b *Bits) Data() []byte { return b.buf[:(b.n+7)/8] }

// SetLimit bounds the capacity the buffer may grow to. Zero means
// DefaultMaxBufferBytes.
func (b *Bits) SetLimit(limit int) { b.limit = limit }

// Reserve makes room for extra more bits, growing the byte capacity by at
// least floor bytes on the first allocation and doubling afterwards.
func (b *Bits) Reserve(extra, floor int) error {
	if b.n+extra <= 8*len(b.buf) {
		return nil
	}

	need := (b.n + extra + 7) / 8
	size, err := growSize(len(b.buf), need, floor, limitOr(b.limit))
	if err != nil {
		return err
	}

	buf := make([]byte, size)
	copy(buf, b.buf)
	b.buf = buf

	return nil
}

// Bit reports bit i.
func (b *Bits) Bit(i int) bool {
	return b.buf[i/8]>>(i%8)&1 == 1
}

// SetBit writes bit i, leaving every other bit of its byte untouched.
func (b *Bits) SetBit(i int, v bool) {
	mask := byte(1) << (i % 8)
	if v {
		b.buf[i/8] |= mask
	} else {
		b.buf[i/8] &^= mask
	}
}

// AppendBit writes v at position Len and extends the buffer by one bit. The
// caller must have reserved room for it.
func (b *Bits) AppendBit(v bool) {
	b.SetBit(b.n, v)
	b.n++
}

// Reset drops the contents but keeps the allocation.
func (b *Bits) Reset() { b.n = 0 }

func limitOr(limit int) int {
	if limit <= 0 {
		return DefaultMaxBufferBytes
	}
	return limit
}
