package device

import (
	"fmt"
)

// RawEncode spreads every byte into eight one-bit units, least significant
// bit first, so the packed stream is byte-for-byte the page itself.
func RawEncode(page []byte) ([]byte, error) {
	units := make([]byte, 8*len(page))
	for i, b := range page {
		for j := 0; j < 8; j++ {
			units[8*i+j] = b >> j & 1
		}
	}
	return units, nil
}

// RawDecode gathers groups of eight one-bit units back into bytes.
func RawDecode(units []byte) ([]byte, error) {
	out := make([]byte, len(units)/8)
	for i := range out {
		var b byte
		for j := 0; j < 8; j++ {
			b |= (units[8*i+j] & 1) << j
		}
		out[i] = b
	}

	if rest := len(units) % 8; rest != 0 {
		return out, fmt.Errorf("%w: %d trailing bits", ErrCorruptStream, rest)
	}
	return out, nil
}
