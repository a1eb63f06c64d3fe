package s550

import "strings"

// Signed scalars are stored biased: value + center, clamped to the 7-bit
// range. The device uses two centers: 64 for most fields and 2 for the
// octave shift (-2..+2).
const (
	centerGeneral = 64
	centerOctave  = 2
)

func encodeSigned(v, center int) byte {
	e := v + center
	switch {
	case e < 0:
		return 0
	case e > 127:
		return 127
	}
	return byte(e)
}

func decodeSigned(b byte, center int) int {
	return int(b) - center
}

// decodeName keeps printable ASCII, replaces anything else with a space and
// trims trailing padding.
func decodeName(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			c = ' '
		}
		out[i] = c
	}
	return strings.TrimRight(string(out), " ")
}

// encodeName writes name into a field of n bytes, space-padded, truncated,
// non-printable characters replaced with spaces.
func encodeName(name string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	for i := 0; i < len(name) && i < n; i++ {
		c := name[i]
		if c < 0x20 || c > 0x7E {
			c = ' '
		}
		out[i] = c
	}
	return out
}

// encode24 stores a 24-bit wave-memory pointer as three 8-bit bytes, most
// significant first. Wave pointers use full 8-bit bytes unlike the 7-bit
// fields elsewhere; the device mixes both encodings.
func encode24(dst []byte, v uint32) {
	dst[0] = byte(v >> 16)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v)
}

func decode24(src []byte) uint32 {
	return uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2])
}
