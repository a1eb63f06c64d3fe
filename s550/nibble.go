package s550

// The S-550 transmits memory contents as nibble pairs because MIDI data
// bytes only carry 7 bits. Each 8-bit memory byte becomes two bytes on the
// wire: the high nibble first, then the low nibble.

// Nibblize splits each byte of b into a (high, low) nibble pair. The result
// is always twice the length of the input.
func Nibblize(b []byte) []byte {
	out := make([]byte, 0, len(b)*2)
	for _, v := range b {
		out = append(out, v>>4, v&0x0F)
	}
	return out
}

// Denibblize combines consecutive (high, low) nibble pairs back into bytes.
// A trailing unpaired nibble is dropped.
func Denibblize(nibbles []byte) []byte {
	out := make([]byte, 0, len(nibbles)/2)
	for i := 0; i+1 < len(nibbles); i += 2 {
		out = append(out, (nibbles[i]&0x0F)<<4|nibbles[i+1]&0x0F)
	}
	return out
}
