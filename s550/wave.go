package s550

// WaveSampleBits is the sampler's native sample depth.
const WaveSampleBits = 12

// Wave memory stores each 12-bit sample in two bytes: the top 8 bits,
// then the low 4 bits in the upper nibble of the second byte.

// PackWave converts signed samples of the given source bit depth to the
// device's wave-memory layout, rescaling to 12 bits.
func PackWave(samples []int, sourceBits int) []byte {
	out := make([]byte, 0, len(samples)*2)
	shift := sourceBits - WaveSampleBits
	for _, s := range samples {
		if shift > 0 {
			s >>= shift
		} else if shift < 0 {
			s <<= -shift
		}
		v := uint(s + 1<<(WaveSampleBits-1))
		out = append(out, byte(v>>4), byte(v&0xF)<<4)
	}
	return out
}

// UnpackWave is the inverse of PackWave, rescaling to the target bit
// depth. A trailing odd byte is dropped.
func UnpackWave(data []byte, targetBits int) []int {
	out := make([]int, 0, len(data)/2)
	shift := targetBits - WaveSampleBits
	for i := 0; i+1 < len(data); i += 2 {
		v := int(data[i])<<4 | int(data[i+1])>>4
		s := v - 1<<(WaveSampleBits-1)
		if shift > 0 {
			s <<= shift
		} else if shift < 0 {
			s >>= -shift
		}
		out = append(out, s)
	}
	return out
}
