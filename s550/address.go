package s550

import "fmt"

// Address is a location in the sampler's parameter memory: 28 bits, sent as
// four 7-bit bytes, most significant first. Addresses count nibbles, so any
// address used in a bulk request must be nibble-pair aligned (even low
// byte). Arithmetic is done on the linear value; carries across the 7-bit
// wire bytes fall out of the encoding.
type Address uint32

// Addr assembles an address from its four wire bytes.
func Addr(b0, b1, b2, b3 byte) Address {
	return Address(b0)<<21 | Address(b1)<<14 | Address(b2)<<7 | Address(b3)
}

// Encode returns the four wire bytes of the address.
func (a Address) Encode() [4]byte {
	return [4]byte{
		byte(a >> 21 & 0x7F),
		byte(a >> 14 & 0x7F),
		byte(a >> 7 & 0x7F),
		byte(a & 0x7F),
	}
}

// DecodeAddress reads a 4-byte wire address.
func DecodeAddress(b []byte) (Address, error) {
	if len(b) != 4 {
		return 0, ErrMalformed
	}
	for _, v := range b {
		if v > 0x7F {
			return 0, ErrMalformed
		}
	}
	return Addr(b[0], b[1], b[2], b[3]), nil
}

// Aligned reports whether the address may be used in a bulk request.
func (a Address) Aligned() bool {
	return a&1 == 0
}

func (a Address) String() string {
	b := a.Encode()
	return fmt.Sprintf("%02x %02x %02x %02x", b[0], b[1], b[2], b[3])
}

// One "bank" of address space. Slot strides are expressed in banks; the
// bank counter spans the top two wire bytes, so slots past the 7-bit
// boundary carry into the first byte.
const bankUnit = 1 << 14

// Memory map. Strides and the out-of-line tone 0 block were observed on
// hardware, not derived; do not "fix" them.
const (
	// Function area: multi-timbral part setup, 8 consecutive bytes per
	// field (parts A-H), read and written only as whole groups.
	functionBase = Address(16 << 7)

	// Front-panel state echo. Button/LED traffic only, never durable
	// parameters.
	panelAddress = Address(64 << 7)

	patchBase   = Address(1 * bankUnit)
	patchStride = Address(4 * bankUnit)

	toneBase   = Address(260 * bankUnit)
	toneStride = Address(2 * bankUnit)
	// Tone 0 lives below the strided region.
	toneZeroBase = Address(258 * bankUnit)

	// Wave memory. A tone's 24-bit wave pointers count bytes from the
	// start of this region.
	waveBase = Address(512 * bankUnit)
)

// WaveAddress returns the bulk address of a wave-memory byte offset.
func WaveAddress(offset uint32) Address {
	return waveBase + Address(2*offset)
}

const (
	// NumPatches is the number of performance patch slots.
	NumPatches = 64
	// NumTones is the number of sample-definition tone slots.
	NumTones = 32
)

// PatchSlotAddress returns the wire address of patch slot n (0..63).
func PatchSlotAddress(n int) Address {
	return patchBase + Address(n)*patchStride
}

// ToneSlotAddress returns the wire address of tone slot n (0..31). Tone 0
// is special-cased to its fixed out-of-line block.
func ToneSlotAddress(n int) Address {
	if n == 0 {
		return toneZeroBase
	}
	return toneBase + Address(n)*toneStride
}

// Param locates one named parameter inside a decoded block. The wire
// address offset is derived from the same byte offset used to index the
// decoded buffer, which keeps the two from drifting apart.
type Param struct {
	Offset int // byte offset inside the decoded block
	Length int // length in decoded bytes
}

// Address returns the parameter's wire address within the block starting
// at base.
func (p Param) Address(base Address) Address {
	return base + Address(2*p.Offset)
}
