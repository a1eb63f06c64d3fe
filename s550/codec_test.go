package s550

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func TestNibbleRoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x00},
		{0xFF},
		{0x12, 0x34, 0xAB, 0xCD},
	}
	random := make([]byte, 513)
	rand.Read(random)
	tests = append(tests, random)

	for _, b := range tests {
		n := Nibblize(b)
		if len(n) != 2*len(b) {
			t.Fatalf("Nibblize(%d bytes) = %d nibbles, want %d", len(b), len(n), 2*len(b))
		}
		for _, v := range n {
			if v > 0x0F {
				t.Fatalf("nibble %#x out of range", v)
			}
		}
		if d := Denibblize(n); !bytes.Equal(d, b) {
			t.Fatalf("Denibblize(Nibblize(%x)) = %x", b, d)
		}
	}
}

func TestDenibblizeOddLength(t *testing.T) {
	// A trailing unpaired nibble is dropped, not an error.
	got := Denibblize([]byte{0x1, 0x2, 0x3})
	if !bytes.Equal(got, []byte{0x12}) {
		t.Fatalf("Denibblize odd input = %x, want 12", got)
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		addr, payload []byte
		want          byte
	}{
		{[]byte{0, 1, 0, 15}, []byte{100}, 12},
		{nil, nil, 0},           // sum 0 -> 128 -> wraps to 0
		{[]byte{64, 64}, nil, 0},
		{[]byte{127}, []byte{1}, 0},
		{[]byte{1}, nil, 127},
	}
	for _, test := range tests {
		if got := Checksum(test.addr, test.payload); got != test.want {
			t.Errorf("Checksum(%v, %v) = %d, want %d", test.addr, test.payload, got, test.want)
		}
	}
}

func TestFrameRejectsMutation(t *testing.T) {
	payload := []byte{0x1, 0x2, 0x3, 0x4}
	msg := buildData(3, payload)

	f, err := ParseFrame(msg)
	if err != nil {
		t.Fatal("parse error:", err)
	}
	if _, err := f.DataPayload(); err != nil {
		t.Fatal("valid frame rejected:", err)
	}

	// Flipping any single body byte must break the checksum.
	for i := 5; i < len(msg)-1; i++ {
		mutated := append([]byte(nil), msg...)
		mutated[i] ^= 0x01
		mf, err := ParseFrame(mutated)
		if err != nil {
			t.Fatalf("byte %d: envelope parse failed: %v", i, err)
		}
		if _, err := mf.DataPayload(); err == nil {
			t.Errorf("mutation at byte %d not detected", i)
		}
	}
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
		want error
	}{
		{"empty", nil, ErrMalformed},
		{"too short", []byte{0xF0, VendorRoland, 0, ModelS550, 0xF7}, ErrMalformed},
		{"no start", []byte{0x00, VendorRoland, 0, ModelS550, 0x43, 0xF7}, ErrMalformed},
		{"no end", []byte{0xF0, VendorRoland, 0, ModelS550, 0x43, 0x00}, ErrMalformed},
		{"wrong vendor", []byte{0xF0, 0x42, 0, ModelS550, 0x43, 0xF7}, ErrNotForUs},
		{"wrong model", []byte{0xF0, VendorRoland, 0, 0x16, 0x43, 0xF7}, ErrNotForUs},
	}
	for _, test := range tests {
		if _, err := ParseFrame(test.msg); err != test.want {
			t.Errorf("%s: err = %v, want %v", test.name, err, test.want)
		}
	}
}

func TestSignedRoundTrip(t *testing.T) {
	for v := -64; v <= 63; v++ {
		if got := decodeSigned(encodeSigned(v, centerGeneral), centerGeneral); got != v {
			t.Fatalf("signed round trip %d = %d", v, got)
		}
	}
	// Out-of-range values clamp instead of wrapping.
	if got := encodeSigned(-65, centerGeneral); got != 0 {
		t.Errorf("encodeSigned(-65) = %d, want 0", got)
	}
	if got := encodeSigned(64, centerGeneral); got != 127 {
		t.Errorf("encodeSigned(64) = %d, want 127", got)
	}
	for v := -2; v <= 2; v++ {
		if got := decodeSigned(encodeSigned(v, centerOctave), centerOctave); got != v {
			t.Fatalf("octave round trip %d = %d", v, got)
		}
	}
}

func TestNameRoundTrip(t *testing.T) {
	tests := []string{"", "A", "PIANO", "EXACTLY 12CH", "sp ace"}
	for _, name := range tests {
		enc := encodeName(name, 12)
		if len(enc) != 12 {
			t.Fatalf("encodeName(%q) length %d", name, len(enc))
		}
		if got := decodeName(enc); got != name {
			t.Errorf("name round trip %q = %q", name, got)
		}
	}
	// Non-printable bytes decode as spaces.
	if got := decodeName([]byte{'A', 0x00, 'B', 0x80}); got != "A B" {
		t.Errorf("decodeName with non-printables = %q", got)
	}
	// Over-long names truncate.
	if got := decodeName(encodeName("THIRTEEN CHRS", 12)); got != "THIRTEEN CHR" {
		t.Errorf("truncated name = %q", got)
	}
}

func TestAddressEncoding(t *testing.T) {
	tests := []struct {
		addr Address
		want [4]byte
	}{
		{Addr(0, 0, 0, 0), [4]byte{0, 0, 0, 0}},
		{Addr(0, 1, 0, 15), [4]byte{0, 1, 0, 15}},
		{Addr(1, 127, 127, 127), [4]byte{1, 127, 127, 127}},
	}
	for _, test := range tests {
		if got := test.addr.Encode(); got != test.want {
			t.Errorf("Encode(%s) = %v, want %v", test.addr, got, test.want)
		}
		dec, err := DecodeAddress(test.want[:])
		if err != nil {
			t.Fatal(err)
		}
		if dec != test.addr {
			t.Errorf("DecodeAddress(%v) = %s, want %s", test.want, dec, test.addr)
		}
	}

	// Slot arithmetic carries across the 7-bit wire bytes.
	a := PatchSlotAddress(40)
	b := a.Encode()
	if dec, _ := DecodeAddress(b[:]); dec != a {
		t.Errorf("patch 40 address does not survive encoding: %s", a)
	}
	if !a.Aligned() {
		t.Errorf("patch 40 address %s not aligned", a)
	}
}

func TestToneZeroSpecialCase(t *testing.T) {
	// Tone 0 is out of line; it must not be stride-derived.
	if ToneSlotAddress(0) == toneBase {
		t.Error("tone 0 address must differ from the strided base")
	}
	if got := ToneSlotAddress(1); got != toneBase+toneStride {
		t.Errorf("tone 1 address = %s", got)
	}
}

func TestWaveRoundTrip(t *testing.T) {
	samples := []int{0, 1, -1, 2047, -2048, 1000, -999}
	packed := PackWave(samples, 12)
	if len(packed) != 2*len(samples) {
		t.Fatalf("packed %d bytes, want %d", len(packed), 2*len(samples))
	}
	got := UnpackWave(packed, 12)
	if !reflect.DeepEqual(got, samples) {
		t.Fatalf("wave round trip = %d, want %d", got, samples)
	}

	// 16-bit sources survive up to quantization.
	src := []int{0, 1 << 8, -(1 << 8), 30000, -30000}
	got16 := UnpackWave(PackWave(src, 16), 16)
	for i := range src {
		diff := src[i] - got16[i]
		if diff < -16 || diff > 16 {
			t.Errorf("sample %d: %d -> %d", i, src[i], got16[i])
		}
	}
}
