package s550

import "fmt"

// PatchBlockBytes is the decoded size of one patch block.
const PatchBlockBytes = 512

// PatchNameLen is the length of the patch name field.
const PatchNameLen = 12

const (
	// NumAssignKeys is the number of entries in a key-to-tone map,
	// covering MIDI keys 21..127.
	NumAssignKeys = 109
	// FirstAssignKey is the MIDI note of map entry 0.
	FirstAssignKey = 21
)

// ToneOff marks an unassigned key in tone layer 1. Layer 2 uses 0 instead;
// the two layers use different sentinels on the wire as well.
const ToneOff = -1

// KeyMode selects how the two tone layers respond to a key press.
type KeyMode byte

const (
	KeyModeNormal KeyMode = iota
	KeyModeVelocitySwitch
	KeyModeCrossfade
	KeyModeVelocityMix
	KeyModeUnison
)

func (m KeyMode) String() string {
	switch m {
	case KeyModeNormal:
		return "normal"
	case KeyModeVelocitySwitch:
		return "velocity-switch"
	case KeyModeCrossfade:
		return "crossfade"
	case KeyModeVelocityMix:
		return "velocity-mix"
	case KeyModeUnison:
		return "unison"
	default:
		return fmt.Sprintf("keymode(%d)", byte(m))
	}
}

// KeyAssign selects the voice-allocation behavior.
type KeyAssign byte

const (
	KeyAssignRotary KeyAssign = iota
	KeyAssignFixed
)

// AftertouchAssign selects the channel-pressure destination.
type AftertouchAssign byte

const (
	AftertouchOff AftertouchAssign = iota
	AftertouchModulation
	AftertouchVolume
	AftertouchBend
)

// Patch is one decoded performance slot.
type Patch struct {
	Name             string
	KeyMode          KeyMode
	BendRange        int // semitones, 0..12
	AftertouchSense  int // 0..127
	KeyAssign        KeyAssign
	OutputAssign     int // 0..8
	Level            int // 0..127
	Detune           int // signed, center 64
	OctaveShift      int // -2..+2
	VelSwThreshold   int // 0..127
	VelMixRatio      int // 0..127
	AftertouchAssign AftertouchAssign

	// Key-to-tone maps for the two layers, one entry per key 21..127.
	// Layer 1 marks unassigned keys with ToneOff, layer 2 with 0.
	ToneLayer1 [NumAssignKeys]int8
	ToneLayer2 [NumAssignKeys]int8
}

// Patch block layout. Offsets index the decoded block; the wire address of
// a field is Param.Address(PatchSlotAddress(n)).
var (
	patchName        = Param{0, PatchNameLen}
	patchKeyMode     = Param{12, 1}
	patchBendRange   = Param{13, 1}
	patchATSense     = Param{14, 1}
	patchKeyAssign   = Param{15, 1}
	patchOutput      = Param{16, 1}
	patchLevel       = Param{17, 1}
	patchDetune      = Param{18, 1}
	patchOctave      = Param{19, 1}
	patchVelSwThresh = Param{20, 1}
	patchVelMixRatio = Param{21, 1}
	patchATAssign    = Param{22, 1}
	patchToneLayer1  = Param{24, NumAssignKeys}
	patchToneLayer2  = Param{133, NumAssignKeys}
)

// Layer 1 "off" on the wire.
const toneOffWire1 = 0xFF

// DecodePatch decodes a 512-byte patch block. Wire values outside an enum
// or tone-map range are protocol errors.
func DecodePatch(b []byte) (Patch, error) {
	var p Patch
	if len(b) != PatchBlockBytes {
		return p, fmt.Errorf("patch block is %d bytes, want %d", len(b), PatchBlockBytes)
	}

	p.Name = decodeName(b[patchName.Offset : patchName.Offset+patchName.Length])

	mode := KeyMode(b[patchKeyMode.Offset])
	switch mode {
	case KeyModeNormal, KeyModeVelocitySwitch, KeyModeCrossfade, KeyModeVelocityMix, KeyModeUnison:
		p.KeyMode = mode
	default:
		return p, fmt.Errorf("invalid key mode %d", b[patchKeyMode.Offset])
	}

	p.BendRange = int(b[patchBendRange.Offset])
	p.AftertouchSense = int(b[patchATSense.Offset])

	ka := KeyAssign(b[patchKeyAssign.Offset])
	switch ka {
	case KeyAssignRotary, KeyAssignFixed:
		p.KeyAssign = ka
	default:
		return p, fmt.Errorf("invalid key assign %d", b[patchKeyAssign.Offset])
	}

	p.OutputAssign = int(b[patchOutput.Offset])
	p.Level = int(b[patchLevel.Offset])
	p.Detune = decodeSigned(b[patchDetune.Offset], centerGeneral)
	p.OctaveShift = decodeSigned(b[patchOctave.Offset], centerOctave)
	p.VelSwThreshold = int(b[patchVelSwThresh.Offset])
	p.VelMixRatio = int(b[patchVelMixRatio.Offset])

	at := AftertouchAssign(b[patchATAssign.Offset])
	switch at {
	case AftertouchOff, AftertouchModulation, AftertouchVolume, AftertouchBend:
		p.AftertouchAssign = at
	default:
		return p, fmt.Errorf("invalid aftertouch assign %d", b[patchATAssign.Offset])
	}

	for i := 0; i < NumAssignKeys; i++ {
		v := b[patchToneLayer1.Offset+i]
		switch {
		case v == toneOffWire1:
			p.ToneLayer1[i] = ToneOff
		case int(v) < NumTones:
			p.ToneLayer1[i] = int8(v)
		default:
			return p, fmt.Errorf("key %d layer 1: invalid tone %d", FirstAssignKey+i, v)
		}
	}
	for i := 0; i < NumAssignKeys; i++ {
		// Layer 2 uses 0 as "off" with no remapping.
		v := b[patchToneLayer2.Offset+i]
		if int(v) >= NumTones {
			return p, fmt.Errorf("key %d layer 2: invalid tone %d", FirstAssignKey+i, v)
		}
		p.ToneLayer2[i] = int8(v)
	}
	return p, nil
}

// EncodePatch encodes a patch into a 512-byte block. Tone-map entries
// outside the valid range are rejected; signed scalars are clamped.
func EncodePatch(p Patch) ([]byte, error) {
	b := make([]byte, PatchBlockBytes)

	copy(b[patchName.Offset:], encodeName(p.Name, patchName.Length))
	b[patchKeyMode.Offset] = byte(p.KeyMode)
	b[patchBendRange.Offset] = byte(p.BendRange)
	b[patchATSense.Offset] = byte(p.AftertouchSense)
	b[patchKeyAssign.Offset] = byte(p.KeyAssign)
	b[patchOutput.Offset] = byte(p.OutputAssign)
	b[patchLevel.Offset] = byte(p.Level)
	b[patchDetune.Offset] = encodeSigned(p.Detune, centerGeneral)
	b[patchOctave.Offset] = encodeSigned(p.OctaveShift, centerOctave)
	b[patchVelSwThresh.Offset] = byte(p.VelSwThreshold)
	b[patchVelMixRatio.Offset] = byte(p.VelMixRatio)
	b[patchATAssign.Offset] = byte(p.AftertouchAssign)

	for i, v := range p.ToneLayer1 {
		switch {
		case v == ToneOff:
			b[patchToneLayer1.Offset+i] = toneOffWire1
		case v >= 0 && int(v) < NumTones:
			b[patchToneLayer1.Offset+i] = byte(v)
		default:
			return nil, fmt.Errorf("key %d layer 1: invalid tone %d", FirstAssignKey+i, v)
		}
	}
	for i, v := range p.ToneLayer2 {
		if v < 0 || int(v) >= NumTones {
			return nil, fmt.Errorf("key %d layer 2: invalid tone %d", FirstAssignKey+i, v)
		}
		b[patchToneLayer2.Offset+i] = byte(v)
	}
	return b, nil
}
