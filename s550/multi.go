package s550

import "fmt"

// NumParts is the number of parts (A..H) in multi-timbral mode.
const NumParts = 8

// MultiBlockBytes is the decoded size of the function-area multi setup:
// four fields, each stored as a group of 8 consecutive bytes, one per part.
// The device rejects partial-group writes, so the block moves as a whole.
const MultiBlockBytes = 4 * NumParts

// PatchNone means a part has no patch assigned.
const PatchNone = -1

const patchNoneWire = 127

// MultiPart is one part of the multi-timbral setup.
type MultiPart struct {
	Channel int // MIDI channel 0..15
	Patch   int // 0..63, or PatchNone
	Output  int // 0..8
	Level   int // 0..127
}

// MultiConfig is the full 8-part setup.
type MultiConfig [NumParts]MultiPart

// Field groups inside the function block.
var (
	multiChannels = Param{0, NumParts}
	multiPatches  = Param{8, NumParts}
	multiOutputs  = Param{16, NumParts}
	multiLevels   = Param{24, NumParts}
)

// DecodeMulti decodes the 32-byte function block.
func DecodeMulti(b []byte) (MultiConfig, error) {
	var m MultiConfig
	if len(b) != MultiBlockBytes {
		return m, fmt.Errorf("multi block is %d bytes, want %d", len(b), MultiBlockBytes)
	}
	for i := 0; i < NumParts; i++ {
		ch := int(b[multiChannels.Offset+i])
		if ch > 15 {
			return m, fmt.Errorf("part %c: invalid channel %d", 'A'+i, ch)
		}
		patch := int(b[multiPatches.Offset+i])
		switch {
		case patch == patchNoneWire:
			patch = PatchNone
		case patch >= NumPatches:
			return m, fmt.Errorf("part %c: invalid patch %d", 'A'+i, patch)
		}
		out := int(b[multiOutputs.Offset+i])
		if out > 8 {
			return m, fmt.Errorf("part %c: invalid output %d", 'A'+i, out)
		}
		m[i] = MultiPart{
			Channel: ch,
			Patch:   patch,
			Output:  out,
			Level:   int(b[multiLevels.Offset+i]),
		}
	}
	return m, nil
}

// EncodeMulti encodes the full 8-part setup.
func EncodeMulti(m MultiConfig) ([]byte, error) {
	b := make([]byte, MultiBlockBytes)
	for i, part := range m {
		if part.Channel < 0 || part.Channel > 15 {
			return nil, fmt.Errorf("part %c: invalid channel %d", 'A'+i, part.Channel)
		}
		patch := part.Patch
		switch {
		case patch == PatchNone:
			patch = patchNoneWire
		case patch < 0 || patch >= NumPatches:
			return nil, fmt.Errorf("part %c: invalid patch %d", 'A'+i, patch)
		}
		if part.Output < 0 || part.Output > 8 {
			return nil, fmt.Errorf("part %c: invalid output %d", 'A'+i, part.Output)
		}
		b[multiChannels.Offset+i] = byte(part.Channel)
		b[multiPatches.Offset+i] = byte(patch)
		b[multiOutputs.Offset+i] = byte(part.Output)
		b[multiLevels.Offset+i] = byte(part.Level)
	}
	return b, nil
}
