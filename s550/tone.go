package s550

import "fmt"

// ToneBlockBytes is the decoded size of one tone block. The tail of the
// block is reserved memory and round-trips as zeros.
const ToneBlockBytes = 128

// ToneNameLen is the length of the tone name field.
const ToneNameLen = 8

// SampleRate is the recording rate of a tone's wave data.
type SampleRate byte

const (
	Rate30k SampleRate = iota
	Rate15k
)

// LoopMode selects how the wave loop region plays back.
type LoopMode byte

const (
	LoopForward LoopMode = iota
	LoopAlternate
	LoopOneShot
	LoopReverse
)

// LFOWaveform is the modulation oscillator shape.
type LFOWaveform byte

const (
	LFOTriangle LFOWaveform = iota
	LFOSquare
	LFOSawtooth
	LFORandom
)

// LFO is a tone's modulation descriptor.
type LFO struct {
	Rate     int // 0..127
	Delay    int // 0..127
	Depth    int // 0..127
	Waveform LFOWaveform
}

// EnvPoint is one segment target of an envelope.
type EnvPoint struct {
	Level int // 0..127
	Rate  int // 1..127; 0 would be an instantaneous segment, which the
	// hardware leaves undefined
}

// Envelope is an 8-point level/rate contour with a sustain point and an
// end point indexing into the point sequence (0..8).
type Envelope struct {
	Points       [8]EnvPoint
	SustainPoint int
	EndPoint     int
}

// Tone is one decoded sample-definition slot.
type Tone struct {
	Name       string
	SubTone    bool // shares wave data with SourceTone instead of owning any
	SourceTone int  // tone this one derives from, 0..31

	SampleRate SampleRate
	LoopMode   LoopMode

	Transpose int // semitones, signed, center 64
	FineTune  int // cents, signed, center 64

	// Wave-memory pointers, 24-bit. Unlike the rest of the block these are
	// full 8-bit triplets, not 7-bit MIDI bytes.
	WaveStart  uint32
	WaveEnd    uint32
	WaveLoop   uint32
	LoopLength uint32

	LFO       LFO
	AmpEnv    Envelope
	FilterEnv Envelope
}

// Tone block layout.
var (
	toneName       = Param{0, ToneNameLen}
	toneSubFlag    = Param{8, 1}
	toneSource     = Param{9, 1}
	toneSampleRate = Param{10, 1}
	toneLoopMode   = Param{11, 1}
	toneTranspose  = Param{12, 1}
	toneFineTune   = Param{13, 1}
	toneWaveStart  = Param{14, 3}
	toneWaveEnd    = Param{17, 3}
	toneWaveLoop   = Param{20, 3}
	toneLoopLength = Param{23, 3}
	toneLFO        = Param{26, 4}
	toneAmpEnv     = Param{32, 18}
	toneFilterEnv  = Param{50, 18}
)

// DecodeTone decodes a 128-byte tone block.
func DecodeTone(b []byte) (Tone, error) {
	var t Tone
	if len(b) != ToneBlockBytes {
		return t, fmt.Errorf("tone block is %d bytes, want %d", len(b), ToneBlockBytes)
	}

	t.Name = decodeName(b[toneName.Offset : toneName.Offset+toneName.Length])
	t.SubTone = b[toneSubFlag.Offset] != 0
	t.SourceTone = int(b[toneSource.Offset])
	if t.SourceTone >= NumTones {
		return t, fmt.Errorf("invalid source tone %d", t.SourceTone)
	}

	sr := SampleRate(b[toneSampleRate.Offset])
	switch sr {
	case Rate30k, Rate15k:
		t.SampleRate = sr
	default:
		return t, fmt.Errorf("invalid sample rate %d", b[toneSampleRate.Offset])
	}

	lm := LoopMode(b[toneLoopMode.Offset])
	switch lm {
	case LoopForward, LoopAlternate, LoopOneShot, LoopReverse:
		t.LoopMode = lm
	default:
		return t, fmt.Errorf("invalid loop mode %d", b[toneLoopMode.Offset])
	}

	t.Transpose = decodeSigned(b[toneTranspose.Offset], centerGeneral)
	t.FineTune = decodeSigned(b[toneFineTune.Offset], centerGeneral)

	t.WaveStart = decode24(b[toneWaveStart.Offset:])
	t.WaveEnd = decode24(b[toneWaveEnd.Offset:])
	t.WaveLoop = decode24(b[toneWaveLoop.Offset:])
	t.LoopLength = decode24(b[toneLoopLength.Offset:])

	lfo := b[toneLFO.Offset : toneLFO.Offset+toneLFO.Length]
	wf := LFOWaveform(lfo[3])
	switch wf {
	case LFOTriangle, LFOSquare, LFOSawtooth, LFORandom:
	default:
		return t, fmt.Errorf("invalid LFO waveform %d", lfo[3])
	}
	t.LFO = LFO{Rate: int(lfo[0]), Delay: int(lfo[1]), Depth: int(lfo[2]), Waveform: wf}

	var err error
	if t.AmpEnv, err = decodeEnvelope(b[toneAmpEnv.Offset : toneAmpEnv.Offset+toneAmpEnv.Length]); err != nil {
		return t, fmt.Errorf("amp envelope: %w", err)
	}
	if t.FilterEnv, err = decodeEnvelope(b[toneFilterEnv.Offset : toneFilterEnv.Offset+toneFilterEnv.Length]); err != nil {
		return t, fmt.Errorf("filter envelope: %w", err)
	}
	return t, nil
}

// EncodeTone encodes a tone into a 128-byte block.
func EncodeTone(t Tone) ([]byte, error) {
	b := make([]byte, ToneBlockBytes)

	copy(b[toneName.Offset:], encodeName(t.Name, toneName.Length))
	if t.SubTone {
		b[toneSubFlag.Offset] = 1
	}
	if t.SourceTone < 0 || t.SourceTone >= NumTones {
		return nil, fmt.Errorf("invalid source tone %d", t.SourceTone)
	}
	b[toneSource.Offset] = byte(t.SourceTone)
	b[toneSampleRate.Offset] = byte(t.SampleRate)
	b[toneLoopMode.Offset] = byte(t.LoopMode)
	b[toneTranspose.Offset] = encodeSigned(t.Transpose, centerGeneral)
	b[toneFineTune.Offset] = encodeSigned(t.FineTune, centerGeneral)

	encode24(b[toneWaveStart.Offset:], t.WaveStart)
	encode24(b[toneWaveEnd.Offset:], t.WaveEnd)
	encode24(b[toneWaveLoop.Offset:], t.WaveLoop)
	encode24(b[toneLoopLength.Offset:], t.LoopLength)

	b[toneLFO.Offset] = byte(t.LFO.Rate)
	b[toneLFO.Offset+1] = byte(t.LFO.Delay)
	b[toneLFO.Offset+2] = byte(t.LFO.Depth)
	b[toneLFO.Offset+3] = byte(t.LFO.Waveform)

	if err := encodeEnvelope(b[toneAmpEnv.Offset:], t.AmpEnv); err != nil {
		return nil, fmt.Errorf("amp envelope: %w", err)
	}
	if err := encodeEnvelope(b[toneFilterEnv.Offset:], t.FilterEnv); err != nil {
		return nil, fmt.Errorf("filter envelope: %w", err)
	}
	return b, nil
}

func decodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	for i := range e.Points {
		e.Points[i] = EnvPoint{Level: int(b[2*i]), Rate: int(b[2*i+1])}
	}
	e.SustainPoint = int(b[16])
	e.EndPoint = int(b[17])
	if e.SustainPoint > 8 || e.EndPoint > 8 {
		return e, fmt.Errorf("point index out of range: sustain %d end %d", e.SustainPoint, e.EndPoint)
	}
	return e, nil
}

func encodeEnvelope(dst []byte, e Envelope) error {
	if e.SustainPoint < 0 || e.SustainPoint > 8 || e.EndPoint < 0 || e.EndPoint > 8 {
		return fmt.Errorf("point index out of range: sustain %d end %d", e.SustainPoint, e.EndPoint)
	}
	for i, p := range e.Points {
		rate := p.Rate
		if rate < 1 {
			rate = 1
		}
		dst[2*i] = byte(p.Level)
		dst[2*i+1] = byte(rate)
	}
	dst[16] = byte(e.SustainPoint)
	dst[17] = byte(e.EndPoint)
	return nil
}
