package s550

import (
	"fmt"
	"time"
)

// DefaultTimeout is the response-gap budget for both handshakes. The
// device answers quickly once it answers at all; bulk reads re-arm the
// timer on every inbound frame so large transfers don't need a bigger
// budget.
const DefaultTimeout = 2 * time.Second

// Engine runs the bulk-dump handshakes against one device ID. The device
// accepts a single transaction at a time; serialization is the
// Scheduler's job, the engine only runs one exchange.
type Engine struct {
	tr       Transport
	deviceID byte
	timeout  time.Duration
}

// NewEngine returns an engine talking through tr to the given device ID.
// A zero timeout selects DefaultTimeout.
func NewEngine(tr Transport, deviceID byte, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{tr: tr, deviceID: deviceID & 0x7F, timeout: timeout}
}

// listen subscribes a frame decoder for the duration of one handshake.
// Frames that fail envelope validation are foreign traffic and dropped.
func (e *Engine) listen() (<-chan *Frame, func()) {
	ch := make(chan *Frame, 64)
	sub := e.tr.Subscribe(func(msg []byte) {
		f, err := ParseFrame(msg)
		if err != nil {
			return
		}
		select {
		case ch <- f:
		default:
		}
	})
	return ch, func() { e.tr.Unsubscribe(sub) }
}

// checkDevice filters frames from other device IDs. A rejection or error
// from a mismatched ID is surfaced instead of dropped: a misconfigured ID
// would otherwise only ever look like a timeout.
func (e *Engine) checkDevice(f *Frame) (skip bool, err error) {
	if f.DeviceID == e.deviceID {
		return false, nil
	}
	if f.Command == CmdRJC || f.Command == CmdERR {
		return false, fmt.Errorf("%s from device %d (configured %d): %w",
			f.Command, f.DeviceID, e.deviceID, ErrDeviceIDMismatch)
	}
	return true, nil
}

// Read runs the RQD/DAT/EOD handshake and returns byteLen decoded bytes
// from addr. If the device goes quiet mid-transfer the data received so
// far is returned without an error; callers must treat a short result as
// possibly incomplete.
func (e *Engine) Read(addr Address, byteLen int) ([]byte, error) {
	if !addr.Aligned() {
		return nil, ErrInvalidAddress
	}
	frames, cancel := e.listen()
	defer cancel()

	if err := e.tr.Send(buildBulkRequest(e.deviceID, CmdRQD, addr, byteLen)); err != nil {
		return nil, fmt.Errorf("sending RQD: %w", err)
	}

	var acc []byte // accumulated nibbles
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	for {
		select {
		case f := <-frames:
			// Any inbound frame proves the device is alive.
			rearm(timer, e.timeout)
			skip, err := e.checkDevice(f)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			switch f.Command {
			case CmdDAT:
				payload, err := f.DataPayload()
				if err != nil {
					return nil, fmt.Errorf("data packet: %w", err)
				}
				acc = append(acc, payload...)
				// The device withholds the next packet until acked.
				if err := e.tr.Send(buildAck(e.deviceID)); err != nil {
					return nil, fmt.Errorf("sending ACK: %w", err)
				}
			case CmdEOD:
				if err := e.tr.Send(buildAck(e.deviceID)); err != nil {
					return nil, fmt.Errorf("sending ACK: %w", err)
				}
				return Denibblize(acc), nil
			case CmdRJC:
				return nil, ErrRejected
			case CmdERR:
				return nil, ErrDevice
			}
			// Anything else is a stray redelivery; ignore it.
		case <-timer.C:
			if len(acc) > 0 {
				// Partial data beats total loss.
				return Denibblize(acc), nil
			}
			return nil, ErrTimeout
		}
	}
}

// Write phases, attached to errors for diagnostics.
const (
	phaseWSD = "WSD"
	phaseDAT = "DAT"
	phaseEOD = "EOD"
)

// Write runs the WSD/DAT/EOD handshake, storing data at addr. One timeout
// covers the whole sequence; the device's phase transitions are fast once
// it starts responding at all.
func (e *Engine) Write(addr Address, data []byte) error {
	if !addr.Aligned() {
		return ErrInvalidAddress
	}
	frames, cancel := e.listen()
	defer cancel()

	if err := e.tr.Send(buildBulkRequest(e.deviceID, CmdWSD, addr, len(data))); err != nil {
		return fmt.Errorf("sending WSD: %w", err)
	}

	phase := phaseWSD
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	for {
		select {
		case f := <-frames:
			skip, err := e.checkDevice(f)
			if err != nil {
				return fmt.Errorf("%s phase: %w", phase, err)
			}
			if skip {
				continue
			}
			switch f.Command {
			case CmdACK:
				switch phase {
				case phaseWSD:
					if err := e.tr.Send(buildData(e.deviceID, Nibblize(data))); err != nil {
						return fmt.Errorf("sending DAT: %w", err)
					}
					phase = phaseDAT
				case phaseDAT:
					if err := e.tr.Send(buildEOD(e.deviceID)); err != nil {
						return fmt.Errorf("sending EOD: %w", err)
					}
					phase = phaseEOD
				case phaseEOD:
					return nil
				}
			case CmdRJC:
				return fmt.Errorf("%s phase: %w", phase, ErrRejected)
			case CmdERR:
				return fmt.Errorf("%s phase: %w", phase, ErrDevice)
			}
		case <-timer.C:
			return fmt.Errorf("%s phase: %w", phase, ErrTimeout)
		}
	}
}

func rearm(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
