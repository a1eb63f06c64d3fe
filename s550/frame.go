// Package s550 speaks the Roland S-550 sampler's System-Exclusive protocol:
// framing, the nibblized bulk-dump handshakes, the parameter address space
// and the binary patch/tone codecs. The physical MIDI connection is injected
// through the Transport interface.
package s550

import "fmt"

const (
	sysExStart = 0xF0
	sysExEnd   = 0xF7

	// VendorRoland is Roland's manufacturer ID.
	VendorRoland = 0x41

	// ModelS550 identifies the S-550 family in the envelope.
	ModelS550 = 0x14

	// MaxDeviceID is the highest configurable device ID.
	MaxDeviceID = 31
)

// Command is the one-byte command code of a frame.
type Command byte

const (
	CmdDT1 Command = 0x12 // one-way parameter broadcast
	CmdWSD Command = 0x40 // want to send data (bulk write request)
	CmdRQD Command = 0x41 // request data (bulk read request)
	CmdDAT Command = 0x42 // data packet
	CmdACK Command = 0x43 // acknowledge
	CmdEOD Command = 0x45 // end of data
	CmdERR Command = 0x4E // communication error
	CmdRJC Command = 0x4F // rejection
)

func (c Command) String() string {
	switch c {
	case CmdDT1:
		return "DT1"
	case CmdWSD:
		return "WSD"
	case CmdRQD:
		return "RQD"
	case CmdDAT:
		return "DAT"
	case CmdACK:
		return "ACK"
	case CmdEOD:
		return "EOD"
	case CmdERR:
		return "ERR"
	case CmdRJC:
		return "RJC"
	default:
		return fmt.Sprintf("cmd(%#02x)", byte(c))
	}
}

// Checksum computes the Roland checksum over an address and payload:
// (128 - sum mod 128) mod 128, so that body plus checksum sums to zero
// modulo 128.
func Checksum(address, payload []byte) byte {
	sum := 0
	for _, b := range address {
		sum += int(b)
	}
	for _, b := range payload {
		sum += int(b)
	}
	return byte(128-sum%128) & 0x7F
}

// Frame is one envelope-validated sysex message from or to the device.
// Body holds the bytes between the command code and the end marker; its
// interpretation depends on the command.
type Frame struct {
	DeviceID byte
	Command  Command
	Body     []byte
}

// minimal envelope: F0 vendor device model command F7
const minFrameLen = 6

// ParseFrame validates the envelope of a sysex message. It returns
// ErrMalformed for truncated or unterminated messages and ErrNotForUs when
// the vendor or model byte belongs to some other equipment; the latter is
// not a failure, just somebody else's traffic.
func ParseFrame(msg []byte) (*Frame, error) {
	if len(msg) < minFrameLen || msg[0] != sysExStart || msg[len(msg)-1] != sysExEnd {
		return nil, ErrMalformed
	}
	if msg[1] != VendorRoland || msg[3] != ModelS550 {
		return nil, ErrNotForUs
	}
	body := make([]byte, len(msg)-minFrameLen)
	copy(body, msg[5:len(msg)-1])
	return &Frame{
		DeviceID: msg[2],
		Command:  Command(msg[4]),
		Body:     body,
	}, nil
}

// DataPayload returns the payload of a DAT frame after verifying its
// trailing checksum.
func (f *Frame) DataPayload() ([]byte, error) {
	if len(f.Body) < 2 {
		return nil, ErrMalformed
	}
	payload, sum := f.Body[:len(f.Body)-1], f.Body[len(f.Body)-1]
	if Checksum(nil, payload) != sum {
		return nil, errBadChecksum
	}
	return payload, nil
}

// BroadcastPayload splits the body of a DT1 broadcast into its target
// address and payload, verifying the trailing checksum over both.
func (f *Frame) BroadcastPayload() (Address, []byte, error) {
	if len(f.Body) < 5 {
		return 0, nil, ErrMalformed
	}
	addrBytes, rest := f.Body[:4], f.Body[4:]
	payload, sum := rest[:len(rest)-1], rest[len(rest)-1]
	if Checksum(addrBytes, payload) != sum {
		return 0, nil, errBadChecksum
	}
	addr, err := DecodeAddress(addrBytes)
	if err != nil {
		return 0, nil, err
	}
	return addr, payload, nil
}

func buildFrame(deviceID byte, cmd Command, body []byte) []byte {
	msg := make([]byte, 0, minFrameLen+len(body))
	msg = append(msg, sysExStart, VendorRoland, deviceID&0x7F, ModelS550, byte(cmd))
	msg = append(msg, body...)
	return append(msg, sysExEnd)
}

/// buildBulkRequest builds a WSD or RQD frame: address, size in nibbles,
// checksum over both.
func buildBulkRequest(deviceID byte, cmd Command, addr Address, byteLen int) []byte {
	a := addr.Encode()
	s := encodeSize(byteLen * 2)
	body := make([]byte, 0, 9)
	body = append(body, a[:]...)
	body = append(body, s[:]...)
	body = append(body, Checksum(a[:], s[:]))
	return buildFrame(deviceID, cmd, body)
}

// buildData builds a DAT frame carrying already-nibblized payload.
func buildData(deviceID byte, nibbles []byte) []byte {
	body := make([]byte, 0, len(nibbles)+1)
	body = append(body, nibbles...)
	body = append(body, Checksum(nil, nibbles))
	return buildFrame(deviceID, CmdDAT, body)
}

func buildAck(deviceID byte) []byte {
	return buildFrame(deviceID, CmdACK, nil)
}

func buildEOD(deviceID byte) []byte {
	return buildFrame(deviceID, CmdEOD, nil)
}

// encodeSize encodes a nibble count as four 7-bit bytes, most significant
// first. The low byte is always even because the count is a doubled value.
func encodeSize(nibbles int) [4]byte {
	return [4]byte{
		byte(nibbles >> 21 & 0x7F),
		byte(nibbles >> 14 & 0x7F),
		byte(nibbles >> 7 & 0x7F),
		byte(nibbles & 0x7F),
	}
}
