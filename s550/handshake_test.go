package s550

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestBulkRead(t *testing.T) {
	tr := newFakeTransport()
	dev := newFakeDevice(3)
	dev.install(tr)

	block := make([]byte, PatchBlockBytes)
	rand.Read(block)
	addr := PatchSlotAddress(7)
	dev.mem[addr] = block

	e := NewEngine(tr, 3, time.Second)
	got, err := e.Read(addr, PatchBlockBytes)
	if err != nil {
		t.Fatal("read error:", err)
	}
	if !bytes.Equal(got, block) {
		t.Fatalf("read %d bytes, mismatch", len(got))
	}

	// Every DAT must have been acked, plus the final EOD ack.
	var acks, rqds int
	for _, f := range tr.sentFrames() {
		switch f.Command {
		case CmdACK:
			acks++
		case CmdRQD:
			rqds++
		}
	}
	if rqds != 1 {
		t.Errorf("sent %d RQDs, want 1", rqds)
	}
	wantAcks := (PatchBlockBytes*2+dev.chunkSize-1)/dev.chunkSize + 1
	if acks != wantAcks {
		t.Errorf("sent %d ACKs, want %d", acks, wantAcks)
	}
}

func TestBulkReadPartialData(t *testing.T) {
	tr := newFakeTransport()
	dev := newFakeDevice(0)
	dev.install(tr)

	block := make([]byte, PatchBlockBytes)
	for i := range block {
		block[i] = byte(i)
	}
	addr := PatchSlotAddress(0)
	dev.mem[addr] = block
	dev.stopAfter = 2 // two DAT packets, then silence

	e := NewEngine(tr, 0, 50*time.Millisecond)
	got, err := e.Read(addr, PatchBlockBytes)
	if err != nil {
		t.Fatal("partial read must resolve, got error:", err)
	}
	want := block[:dev.chunkSize] // 2 chunks of 256 nibbles = 256 bytes
	if !bytes.Equal(got, want) {
		t.Fatalf("partial read returned %d bytes, want %d", len(got), len(want))
	}
}

func TestBulkReadRejected(t *testing.T) {
	tr := newFakeTransport()
	dev := newFakeDevice(0)
	dev.install(tr)
	// Nothing in memory: the device answers RJC.

	e := NewEngine(tr, 0, time.Second)
	_, err := e.Read(PatchSlotAddress(1), PatchBlockBytes)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestBulkReadTimeout(t *testing.T) {
	tr := newFakeTransport() // no device at all

	e := NewEngine(tr, 0, 50*time.Millisecond)
	_, err := e.Read(PatchSlotAddress(1), PatchBlockBytes)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestBulkReadOddAddress(t *testing.T) {
	tr := newFakeTransport()
	e := NewEngine(tr, 0, time.Second)
	if _, err := e.Read(PatchSlotAddress(0)+1, 2); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
	if len(tr.sentFrames()) != 0 {
		t.Error("invalid address reached the transport")
	}
}

func TestBulkReadIgnoresOtherDevices(t *testing.T) {
	tr := newFakeTransport()
	dev := newFakeDevice(2)
	dev.install(tr)
	addr := ToneSlotAddress(4)
	dev.mem[addr] = make([]byte, ToneBlockBytes)

	e := NewEngine(tr, 2, time.Second)

	// Noise from another device ID must not disturb the handshake.
	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.Deliver(buildFrame(9, CmdDAT, []byte{0x1, Checksum(nil, []byte{0x1})}))
	}()

	got, err := e.Read(addr, ToneBlockBytes)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != ToneBlockBytes {
		t.Fatalf("read %d bytes, want %d", len(got), ToneBlockBytes)
	}
}

func TestDeviceIDMismatchSurfaced(t *testing.T) {
	tr := newFakeTransport()
	tr.respond = func(msg []byte) [][]byte {
		// A device configured with a different ID rejects the request.
		return [][]byte{buildFrame(9, CmdRJC, nil)}
	}

	e := NewEngine(tr, 0, time.Second)
	_, err := e.Read(PatchSlotAddress(0), PatchBlockBytes)
	if !errors.Is(err, ErrDeviceIDMismatch) {
		t.Fatalf("err = %v, want ErrDeviceIDMismatch", err)
	}
}

func TestBulkWrite(t *testing.T) {
	tr := newFakeTransport()
	dev := newFakeDevice(1)
	dev.install(tr)

	data := make([]byte, ToneBlockBytes)
	rand.Read(data)
	addr := ToneSlotAddress(0)

	e := NewEngine(tr, 1, time.Second)
	if err := e.Write(addr, data); err != nil {
		t.Fatal("write error:", err)
	}
	if !bytes.Equal(dev.written[addr], data) {
		t.Fatal("device stored different data")
	}

	// WSD, DAT, EOD in order.
	var cmds []Command
	for _, f := range tr.sentFrames() {
		cmds = append(cmds, f.Command)
	}
	want := []Command{CmdWSD, CmdDAT, CmdEOD}
	if len(cmds) != len(want) {
		t.Fatalf("sent %v, want %v", cmds, want)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Fatalf("sent %v, want %v", cmds, want)
		}
	}
}

func TestBulkWriteSizeIsNibbleCount(t *testing.T) {
	tr := newFakeTransport()
	dev := newFakeDevice(0)
	dev.install(tr)

	e := NewEngine(tr, 0, time.Second)
	if err := e.Write(WaveAddress(0), make([]byte, 100)); err != nil {
		t.Fatal(err)
	}
	wsd := tr.sentFrames()[0]
	if wsd.Command != CmdWSD {
		t.Fatalf("first frame is %s", wsd.Command)
	}
	size := wsd.Body[4:8]
	want := encodeSize(200) // 100 bytes = 200 nibbles
	if !bytes.Equal(size, want[:]) {
		t.Errorf("WSD size = %v, want %v", size, want)
	}
	if size[3]%2 != 0 {
		t.Error("size low byte must be even")
	}
}

func TestBulkWriteRejected(t *testing.T) {
	phases := []struct {
		rejectAt int // reject the nth host frame (0 = WSD, 1 = DAT, 2 = EOD)
		phase    string
	}{
		{0, phaseWSD},
		{1, phaseDAT},
		{2, phaseEOD},
	}
	for _, test := range phases {
		tr := newFakeTransport()
		n := 0
		tr.respond = func(msg []byte) [][]byte {
			defer func() { n++ }()
			if n == test.rejectAt {
				return [][]byte{buildFrame(0, CmdRJC, nil)}
			}
			return [][]byte{buildAck(0)}
		}

		e := NewEngine(tr, 0, time.Second)
		err := e.Write(WaveAddress(0), []byte{1, 2})
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("reject at %s: err = %v, want ErrRejected", test.phase, err)
		}
		if !strings.Contains(err.Error(), test.phase) {
			t.Errorf("error %q does not name phase %s", err, test.phase)
		}
	}
}

func TestBulkWriteTimeoutNamesPhase(t *testing.T) {
	tr := newFakeTransport()
	// One ACK to the WSD, then silence during DAT.
	first := true
	tr.respond = func(msg []byte) [][]byte {
		if first {
			first = false
			return [][]byte{buildAck(0)}
		}
		return nil
	}

	e := NewEngine(tr, 0, 50*time.Millisecond)
	err := e.Write(WaveAddress(0), []byte{1, 2})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if !strings.Contains(err.Error(), phaseDAT) {
		t.Errorf("error %q does not name the DAT phase", err)
	}
}
