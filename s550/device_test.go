package s550

import (
	"sync"
)

// fakeTransport implements Transport in-process. An optional respond hook
// plays the device side: it receives every host frame and returns the
// frames to deliver back.
type fakeTransport struct {
	mu      sync.Mutex
	next    Subscription
	subs    map[Subscription]func([]byte)
	sent    [][]byte
	respond func(msg []byte) [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[Subscription]func([]byte))}
}

func (t *fakeTransport) Send(msg []byte) error {
	t.mu.Lock()
	t.sent = append(t.sent, append([]byte(nil), msg...))
	respond := t.respond
	t.mu.Unlock()
	if respond != nil {
		for _, r := range respond(msg) {
			t.Deliver(r)
		}
	}
	return nil
}

func (t *fakeTransport) Subscribe(fn func(msg []byte)) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.subs[t.next] = fn
	return t.next
}

func (t *fakeTransport) Unsubscribe(s Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, s)
}

// Deliver pushes one inbound message to all subscribers, as the MIDI
// driver would.
func (t *fakeTransport) Deliver(msg []byte) {
	t.mu.Lock()
	fns := make([]func([]byte), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// sentFrames parses everything the host transmitted so far.
func (t *fakeTransport) sentFrames() []*Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	frames := make([]*Frame, 0, len(t.sent))
	for _, msg := range t.sent {
		f, err := ParseFrame(msg)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// fakeDevice models the sampler's half of both handshakes on top of a
// fakeTransport: it answers RQD with chunked DAT packets gated on ACKs,
// and accepts WSD/DAT/EOD writes into its memory map.
type fakeDevice struct {
	deviceID  byte
	chunkSize int // nibbles per DAT packet

	mu      sync.Mutex
	mem     map[Address][]byte // decoded blocks by base address
	pending [][]byte           // DAT chunks still to send
	eodDue  bool
	wsdAddr Address
	written map[Address][]byte
	wsdSeen   int
	sentDats  int
	stopAfter int // if > 0, deliver only this many DAT packets then die
}

func newFakeDevice(deviceID byte) *fakeDevice {
	return &fakeDevice{
		deviceID:  deviceID,
		chunkSize: 256,
		mem:       make(map[Address][]byte),
		written:   make(map[Address][]byte),
	}
}

// install wires the device to the transport.
func (d *fakeDevice) install(t *fakeTransport) {
	t.respond = d.respond
}

func (d *fakeDevice) respond(msg []byte) [][]byte {
	f, err := ParseFrame(msg)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	switch f.Command {
	case CmdRQD:
		addr, err := DecodeAddress(f.Body[:4])
		if err != nil {
			return nil
		}
		block, ok := d.mem[addr]
		if !ok {
			return [][]byte{buildFrame(d.deviceID, CmdRJC, nil)}
		}
		nibbles := Nibblize(block)
		d.pending = nil
		for len(nibbles) > 0 {
			n := d.chunkSize
			if n > len(nibbles) {
				n = len(nibbles)
			}
			d.pending = append(d.pending, nibbles[:n])
			nibbles = nibbles[n:]
		}
		d.eodDue = false
		return d.nextPacket()

	case CmdACK:
		return d.nextPacket()

	case CmdWSD:
		addr, err := DecodeAddress(f.Body[:4])
		if err != nil {
			return nil
		}
		d.wsdAddr = addr
		d.wsdSeen++
		return [][]byte{buildAck(d.deviceID)}

	case CmdDAT:
		payload, err := f.DataPayload()
		if err != nil {
			return [][]byte{buildFrame(d.deviceID, CmdERR, nil)}
		}
		d.written[d.wsdAddr] = Denibblize(payload)
		return [][]byte{buildAck(d.deviceID)}

	case CmdEOD:
		return [][]byte{buildAck(d.deviceID)}
	}
	return nil
}

func (d *fakeDevice) nextPacket() [][]byte {
	if len(d.pending) == 0 {
		if d.eodDue {
			d.eodDue = false
			return [][]byte{buildFrame(d.deviceID, CmdEOD, nil)}
		}
		return nil
	}
	if d.stopAfter > 0 && d.sentDats >= d.stopAfter {
		// Mid-transfer death: no more packets, no EOD.
		d.pending = nil
		d.eodDue = false
		return nil
	}
	d.sentDats++
	chunk := d.pending[0]
	d.pending = d.pending[1:]
	if len(d.pending) == 0 {
		d.eodDue = true
	}
	return [][]byte{buildData(d.deviceID, chunk)}
}
