package s550

import (
	"log"
	"sync"
)

// ChangeType classifies an unsolicited parameter broadcast.
type ChangeType int

const (
	PatchChange ChangeType = iota
	ToneChange
	FunctionChange
)

func (t ChangeType) String() string {
	switch t {
	case PatchChange:
		return "patch"
	case ToneChange:
		return "tone"
	case FunctionChange:
		return "function"
	default:
		return "change(?)"
	}
}

// Change is one hardware-originated parameter change: front-panel edits
// arrive as DT1 broadcasts without anything having been requested.
type Change struct {
	Type    ChangeType
	Index   int // slot index; -1 for function changes
	Address Address
	Data    []byte // de-nibblized payload
}

// Listener watches the transport for DT1 broadcasts and republishes them
// as typed change events. It subscribes to the transport directly: these
// frames are not responses to anything the scheduler sent, so they bypass
// it entirely. The cache can therefore lag the physical device briefly;
// subscribers that care reconcile through Cache.Invalidate.
type Listener struct {
	tr         Transport
	deviceID   byte
	checkID    bool
	transportS Subscription

	mu   sync.Mutex
	next Subscription
	subs map[Subscription]func(Change)
}

// NewListener starts listening. If checkDeviceID is set, broadcasts from
// other device IDs are dropped.
func NewListener(tr Transport, deviceID byte, checkDeviceID bool) *Listener {
	l := &Listener{
		tr:       tr,
		deviceID: deviceID & 0x7F,
		checkID:  checkDeviceID,
		subs:     make(map[Subscription]func(Change)),
	}
	l.transportS = tr.Subscribe(l.handle)
	return l
}

// Subscribe registers a callback for change events and returns its handle.
func (l *Listener) Subscribe(fn func(Change)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.subs[l.next] = fn
	return l.next
}

// Unsubscribe removes a callback.
func (l *Listener) Unsubscribe(s Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, s)
}

// Close detaches the listener from the transport.
func (l *Listener) Close() {
	l.tr.Unsubscribe(l.transportS)
}

func (l *Listener) handle(msg []byte) {
	f, err := ParseFrame(msg)
	if err != nil || f.Command != CmdDT1 {
		return
	}
	if l.checkID && f.DeviceID != l.deviceID {
		return
	}
	addr, nibbles, err := f.BroadcastPayload()
	if err != nil {
		return
	}
	typ, index, ok := classify(addr)
	if !ok {
		return
	}
	ev := Change{Type: typ, Index: index, Address: addr, Data: Denibblize(nibbles)}

	l.mu.Lock()
	fns := make([]func(Change), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		deliver(fn, ev)
	}
}

// deliver isolates callback panics so one bad subscriber cannot break
// delivery to the others.
func deliver(fn func(Change), ev Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("s550: change callback panic: %v", r)
		}
	}()
	fn(ev)
}

// classify maps a broadcast address to its change type. Front-panel echo
// traffic (button/LED state) is recognized but never surfaced.
func classify(addr Address) (ChangeType, int, bool) {
	switch {
	case addr >= panelAddress && addr < panelAddress+128:
		return 0, 0, false
	case addr >= functionBase && addr < functionBase+2*MultiBlockBytes:
		return FunctionChange, -1, true
	case addr >= patchBase && addr < patchBase+NumPatches*patchStride:
		return PatchChange, int((addr - patchBase) / patchStride), true
	case addr >= toneZeroBase && addr < toneZeroBase+2*ToneBlockBytes:
		return ToneChange, 0, true
	case addr >= toneBase && addr < toneBase+NumTones*toneStride:
		return ToneChange, int((addr - toneBase) / toneStride), true
	default:
		return 0, 0, false
	}
}
