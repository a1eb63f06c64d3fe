package s550

// Transport is the physical MIDI connection. Implementations must deliver
// each fully-framed sysex message (leading 0xF0 through trailing 0xF7) to
// subscribers as a single call; reassembling chunked input is the
// transport's job, not the protocol's.
type Transport interface {
	// Send transmits one complete sysex message.
	Send(msg []byte) error

	// Subscribe registers a listener for inbound sysex messages and
	// returns a handle for Unsubscribe.
	Subscribe(fn func(msg []byte)) Subscription

	// Unsubscribe removes a previously registered listener.
	Unsubscribe(s Subscription)
}

// Subscription identifies one registered transport listener.
type Subscription int
