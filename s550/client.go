package s550

import (
	"fmt"
	"time"
)

// Config carries the per-connection settings.
type Config struct {
	// DeviceID is the sampler's device ID (0..31).
	DeviceID byte

	// Timeout is the handshake response budget. Zero selects
	// DefaultTimeout.
	Timeout time.Duration

	// FlushWindow is the write-coalescing window. Zero selects
	// DefaultFlushWindow; a negative value disables coalescing so writes
	// go out immediately.
	FlushWindow time.Duration

	// CheckBroadcastID drops unsolicited broadcasts from other device IDs
	// instead of surfacing them.
	CheckBroadcastID bool
}

// Client is one logical connection to a sampler: the handshake engine, the
// serializing scheduler, the state cache and the broadcast listener wired
// together. Each Client owns its cache; there is no process-wide state.
type Client struct {
	sched    *Scheduler
	cache    *Cache
	listener *Listener
}

// NewClient wires up a client on the given transport.
func NewClient(tr Transport, cfg Config) (*Client, error) {
	if cfg.DeviceID > MaxDeviceID {
		return nil, fmt.Errorf("device ID %d out of range 0..%d", cfg.DeviceID, MaxDeviceID)
	}
	window := cfg.FlushWindow
	if window == 0 {
		window = DefaultFlushWindow
	}
	engine := NewEngine(tr, cfg.DeviceID, cfg.Timeout)
	sched := NewScheduler(engine, window)
	return &Client{
		sched:    sched,
		cache:    NewCache(sched),
		listener: NewListener(tr, cfg.DeviceID, cfg.CheckBroadcastID),
	}, nil
}

// Close flushes pending writes and detaches from the transport.
func (c *Client) Close() {
	c.sched.Close()
	c.listener.Close()
}

// Patch returns the patch in the given slot, from cache when possible.
func (c *Client) Patch(slot int) (Patch, error) { return c.cache.Patch(slot) }

// AllPatches loads and returns every patch slot.
func (c *Client) AllPatches(progress func(done, total int)) ([]Patch, error) {
	return c.cache.AllPatches(progress)
}

// SetPatch stores a patch in the cache and writes it to the device.
func (c *Client) SetPatch(slot int, p Patch) error { return c.cache.SetPatch(slot, p) }

// Tone returns the tone in the given slot, from cache when possible.
func (c *Client) Tone(slot int) (Tone, error) { return c.cache.Tone(slot) }

// AllTones loads and returns every tone slot.
func (c *Client) AllTones(progress func(done, total int)) ([]Tone, error) {
	return c.cache.AllTones(progress)
}

// SetTone stores a tone in the cache and writes it to the device.
func (c *Client) SetTone(slot int, t Tone) error { return c.cache.SetTone(slot, t) }

// Invalidate drops all cached state, forcing fresh device reads.
func (c *Client) Invalidate() { c.cache.Invalidate() }

// Multi reads the 8-part multi-timbral setup. The function block is only
// valid as a whole, so this is always a full-group read.
func (c *Client) Multi() (MultiConfig, error) {
	data, err := c.sched.Read(functionBase, MultiBlockBytes)
	if err != nil {
		return MultiConfig{}, err
	}
	return DecodeMulti(data)
}

// SetMulti writes the full 8-part setup. The device rejects partial-group
// writes, so there is no per-part variant.
func (c *Client) SetMulti(m MultiConfig) error {
	data, err := EncodeMulti(m)
	if err != nil {
		return err
	}
	return c.sched.Write(functionBase, data)
}

// waveChunkBytes is the payload size of one wave-write handshake.
const waveChunkBytes = 512

// WriteWave stores packed wave data starting at the given wave-memory
// pointer, one bulk handshake per chunk. progress, if non-nil, is called
// after each chunk.
func (c *Client) WriteWave(start uint32, data []byte, progress func(done, total int)) error {
	total := (len(data) + waveChunkBytes - 1) / waveChunkBytes
	for i := 0; len(data) > 0; i++ {
		n := waveChunkBytes
		if n > len(data) {
			n = len(data)
		}
		addr := WaveAddress(start) + Address(2*i*waveChunkBytes)
		if err := c.sched.Write(addr, data[:n]); err != nil {
			return fmt.Errorf("wave chunk %d/%d: %w", i+1, total, err)
		}
		data = data[n:]
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}

// Changes returns the broadcast listener for Subscribe/Unsubscribe.
func (c *Client) Changes() *Listener { return c.listener }
