package s550

import (
	"fmt"
	"sync"
)

// ReadErrorName marks a cache entry whose device read failed. The entry
// stays cached so one unreadable slot isn't retried on every access; an
// Invalidate clears it.
const ReadErrorName = "*READ ERR*"

// Cache holds decoded device state keyed by slot index. Reads are answered
// from the cache when possible and delegated to the scheduler on a miss.
// Writes go through optimistically: the cache is updated first, so a read
// issued while a write is still in flight can return a value the device
// hasn't committed yet. Callers always receive copies; mutating a returned
// value never bypasses the write path.
type Cache struct {
	sched *Scheduler

	mu            sync.Mutex
	patches       [NumPatches]*Patch // nil means not yet fetched
	tones         [NumTones]*Tone
	patchesLoaded bool
	tonesLoaded   bool
}

// NewCache returns an empty cache backed by sched.
func NewCache(sched *Scheduler) *Cache {
	return &Cache{sched: sched}
}

// Patch returns the decoded patch in the given slot, fetching it from the
// device on a cache miss. A slot whose read failed earlier returns its
// placeholder entry (Name == ReadErrorName) without touching the device.
func (c *Cache) Patch(slot int) (Patch, error) {
	if slot < 0 || slot >= NumPatches {
		return Patch{}, fmt.Errorf("patch slot %d out of range", slot)
	}
	c.mu.Lock()
	if p := c.patches[slot]; p != nil {
		cp := *p
		c.mu.Unlock()
		return cp, nil
	}
	c.mu.Unlock()

	ps, err := c.Patches(slot, slot+1, nil)
	if err != nil {
		return Patch{}, err
	}
	return ps[0], nil
}

// Patches fetches the contiguous slot range [from, to), one handshake per
// slot, and returns copies. Already-cached slots are not re-read. progress,
// if non-nil, is called after each slot. Slots that fail to read or decode
// are cached as placeholders rather than reported as errors.
func (c *Cache) Patches(from, to int, progress func(done, total int)) ([]Patch, error) {
	if from < 0 || to > NumPatches || from >= to {
		return nil, fmt.Errorf("patch range [%d, %d) out of range", from, to)
	}
	out := make([]Patch, 0, to-from)
	for slot := from; slot < to; slot++ {
		c.mu.Lock()
		cached := c.patches[slot]
		c.mu.Unlock()
		if cached == nil {
			p := c.fetchPatch(slot)
			c.mu.Lock()
			c.patches[slot] = &p
			c.mu.Unlock()
			cached = &p
		}
		out = append(out, *cached)
		if progress != nil {
			progress(slot-from+1, to-from)
		}
	}
	return out, nil
}

func (c *Cache) fetchPatch(slot int) Patch {
	data, err := c.sched.Read(PatchSlotAddress(slot), PatchBlockBytes)
	if err == nil {
		// A short block is a partial transfer; decode rejects it.
		var p Patch
		if p, err = DecodePatch(data); err == nil {
			return p
		}
	}
	return Patch{Name: ReadErrorName}
}

// AllPatches loads every patch slot once and returns copies. After the
// first full load subsequent calls answer entirely from the cache until
// Invalidate.
func (c *Cache) AllPatches(progress func(done, total int)) ([]Patch, error) {
	c.mu.Lock()
	loaded := c.patchesLoaded
	c.mu.Unlock()
	ps, err := c.Patches(0, NumPatches, progress)
	if err == nil && !loaded {
		c.mu.Lock()
		c.patchesLoaded = true
		c.mu.Unlock()
	}
	return ps, err
}

// SetPatch writes through: the cache entry is replaced immediately, then
// the device write runs via the scheduler's coalescing path. The write
// error, if any, is returned unchanged.
func (c *Cache) SetPatch(slot int, p Patch) error {
	if slot < 0 || slot >= NumPatches {
		return fmt.Errorf("patch slot %d out of range", slot)
	}
	data, err := EncodePatch(p)
	if err != nil {
		return err
	}
	c.mu.Lock()
	cp := p
	c.patches[slot] = &cp
	c.mu.Unlock()
	return c.sched.Write(PatchSlotAddress(slot), data)
}

// Tone returns the decoded tone in the given slot, fetching on a miss.
func (c *Cache) Tone(slot int) (Tone, error) {
	if slot < 0 || slot >= NumTones {
		return Tone{}, fmt.Errorf("tone slot %d out of range", slot)
	}
	c.mu.Lock()
	if t := c.tones[slot]; t != nil {
		cp := *t
		c.mu.Unlock()
		return cp, nil
	}
	c.mu.Unlock()

	ts, err := c.Tones(slot, slot+1, nil)
	if err != nil {
		return Tone{}, err
	}
	return ts[0], nil
}

// Tones fetches the contiguous tone range [from, to), like Patches.
func (c *Cache) Tones(from, to int, progress func(done, total int)) ([]Tone, error) {
	if from < 0 || to > NumTones || from >= to {
		return nil, fmt.Errorf("tone range [%d, %d) out of range", from, to)
	}
	out := make([]Tone, 0, to-from)
	for slot := from; slot < to; slot++ {
		c.mu.Lock()
		cached := c.tones[slot]
		c.mu.Unlock()
		if cached == nil {
			t := c.fetchTone(slot)
			c.mu.Lock()
			c.tones[slot] = &t
			c.mu.Unlock()
			cached = &t
		}
		out = append(out, *cached)
		if progress != nil {
			progress(slot-from+1, to-from)
		}
	}
	return out, nil
}

func (c *Cache) fetchTone(slot int) Tone {
	data, err := c.sched.Read(ToneSlotAddress(slot), ToneBlockBytes)
	if err == nil {
		var t Tone
		if t, err = DecodeTone(data); err == nil {
			return t
		}
	}
	return Tone{Name: ReadErrorName[:ToneNameLen]}
}

// AllTones loads every tone slot once and returns copies.
func (c *Cache) AllTones(progress func(done, total int)) ([]Tone, error) {
	c.mu.Lock()
	loaded := c.tonesLoaded
	c.mu.Unlock()
	ts, err := c.Tones(0, NumTones, progress)
	if err == nil && !loaded {
		c.mu.Lock()
		c.tonesLoaded = true
		c.mu.Unlock()
	}
	return ts, err
}

// SetTone writes through like SetPatch.
func (c *Cache) SetTone(slot int, t Tone) error {
	if slot < 0 || slot >= NumTones {
		return fmt.Errorf("tone slot %d out of range", slot)
	}
	data, err := EncodeTone(t)
	if err != nil {
		return err
	}
	c.mu.Lock()
	cp := t
	c.tones[slot] = &cp
	c.mu.Unlock()
	return c.sched.Write(ToneSlotAddress(slot), data)
}

// Invalidate drops every cached entry and the fully-loaded flags, forcing
// fresh device reads. The owner of the connection calls this when the
// device may have changed underneath us, e.g. after a power cycle.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.patches = [NumPatches]*Patch{}
	c.tones = [NumTones]*Tone{}
	c.patchesLoaded = false
	c.tonesLoaded = false
	c.mu.Unlock()
}
