package s550

import (
	"sync"
	"time"
)

// DefaultFlushWindow is the write-coalescing window. Rapid writes to the
// same address inside the window collapse to the latest value.
const DefaultFlushWindow = 150 * time.Millisecond

// Scheduler serializes all device traffic through one worker. The sampler
// cannot multiplex: it services exactly one handshake at a time, so
// concurrency is 1 by construction. Writes are additionally buffered and
// coalesced before entering the queue.
type Scheduler struct {
	engine *Engine
	tasks  chan *task
	window time.Duration

	mu         sync.Mutex
	pending    map[Address]*bufferedWrite
	order      []Address
	flushTimer *time.Timer
	closed     bool

	flushing  sync.WaitGroup
	closeOnce sync.Once
}

type task struct {
	run  func() error
	done chan error
}

type bufferedWrite struct {
	data []byte
	err  error
	done chan struct{}
}

// NewScheduler starts the worker. A window <= 0 disables coalescing and
// writes immediately.
func NewScheduler(engine *Engine, window time.Duration) *Scheduler {
	s := &Scheduler{
		engine:  engine,
		tasks:   make(chan *task),
		window:  window,
		pending: make(map[Address]*bufferedWrite),
	}
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	for t := range s.tasks {
		t.done <- t.run()
	}
}

// Do runs op on the worker after every previously submitted operation has
// settled, and waits for its result. Operations complete in submission
// order.
func (s *Scheduler) Do(op func(*Engine) error) error {
	t := &task{run: func() error { return op(s.engine) }, done: make(chan error, 1)}
	s.tasks <- t
	return <-t.done
}

// Read runs a serialized bulk read.
func (s *Scheduler) Read(addr Address, byteLen int) ([]byte, error) {
	var data []byte
	err := s.Do(func(e *Engine) error {
		var err error
		data, err = e.Read(addr, byteLen)
		return err
	})
	return data, err
}

// Write buffers a bulk write and waits until it has been sent. Writes to
// the same address within one flush window collapse to the latest value
// and settle together, in the queue position of the last of them. Every
// buffered write, to any address, restarts the shared window timer.
func (s *Scheduler) Write(addr Address, data []byte) error {
	if s.window <= 0 {
		return s.Do(func(e *Engine) error { return e.Write(addr, data) })
	}

	s.mu.Lock()
	w := s.pending[addr]
	if w == nil {
		w = &bufferedWrite{done: make(chan struct{})}
		s.pending[addr] = w
	} else {
		// Collapsed: move to the position of the newest write.
		for i, a := range s.order {
			if a == addr {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.order = append(s.order, addr)
	w.data = data
	if s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(s.window, s.flush)
	} else {
		s.flushTimer.Reset(s.window)
	}
	s.mu.Unlock()

	<-w.done
	return w.err
}

// flush drains the coalescing buffer through the serialized queue.
func (s *Scheduler) flush() {
	s.mu.Lock()
	if s.closed {
		// Close took over the remaining buffered writes.
		s.mu.Unlock()
		return
	}
	s.flushing.Add(1)
	writes, order := s.takeBuffered()
	s.flushTimer = nil
	s.mu.Unlock()

	s.sendBuffered(writes, order)
	s.flushing.Done()
}

// takeBuffered snapshots and clears the coalescing buffer. Caller holds mu.
func (s *Scheduler) takeBuffered() (map[Address]*bufferedWrite, []Address) {
	writes, order := s.pending, s.order
	s.pending = make(map[Address]*bufferedWrite)
	s.order = nil
	return writes, order
}

func (s *Scheduler) sendBuffered(writes map[Address]*bufferedWrite, order []Address) {
	for _, addr := range order {
		addr, w := addr, writes[addr]
		w.err = s.Do(func(e *Engine) error { return e.Write(addr, w.data) })
		close(w.done)
	}
}

// Close flushes any buffered writes, waits for queued operations to settle
// and stops the worker. No operations may be submitted after Close.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		writes, order := s.takeBuffered()
		if s.flushTimer != nil {
			s.flushTimer.Stop()
			s.flushTimer = nil
		}
		s.mu.Unlock()

		s.sendBuffered(writes, order)
		s.flushing.Wait()
		close(s.tasks)
	})
}
