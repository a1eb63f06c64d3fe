// Package cmdutil opens the MIDI connection for the command-line tools and
// adapts it to the s550.Transport contract.
package cmdutil

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/oletizi/s550/s550"
	"gitlab.com/gomidi/midi"
	driver "gitlab.com/gomidi/rtmididrv"
)

type Config struct {
	OutDevice string
	InDevice  string
}

// Conn is an open MIDI connection. It implements s550.Transport:
// subscribers receive complete sysex messages, reassembled here if the
// driver delivers them in chunks.
type Conn struct {
	in  midi.In
	out midi.Out

	mu   sync.Mutex
	next s550.Subscription
	subs map[s550.Subscription]func([]byte)
	buf  []byte // partial sysex being reassembled
}

// Open opens the MIDI connection.
func Open(cfg *Config) (*Conn, error) {
	in, out, err := findDevices(cfg)
	if err != nil {
		return nil, err
	}
	log.Println("midi input:", in)
	log.Println("midi output:", out)
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("can't open MIDI input: %v", err)
	}
	if err := out.Open(); err != nil {
		in.Close()
		return nil, fmt.Errorf("can't open MIDI output: %v", err)
	}

	c := &Conn{in: in, out: out, subs: make(map[s550.Subscription]func([]byte))}
	in.SetListener(func(msg []byte, deltaT int64) {
		c.receive(msg)
	})
	return c, nil
}

// Send transmits one complete sysex message.
func (c *Conn) Send(msg []byte) error {
	_, err := c.out.Write(msg)
	return err
}

// Subscribe registers a listener for inbound sysex messages.
func (c *Conn) Subscribe(fn func(msg []byte)) s550.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.subs[c.next] = fn
	return c.next
}

// Unsubscribe removes a listener.
func (c *Conn) Unsubscribe(s s550.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, s)
}

func (c *Conn) Close() {
	c.in.Close()
	c.out.Close()
}

// receive reassembles chunked sysex input and dispatches each complete
// message. Non-sysex traffic outside a partial message is dropped.
func (c *Conn) receive(msg []byte) {
	c.mu.Lock()
	if len(c.buf) == 0 {
		if len(msg) == 0 || msg[0] != 0xF0 {
			c.mu.Unlock()
			return
		}
	}
	c.buf = append(c.buf, msg...)
	end := bytes.IndexByte(c.buf, 0xF7)
	if end < 0 {
		c.mu.Unlock()
		return
	}
	complete := make([]byte, end+1)
	copy(complete, c.buf[:end+1])
	c.buf = c.buf[:0]
	fns := make([]func([]byte), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(complete)
	}
}

func findDevices(cfg *Config) (midi.In, midi.Out, error) {
	drv, err := driver.New(driver.IgnoreActiveSense(), driver.IgnoreTimeCode())
	if err != nil {
		return nil, nil, err
	}
	inputs, err := drv.Ins()
	if err != nil {
		return nil, nil, fmt.Errorf("can't list MIDI inputs: %v", err)
	}
	outputs, err := drv.Outs()
	if err != nil {
		return nil, nil, fmt.Errorf("can't list MIDI outputs: %v", err)
	}
	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("no MIDI inputs")
	}

	// Find a matching input device.
	var selectedIn midi.In
	if cfg.InDevice == "" {
		selectedIn = inputs[0]
	} else {
		var inputNames []string
		for _, in := range inputs {
			name := in.String()
			inputNames = append(inputNames, name)
			if strings.Contains(strings.ToLower(name), strings.ToLower(cfg.InDevice)) {
				selectedIn = in
				break
			}
		}
		if selectedIn == nil {
			return nil, nil, fmt.Errorf("can't find MIDI input device %q, have %v", cfg.InDevice, inputNames)
		}
	}

	// Find the output device.
	outDevice := cfg.OutDevice
	if outDevice == "" {
		outDevice = selectedIn.String()
	}
	var selectedOut midi.Out
	var outputNames []string
	for _, out := range outputs {
		outputNames = append(outputNames, out.String())
		if out.String() == outDevice {
			selectedOut = out
			break
		}
	}
	if selectedOut == nil {
		return nil, nil, fmt.Errorf("can't find MIDI output device %q, have %v", outDevice, outputNames)
	}
	return selectedIn, selectedOut, nil
}
