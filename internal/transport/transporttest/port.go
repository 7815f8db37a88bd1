// internal/transport/transporttest/port.go

// Package transporttest provides a scripted serial port for tests.
package transporttest

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// Responder returns the bytes the bus answers to one request (nil = silence).
type Responder func(req []byte) []byte

// Event is one entry of the port's send/receive log.
type Event struct {
	Dir   string // "tx" or "rx"
	Bytes []byte
}

// Port is an in-memory serial line driven by a Responder.
// Reads with nothing pending sleep briefly and return serial.ErrTimeout,
// like the real driver.
type Port struct {
	Respond Responder

	// ReadErr, when set, is returned by the next Read.
	ReadErr error
	// WriteErr, when set, is returned by every Write.
	WriteErr error

	mu      sync.Mutex
	pending []byte
	log     []Event
	closed  bool
	closes  int
}

func New(r Responder) *Port {
	return &Port{Respond: r}
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("transporttest: port closed")
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}

	req := append([]byte(nil), b...)
	p.log = append(p.log, Event{Dir: "tx", Bytes: req})

	if p.Respond != nil {
		if resp := p.Respond(req); len(resp) > 0 {
			p.pending = append(p.pending, resp...)
		}
	}
	return len(b), nil
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.ReadErr != nil {
		err := p.ReadErr
		p.ReadErr = nil
		p.mu.Unlock()
		return 0, err
	}
	if len(p.pending) == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, serial.ErrTimeout
	}
	n := copy(b, p.pending)
	p.log = append(p.log, Event{Dir: "rx", Bytes: append([]byte(nil), p.pending[:n]...)})
	p.pending = p.pending[n:]
	p.mu.Unlock()
	return n, nil
}

// Inject queues bytes as if they arrived on the line unprompted,
// e.g. the tail of a reply that came after its deadline.
func (p *Port) Inject(b []byte) {
	p.mu.Lock()
	p.pending = append(p.pending, b...)
	p.mu.Unlock()
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closes++
	return nil
}

// Log returns a copy of the send/receive log.
func (p *Port) Log() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.log...)
}

// Closes returns how many times Close was called.
func (p *Port) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}
