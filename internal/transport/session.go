// internal/transport/session.go
package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// Port is the serial line as seen by a Session.
type Port interface {
	io.ReadWriteCloser
}

// Config describes the serial line. Zero values take the defaults below.
type Config struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string

	// ReadSlice bounds one blocking read on the driver.
	// Execute keeps reading in slices until its own timeout elapses.
	ReadSlice time.Duration

	RS485 bool
}

const (
	DefaultBaudRate  = 115200
	DefaultReadSlice = 10 * time.Millisecond
)

// maxFlushReads bounds the discard loop on a bus that never goes quiet.
const maxFlushReads = 32

// openPort is replaced in tests.
var openPort = func(c *serial.Config) (Port, error) {
	return serial.Open(c)
}

// Session owns one open serial handle.
// At most one transaction is in flight at a time.
type Session struct {
	name string

	mu   sync.Mutex
	port Port
}

// Open opens the serial device. Failures are reported as *ConnectionError.
func Open(cfg Config) (*Session, error) {
	if cfg.Port == "" {
		return nil, &ConnectionError{Port: cfg.Port, Err: errors.New("port name required")}
	}

	sc := &serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.ReadSlice,
		RS485: serial.RS485Config{
			Enabled: cfg.RS485,
		},
	}
	if sc.BaudRate <= 0 {
		sc.BaudRate = DefaultBaudRate
	}
	if sc.DataBits == 0 {
		sc.DataBits = 8
	}
	if sc.StopBits == 0 {
		sc.StopBits = 1
	}
	if sc.Parity == "" {
		sc.Parity = "N"
	}
	if sc.Timeout <= 0 {
		sc.Timeout = DefaultReadSlice
	}

	p, err := openPort(sc)
	if err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}

	return NewSession(cfg.Port, p), nil
}

// NewSession wraps an already open port.
func NewSession(name string, p Port) *Session {
	return &Session{name: name, port: p}
}

// Name returns the device name the session was opened on.
func (s *Session) Name() string { return s.name }

// Execute writes req, then accumulates up to want bytes for at most timeout.
// On timeout the bytes received so far are returned together with a
// *TimeoutError; callers must re-check the length. Driver faults come back
// as *IOError. Stale input is discarded before the request goes out.
// There is no retry at this layer.
func (s *Session) Execute(req []byte, want int, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil, &IOError{Op: "execute", Err: ErrClosed}
	}

	if err := s.flush(); err != nil {
		return nil, &IOError{Op: "flush", Err: err}
	}

	if err := writeAll(s.port, req); err != nil {
		return nil, &IOError{Op: "write", Err: err}
	}

	start := time.Now()
	deadline := start.Add(timeout)

	buf := make([]byte, 0, want)
	chunk := make([]byte, want)

	for len(buf) < want {
		n, err := s.port.Read(chunk[:want-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil && !IsTimeout(err) && !errors.Is(err, io.EOF) {
			return buf, &IOError{Op: "read", Err: err}
		}
		if len(buf) >= want {
			break
		}
		if !time.Now().Before(deadline) {
			return buf, &TimeoutError{Want: want, Got: len(buf), After: time.Since(start)}
		}
	}

	return buf, nil
}

// Close releases the handle. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// flush discards input left over from a reply that arrived after its
// transaction timed out, so the next response starts on a frame boundary.
func (s *Session) flush() error {
	buf := make([]byte, 64)
	for i := 0; i < maxFlushReads; i++ {
		n, err := s.port.Read(buf)
		if err != nil {
			if IsTimeout(err) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
