// internal/transport/errors.go
package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// Error codes exposed through Code(), consumed by status.ErrorCode.
const (
	CodeConnection uint16 = 2
	CodeTimeout    uint16 = 3
	CodeIO         uint16 = 5
)

// ErrClosed is wrapped in an IOError when a closed session is used.
var ErrClosed = errors.New("transport: session closed")

// ConnectionError means the serial device could not be opened.
// Fatal to the session; there is no automatic reconnect.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: open %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
func (e *ConnectionError) Code() uint16  { return CodeConnection }

// TimeoutError means fewer than Want bytes arrived within the wait bound.
type TimeoutError struct {
	Want  int
	Got   int
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: timeout after %v: got %d of %d bytes", e.After, e.Got, e.Want)
}

func (e *TimeoutError) Timeout() bool { return true }
func (e *TimeoutError) Code() uint16  { return CodeTimeout }

// IOError is a transport fault in the middle of a transaction.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) Code() uint16  { return CodeIO }

// IsIOError reports whether err carries an IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// IsTimeout reports whether err is a read timeout, from this package or the serial driver.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, serial.ErrTimeout) {
		return true
	}
	type timeout interface{ Timeout() bool }
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
