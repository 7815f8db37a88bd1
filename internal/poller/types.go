// internal/poller/types.go
package poller

import "time"

// Channels is the fixed number of distance slots in one read block.
const Channels = 4

// Transactor runs one request/response exchange on the bus.
// *transport.Session satisfies it.
type Transactor interface {
	Execute(req []byte, want int, timeout time.Duration) ([]byte, error)
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	At time.Time

	// Distances are clamped millimetre readings, one per channel.
	// Only meaningful when OK is true.
	Distances [Channels]uint16

	// OK is false on a poll miss: timeout, short read or header mismatch.
	// A miss is expected and recoverable.
	OK bool

	// Miss holds the reason for a miss, for diagnostics only.
	Miss error

	// Err is set only on a transport fault. The run loop stops after
	// delivering a result with Err set.
	Err error
}
