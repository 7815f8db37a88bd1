// internal/writer/types.go
package writer

import (
	"context"
	"fmt"
	"time"
)

// Transactor runs one request/response exchange on the bus.
type Transactor interface {
	Execute(req []byte, want int, timeout time.Duration) ([]byte, error)
}

// Pauser suspends concurrent polling. The returned function resumes it.
// *poller.Poller satisfies it.
type Pauser interface {
	Pause(ctx context.Context) (resume func(), err error)
}

// StatusSink receives per-sensor state transitions.
type StatusSink interface {
	SetState(addr uint8, st State)
}

// State of one sensor during a settings run.
type State int

const (
	StatePending State = iota
	StateWriting
	StateRetrying
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateWriting:
		return "Writing"
	case StateRetrying:
		return "Retrying"
	case StateSuccess:
		return "Success"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Settings are the operator-entered sensor parameters.
type Settings struct {
	Angle   uint8 // 1..4
	Denoise uint8 // 1..5

	// EnableConfigMode writes the config-mode register before the levels.
	EnableConfigMode bool
}

// step is one register write of a cycle, followed by a settle delay.
type step struct {
	reg   uint16
	value uint16
	delay time.Duration
}

// Result is the outcome for one sensor address.
type Result struct {
	Address uint8
	State   State // StateSuccess or StateFailed
	Cycles  int   // write cycles attempted
	Err     error // last failure, nil on success
}

// Report lists per-address results in the order they were processed.
type Report struct {
	Results []Result
}

// Outcomes maps each address to whether its settings were applied.
func (r Report) Outcomes() map[uint8]bool {
	out := make(map[uint8]bool, len(r.Results))
	for _, res := range r.Results {
		out[res.Address] = res.State == StateSuccess
	}
	return out
}

// OK reports whether every address succeeded.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if res.State != StateSuccess {
			return false
		}
	}
	return true
}

// Failed lists the addresses that did not succeed, in order.
func (r Report) Failed() []uint8 {
	var out []uint8
	for _, res := range r.Results {
		if res.State != StateSuccess {
			out = append(out, res.Address)
		}
	}
	return out
}
