// internal/status/snapshot.go
package status

import (
	"errors"
	"fmt"
)

// Snapshot is the display-facing state of one channel.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Label         string
	Health        uint16
	LastErrorCode uint16
	Distance      uint16
	StdDev        float64
	HasStdDev     bool
	Misses        uint16
}

// ReadingText renders the distance cell: "<n> mm", "--- mm" for no
// target, or "Inactive".
func (s Snapshot) ReadingText() string {
	if s.Health == HealthDisabled {
		return TextInactive
	}
	if s.Distance == 0 {
		return TextNoReading
	}
	return fmt.Sprintf("%d mm", s.Distance)
}

// StdDevText renders the deviation cell.
func (s Snapshot) StdDevText() string {
	if s.Health == HealthDisabled || !s.HasStdDev {
		return TextNoStdDev
	}
	return fmt.Sprintf("Std: %.1f", s.StdDev)
}

// HealthText names a health code.
func HealthText(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("health(%d)", h)
	}
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns ErrorGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ErrorGeneric
}
