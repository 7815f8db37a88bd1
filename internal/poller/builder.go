// internal/poller/builder.go
package poller

import (
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/dyp-sonar/internal/config"
)

// Build constructs a Poller from the bus section of the configuration.
// The transactor (normally the open session) is owned by the caller.
func Build(c *cfg.Config, tx Transactor, logger zerolog.Logger) (*Poller, error) {
	return New(
		Config{
			BusAddress:    c.Bus.Address,
			StartRegister: c.Bus.StartRegister,
			Count:         c.Bus.Count,
			Interval:      time.Duration(c.Bus.PollIntervalMs) * time.Millisecond,
			Timeout:       time.Duration(c.Bus.ReadTimeoutMs) * time.Millisecond,
			Threshold:     c.Display.DistanceThreshold,
			VerifyCRC:     c.Bus.VerifyReadCRC,
		},
		tx,
		logger,
	)
}
