// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/dyp-sonar/internal/config"
)

// Build constructs a Configurator from the sensors section.
// Assumes config has already been validated and normalized.
func Build(c *cfg.Config, tx Transactor, pauser Pauser, sink StatusSink, logger zerolog.Logger) (*Configurator, error) {
	s := c.Sensors
	return New(
		Config{
			MaxRetries:   s.MaxRetries,
			WriteTimeout: time.Duration(s.WriteTimeoutMs) * time.Millisecond,
			AngleDelay:   time.Duration(s.AngleDelayMs) * time.Millisecond,
			DenoiseDelay: time.Duration(s.DenoiseDelayMs) * time.Millisecond,
		},
		tx,
		pauser,
		sink,
		logger,
	)
}

// SettingsFrom extracts the configured sensor settings.
func SettingsFrom(c *cfg.Config) Settings {
	return Settings{
		Angle:            c.Sensors.AngleLevel,
		Denoise:          c.Sensors.DenoiseLevel,
		EnableConfigMode: c.Sensors.EnableConfigMode,
	}
}
