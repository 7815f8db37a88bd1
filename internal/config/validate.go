// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// Zero values are accepted (Normalize fills them in).
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	if cfg.Serial.BaudRate < 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", cfg.Serial.BaudRate)
	}
	switch cfg.Serial.Parity {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("serial.parity must be N, E or O, got %q", cfg.Serial.Parity)
	}
	if cfg.Serial.StopBits < 0 || cfg.Serial.StopBits > 2 {
		return fmt.Errorf("serial.stop_bits must be 1 or 2, got %d", cfg.Serial.StopBits)
	}

	// ------------------------------------------------------------
	// BUS
	// ------------------------------------------------------------

	if cfg.Bus.Address > 247 {
		return fmt.Errorf("bus.address must be 1..247, got %d", cfg.Bus.Address)
	}
	if cfg.Bus.Count > MaxChannels {
		return fmt.Errorf("bus.count must be 1..%d, got %d", MaxChannels, cfg.Bus.Count)
	}
	if cfg.Bus.PollIntervalMs < 0 || cfg.Bus.ReadTimeoutMs < 0 {
		return fmt.Errorf("bus: poll_interval_ms and read_timeout_ms must not be negative")
	}

	// ------------------------------------------------------------
	// SENSORS
	// ------------------------------------------------------------

	seen := make(map[uint8]int)
	for i, a := range cfg.Sensors.Addresses {
		if a < 1 || a > 247 {
			return fmt.Errorf("sensors.addresses[%d] must be 1..247, got %d", i, a)
		}
		if prev, ok := seen[a]; ok {
			return fmt.Errorf("sensors.addresses: address %d listed at %d and %d", a, prev, i)
		}
		seen[a] = i
	}
	if cfg.Sensors.AngleLevel > 4 {
		return fmt.Errorf("sensors.angle_level must be 1..4, got %d", cfg.Sensors.AngleLevel)
	}
	if cfg.Sensors.DenoiseLevel > 5 {
		return fmt.Errorf("sensors.denoise_level must be 1..5, got %d", cfg.Sensors.DenoiseLevel)
	}
	if cfg.Sensors.MaxRetries < 0 {
		return fmt.Errorf("sensors.max_retries must not be negative, got %d", cfg.Sensors.MaxRetries)
	}
	if cfg.Sensors.WriteTimeoutMs < 0 || cfg.Sensors.AngleDelayMs < 0 || cfg.Sensors.DenoiseDelayMs < 0 {
		return fmt.Errorf("sensors: timeouts and delays must not be negative")
	}

	// ------------------------------------------------------------
	// DISPLAY / CHANNELS
	// ------------------------------------------------------------

	if cfg.Display.Window < 0 {
		return fmt.Errorf("display.window must be >= 1, got %d", cfg.Display.Window)
	}
	if cfg.Display.HistorySize < 0 {
		return fmt.Errorf("display.history_size must be >= 1, got %d", cfg.Display.HistorySize)
	}
	if len(cfg.Channels) > MaxChannels {
		return fmt.Errorf("channels: at most %d channels, got %d", MaxChannels, len(cfg.Channels))
	}

	switch cfg.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q not recognised", cfg.Log.Level)
	}

	return nil
}
