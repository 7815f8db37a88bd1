// internal/config/normalize.go
package config

import "fmt"

// Defaults applied by Normalize.
const (
	DefaultBaudRate       = 115200
	DefaultBusAddress     = 0x02
	DefaultStartRegister  = 0x0106
	DefaultCount          = 4
	DefaultPollIntervalMs = 200
	DefaultReadTimeoutMs  = 60
	DefaultReadSliceMs    = 10
	DefaultAngleLevel     = 2
	DefaultDenoiseLevel   = 2
	DefaultMaxRetries     = 3
	DefaultWriteTimeoutMs = 300
	DefaultAngleDelayMs   = 100
	DefaultDenoiseDelayMs = 300
	DefaultWindow         = 5
	DefaultThreshold      = 2000
	DefaultHistorySize    = 50
	MaxChannels           = 4
)

// Normalize fills unset fields with defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Serial.BaudRate == 0 {
		cfg.Serial.BaudRate = DefaultBaudRate
	}
	if cfg.Serial.Parity == "" {
		cfg.Serial.Parity = "N"
	}
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = 1
	}
	if cfg.Serial.ReadSliceMs == 0 {
		cfg.Serial.ReadSliceMs = DefaultReadSliceMs
	}

	if cfg.Bus.Address == 0 {
		cfg.Bus.Address = DefaultBusAddress
	}
	if cfg.Bus.StartRegister == 0 {
		cfg.Bus.StartRegister = DefaultStartRegister
	}
	if cfg.Bus.Count == 0 {
		cfg.Bus.Count = DefaultCount
	}
	if cfg.Bus.PollIntervalMs == 0 {
		cfg.Bus.PollIntervalMs = DefaultPollIntervalMs
	}
	if cfg.Bus.ReadTimeoutMs == 0 {
		cfg.Bus.ReadTimeoutMs = DefaultReadTimeoutMs
	}

	if len(cfg.Sensors.Addresses) == 0 {
		cfg.Sensors.Addresses = []uint8{1, 2, 3, 4}
	}
	if cfg.Sensors.AngleLevel == 0 {
		cfg.Sensors.AngleLevel = DefaultAngleLevel
	}
	if cfg.Sensors.DenoiseLevel == 0 {
		cfg.Sensors.DenoiseLevel = DefaultDenoiseLevel
	}
	if cfg.Sensors.MaxRetries == 0 {
		cfg.Sensors.MaxRetries = DefaultMaxRetries
	}
	if cfg.Sensors.WriteTimeoutMs == 0 {
		cfg.Sensors.WriteTimeoutMs = DefaultWriteTimeoutMs
	}
	if cfg.Sensors.AngleDelayMs == 0 {
		cfg.Sensors.AngleDelayMs = DefaultAngleDelayMs
	}
	if cfg.Sensors.DenoiseDelayMs == 0 {
		cfg.Sensors.DenoiseDelayMs = DefaultDenoiseDelayMs
	}

	if cfg.Display.Window == 0 {
		cfg.Display.Window = DefaultWindow
	}
	if cfg.Display.DistanceThreshold == 0 {
		cfg.Display.DistanceThreshold = DefaultThreshold
	}
	if cfg.Display.HistorySize == 0 {
		cfg.Display.HistorySize = DefaultHistorySize
	}

	// Always four channel slots; missing labels get "Channel N".
	for len(cfg.Channels) < MaxChannels {
		cfg.Channels = append(cfg.Channels, ChannelConfig{})
	}
	for i := range cfg.Channels {
		if cfg.Channels[i].Label == "" {
			cfg.Channels[i].Label = fmt.Sprintf("Channel %d", i+1)
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Default returns a normalized configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
