// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial   SerialConfig    `yaml:"serial"`
	Bus      BusConfig       `yaml:"bus"`
	Sensors  SensorsConfig   `yaml:"sensors"`
	Display  DisplayConfig   `yaml:"display"`
	Channels []ChannelConfig `yaml:"channels"`
	Log      LogConfig       `yaml:"log"`
}

// ---- SERIAL LINE ----

type SerialConfig struct {
	Port        string `yaml:"port"`
	BaudRate    int    `yaml:"baud_rate"`
	Parity      string `yaml:"parity"`
	StopBits    int    `yaml:"stop_bits"`
	ReadSliceMs int    `yaml:"read_slice_ms"`
	RS485       bool   `yaml:"rs485"`
}

// ---- POLLING ----

type BusConfig struct {
	Address        uint8  `yaml:"address"` // device answering the multi-channel read
	StartRegister  uint16 `yaml:"start_register"`
	Count          uint16 `yaml:"count"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	VerifyReadCRC  bool   `yaml:"verify_read_crc"`
}

// ---- SENSOR SETTINGS ----

type SensorsConfig struct {
	Addresses        []uint8 `yaml:"addresses"`
	AngleLevel       uint8   `yaml:"angle_level"`
	DenoiseLevel     uint8   `yaml:"denoise_level"`
	EnableConfigMode bool    `yaml:"enable_config_mode"`
	MaxRetries       int     `yaml:"max_retries"`
	WriteTimeoutMs   int     `yaml:"write_timeout_ms"`
	AngleDelayMs     int     `yaml:"angle_delay_ms"`
	DenoiseDelayMs   int     `yaml:"denoise_delay_ms"`
}

// ---- DISPLAY / STATISTICS ----

type DisplayConfig struct {
	Smoothing         bool   `yaml:"smoothing"`
	Window            int    `yaml:"window"`
	DistanceThreshold uint16 `yaml:"distance_threshold"`
	HistorySize       int    `yaml:"history_size"`
}

// ---- CHANNELS ----

type ChannelConfig struct {
	Label  string `yaml:"label"`
	Active *bool  `yaml:"active"` // missing => active
}

// IsActive reports the channel's active flag, defaulting to true.
func (c ChannelConfig) IsActive() bool {
	return c.Active == nil || *c.Active
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses a YAML configuration file.
// It does not validate or apply defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes a YAML document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration back as YAML.
func Save(path string, cfg *Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
