// internal/monitor/builder.go
package monitor

import (
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/dyp-sonar/internal/config"
	"github.com/tamzrod/dyp-sonar/internal/poller"
	"github.com/tamzrod/dyp-sonar/internal/writer"
)

// Build wires the poller, configurator and status board over one bus.
// Assumes config has already been validated and normalized.
func Build(c *cfg.Config, tx poller.Transactor, logger zerolog.Logger) (*Monitor, error) {
	p, err := poller.Build(c, tx, logger)
	if err != nil {
		return nil, err
	}

	board := writer.NewBoard()
	conf, err := writer.Build(c, tx, p, board, logger)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Count:       int(c.Bus.Count),
		HistorySize: c.Display.HistorySize,
		Smoothing:   c.Display.Smoothing,
		Window:      c.Display.Window,
		Addresses:   c.Sensors.Addresses,
		Settings:    writer.SettingsFrom(c),
	}
	for _, ch := range c.Channels {
		opts.Labels = append(opts.Labels, ch.Label)
		opts.Active = append(opts.Active, ch.IsActive())
	}

	return New(opts, p, conf, board, logger)
}

// Store copies the monitor's operator preferences back into c.
func Store(m *Monitor, c *cfg.Config) {
	o := m.Preferences()

	c.Display.Smoothing = o.Smoothing
	c.Display.Window = o.Window
	c.Sensors.AngleLevel = o.Settings.Angle
	c.Sensors.DenoiseLevel = o.Settings.Denoise

	for i := range o.Active {
		if i >= len(c.Channels) {
			c.Channels = append(c.Channels, cfg.ChannelConfig{Label: o.Labels[i]})
		}
		active := o.Active[i]
		c.Channels[i].Active = &active
	}
}
