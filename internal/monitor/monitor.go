// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dyp-sonar/internal/poller"
	"github.com/tamzrod/dyp-sonar/internal/status"
	"github.com/tamzrod/dyp-sonar/internal/stream"
	"github.com/tamzrod/dyp-sonar/internal/writer"
)

// Options are the operator preferences the monitor starts with.
type Options struct {
	// Count is how many channels the bus read covers; the rest stay
	// disabled. Zero means all of them.
	Count int

	Labels      []string
	Active      []bool
	HistorySize int
	Smoothing   bool
	Window      int

	// Addresses and Settings are what Apply pushes to the sensors.
	Addresses []uint8
	Settings  writer.Settings
}

// Monitor ties the Reader, the Stream Processor and the Configurator
// together. It owns per-channel status and serves the display getters.
type Monitor struct {
	log    zerolog.Logger
	proc   *stream.Processor
	poller *poller.Poller
	conf   *writer.Configurator
	board  *writer.Board

	applyMu sync.Mutex
	count   int

	mu        sync.RWMutex
	chans     []channel
	smoothing bool
	window    int
	addresses []uint8
	settings  writer.Settings
	dirty     bool
}

type channel struct {
	label   string
	active  bool
	health  uint16
	lastErr uint16
	misses  uint16
}

// New creates a monitor. conf must have been built with p as its Pauser
// and board as its StatusSink; Build does this.
func New(opts Options, p *poller.Poller, conf *writer.Configurator, board *writer.Board, logger zerolog.Logger) (*Monitor, error) {
	if p == nil || conf == nil || board == nil {
		return nil, errors.New("monitor: poller, configurator and board required")
	}
	if opts.Window < 1 {
		return nil, fmt.Errorf("monitor: window must be >= 1, got %d", opts.Window)
	}

	count := opts.Count
	if count <= 0 || count > poller.Channels {
		count = poller.Channels
	}

	chans := make([]channel, poller.Channels)
	for i := range chans {
		chans[i] = channel{
			label:  fmt.Sprintf("Channel %d", i+1),
			active: true,
			health: status.HealthUnknown,
		}
		if i < len(opts.Labels) && opts.Labels[i] != "" {
			chans[i].label = opts.Labels[i]
		}
		if i < len(opts.Active) {
			chans[i].active = opts.Active[i]
		}
		if i >= count {
			chans[i].health = status.HealthDisabled
		}
	}

	m := &Monitor{
		log:       logger.With().Str("component", "monitor").Logger(),
		proc:      stream.NewProcessor(poller.Channels, opts.HistorySize),
		poller:    p,
		conf:      conf,
		board:     board,
		count:     count,
		chans:     chans,
		smoothing: opts.Smoothing,
		window:    opts.Window,
		addresses: append([]uint8(nil), opts.Addresses...),
		settings:  opts.Settings,
	}
	for _, a := range m.addresses {
		board.SetState(a, writer.StatePending)
	}
	return m, nil
}

// ---- ingest ----

// Ingest folds one poll result into channel histories and status.
//
//	OK:    active channels record their distance
//	miss:  active channels record 0 and go stale
//	fault: nothing is recorded; every active channel goes to error
//
// Inactive channels and channels beyond the read count never record.
func (m *Monitor) Ingest(res poller.PollResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.chans {
		c := &m.chans[i]
		if !c.active || i >= m.count {
			c.health = status.HealthDisabled
			continue
		}

		switch {
		case res.Err != nil:
			c.health = status.HealthError
			c.lastErr = status.ErrorCode(res.Err)

		case !res.OK:
			_ = m.proc.Record(i, 0)
			c.health = status.HealthStale
			c.lastErr = status.ErrorCode(res.Miss)
			if c.misses < 65535 {
				c.misses++
			}

		default:
			_ = m.proc.Record(i, res.Distances[i])
			c.health = status.HealthOK
			c.lastErr = 0
			c.misses = 0
		}
	}
}

// Consume ingests results until in is closed or ctx ends.
func (m *Monitor) Consume(ctx context.Context, in <-chan poller.PollResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-in:
			if !ok {
				return
			}
			if res.Err != nil {
				m.log.Error().Err(res.Err).Msg("polling stopped on transport fault")
			}
			m.Ingest(res)
		}
	}
}

// Run polls and ingests until ctx ends or the bus faults.
func (m *Monitor) Run(ctx context.Context) error {
	out := make(chan poller.PollResult)
	errCh := make(chan error, 1)

	go func() {
		errCh <- m.poller.Run(ctx, out)
		close(out)
	}()

	m.Consume(ctx, out)
	return <-errCh
}

// ---- configurator ----

// Apply pushes the current settings to every configured address.
// Polling is paused for the duration and always resumed.
func (m *Monitor) Apply(ctx context.Context) (writer.Report, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.RLock()
	addrs := append([]uint8(nil), m.addresses...)
	s := m.settings
	m.mu.RUnlock()

	m.log.Info().
		Interface("addresses", addrs).
		Uint8("angle", s.Angle).
		Uint8("denoise", s.Denoise).
		Msg("applying sensor settings")

	return m.conf.ApplySettings(ctx, addrs, s)
}

// SetSettings replaces the angle/denoise values used by Apply.
func (m *Monitor) SetSettings(s writer.Settings) {
	m.mu.Lock()
	if m.settings != s {
		m.settings = s
		m.dirty = true
	}
	m.mu.Unlock()
}

func (m *Monitor) Settings() writer.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// SensorStatus is the configurator state text for one address.
func (m *Monitor) SensorStatus(addr uint8) string {
	return m.board.Text(addr)
}

// ---- display getters ----

// Snapshot returns the display state of channel ch.
func (m *Monitor) Snapshot(ch int) (status.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ch < 0 || ch >= len(m.chans) {
		return status.Snapshot{}, fmt.Errorf("monitor: channel %d out of range", ch)
	}
	c := m.chans[ch]

	s := status.Snapshot{
		Label:         c.label,
		Health:        c.health,
		LastErrorCode: c.lastErr,
		Misses:        c.misses,
	}
	if !c.active || ch >= m.count {
		s.Health = status.HealthDisabled
		return s, nil
	}
	s.Distance, _ = m.proc.Latest(ch)
	s.StdDev, s.HasStdDev = m.proc.RollingStdDev(ch, m.window)
	return s, nil
}

// ReadingText is the distance cell for channel ch.
func (m *Monitor) ReadingText(ch int) string {
	s, err := m.Snapshot(ch)
	if err != nil {
		return status.TextNoReading
	}
	return s.ReadingText()
}

// StdDevText is the deviation cell for channel ch.
func (m *Monitor) StdDevText(ch int) string {
	s, err := m.Snapshot(ch)
	if err != nil {
		return status.TextNoStdDev
	}
	return s.StdDevText()
}

// Series is the plot trace for channel ch: smoothed when smoothing is on
// and the history holds at least window samples, raw otherwise.
func (m *Monitor) Series(ch int) []int {
	m.mu.RLock()
	smoothing, window := m.smoothing, m.window
	m.mu.RUnlock()

	raw := m.proc.Raw(ch)
	if smoothing && len(raw) >= window {
		return stream.MovingAverage(raw, window)
	}
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

// SetActive switches a channel on or off. Switching off keeps its history.
func (m *Monitor) SetActive(ch int, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch < 0 || ch >= len(m.chans) {
		return fmt.Errorf("monitor: channel %d out of range", ch)
	}
	if ch >= m.count {
		return fmt.Errorf("monitor: channel %d not covered by a %d-register read", ch, m.count)
	}
	if m.chans[ch].active == active {
		return nil
	}
	m.chans[ch].active = active
	m.dirty = true
	if active {
		m.chans[ch].health = status.HealthUnknown
	} else {
		m.chans[ch].health = status.HealthDisabled
	}
	return nil
}

func (m *Monitor) Active(ch int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ch >= 0 && ch < m.count && m.chans[ch].active
}

func (m *Monitor) SetSmoothing(on bool) {
	m.mu.Lock()
	if m.smoothing != on {
		m.smoothing = on
		m.dirty = true
	}
	m.mu.Unlock()
}

// SetWindow changes the smoothing and deviation window.
func (m *Monitor) SetWindow(w int) error {
	if w < 1 {
		return fmt.Errorf("monitor: window must be >= 1, got %d", w)
	}
	m.mu.Lock()
	if m.window != w {
		m.window = w
		m.dirty = true
	}
	m.mu.Unlock()
	return nil
}

// Changed reports whether any operator preference was modified since
// the monitor was created.
func (m *Monitor) Changed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Preferences returns the current operator preferences, for saving.
func (m *Monitor) Preferences() Options {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o := Options{
		Count:       m.count,
		HistorySize: m.proc.Capacity(),
		Smoothing:   m.smoothing,
		Window:      m.window,
		Addresses:   append([]uint8(nil), m.addresses...),
		Settings:    m.settings,
	}
	for _, c := range m.chans {
		o.Labels = append(o.Labels, c.label)
		o.Active = append(o.Active, c.active)
	}
	return o
}
