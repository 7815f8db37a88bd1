// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dyp-sonar/internal/frame"
	"github.com/tamzrod/dyp-sonar/internal/transport"
)

// Config is the retry/timing policy for register writes.
type Config struct {
	MaxRetries   int
	WriteTimeout time.Duration
	AngleDelay   time.Duration // after the angle (and config-mode) write
	DenoiseDelay time.Duration // after the denoise write
}

// Configurator pushes settings to sensors, one address at a time.
// It never runs writes concurrently and pauses polling while it works.
type Configurator struct {
	cfg    Config
	tx     Transactor
	pauser Pauser
	sink   StatusSink
	log    zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Configurator. pauser and sink may be nil.
func New(cfg Config, tx Transactor, pauser Pauser, sink StatusSink, logger zerolog.Logger) (*Configurator, error) {
	if tx == nil {
		return nil, errors.New("writer: transactor required")
	}
	if cfg.MaxRetries < 1 {
		return nil, errors.New("writer: max retries must be >= 1")
	}
	if cfg.WriteTimeout <= 0 {
		return nil, errors.New("writer: write timeout must be > 0")
	}
	return &Configurator{
		cfg:    cfg,
		tx:     tx,
		pauser: pauser,
		sink:   sink,
		log:    logger.With().Str("component", "writer").Logger(),
		sleep:  sleepCtx,
	}, nil
}

// ApplySettings writes angle and denoise levels to each address in order.
//
// Each address gets up to MaxRetries full cycles; a cycle succeeds only if
// every write in it is echoed back. A failing address is marked Failed and
// the run moves on. Polling is paused for the whole run and resumed
// afterwards regardless of outcome.
//
// The returned error is non-nil only when the run was cut short by a
// transport fault or cancellation; addresses not reached are reported Failed.
func (c *Configurator) ApplySettings(ctx context.Context, addresses []uint8, s Settings) (Report, error) {
	if err := validateSettings(s); err != nil {
		return Report{}, err
	}
	if err := validateAddresses(addresses); err != nil {
		return Report{}, err
	}

	for _, a := range addresses {
		c.setState(a, StatePending)
	}

	resume, err := c.pause(ctx)
	if err != nil {
		return Report{}, err
	}
	defer resume()

	steps := c.settingsSteps(s)

	var report Report
	var fatal error

	for _, addr := range addresses {
		if fatal != nil {
			c.setState(addr, StateFailed)
			report.Results = append(report.Results, Result{Address: addr, State: StateFailed, Err: fatal})
			continue
		}

		res := c.runCycles(ctx, addr, steps)
		report.Results = append(report.Results, res)

		if res.Err != nil && (transport.IsIOError(res.Err) || ctx.Err() != nil) {
			fatal = res.Err
		}
	}

	c.log.Info().
		Bool("ok", report.OK()).
		Interface("failed", report.Failed()).
		Msg("settings run finished")

	return report, fatal
}

// SetAddress changes a sensor's bus address with the same retry policy.
func (c *Configurator) SetAddress(ctx context.Context, current, next uint8) (Result, error) {
	if err := validateAddresses([]uint8{current, next}); err != nil {
		return Result{}, err
	}

	c.setState(current, StatePending)

	resume, err := c.pause(ctx)
	if err != nil {
		return Result{}, err
	}
	defer resume()

	res := c.runCycles(ctx, current, []step{{reg: frame.RegAddress, value: uint16(next)}})
	if res.Err != nil && (transport.IsIOError(res.Err) || ctx.Err() != nil) {
		return res, res.Err
	}
	return res, nil
}

// ResetAddresses writes next into the address register of every listed
// address, one attempt each. Only sensors that echo the write succeed.
func (c *Configurator) ResetAddresses(ctx context.Context, current []uint8, next uint8) (Report, error) {
	if err := validateAddresses(append([]uint8{next}, current...)); err != nil {
		return Report{}, err
	}

	resume, err := c.pause(ctx)
	if err != nil {
		return Report{}, err
	}
	defer resume()

	var report Report
	for _, addr := range current {
		res := Result{Address: addr, Cycles: 1, State: StateSuccess}
		if werr := c.WriteRegister(addr, frame.RegAddress, uint16(next)); werr != nil {
			res.State = StateFailed
			res.Err = werr
		}
		c.setState(addr, res.State)
		report.Results = append(report.Results, res)

		if transport.IsIOError(res.Err) {
			return report, res.Err
		}

		if err := c.sleep(ctx, c.cfg.AngleDelay); err != nil {
			return report, err
		}
	}
	return report, nil
}

// WriteRegister performs one write-single-register transaction and checks
// the echo. It does not retry and does not pause polling.
func (c *Configurator) WriteRegister(addr uint8, reg, value uint16) error {
	req := frame.BuildWriteRequest(addr, reg, value)

	c.log.Info().
		Uint8("addr", addr).
		Uint16("reg", reg).
		Uint16("value", value).
		Hex("tx", req).
		Msg("write register")

	resp, err := c.tx.Execute(req, frame.WriteResponseSize, c.cfg.WriteTimeout)

	ev := c.log.Info()
	if len(resp) == 0 {
		ev = c.log.Warn()
	}
	ev.Uint8("addr", addr).
		Uint16("reg", reg).
		Uint16("value", value).
		Hex("rx", resp).
		Msg("write response")

	if err != nil && !transport.IsTimeout(err) {
		return err
	}

	// A timed-out read may still hold a complete echo.
	if verr := frame.ValidateWrite(req, resp); verr != nil {
		if err != nil {
			return err
		}
		return verr
	}
	return nil
}

// ---- internal ----

func (c *Configurator) runCycles(ctx context.Context, addr uint8, steps []step) Result {
	res := Result{Address: addr}

	for res.Cycles < c.cfg.MaxRetries {
		res.Cycles++
		c.setState(addr, StateWriting)

		err := c.cycle(ctx, addr, steps)
		if err == nil {
			res.State = StateSuccess
			res.Err = nil
			c.setState(addr, StateSuccess)
			c.log.Info().Uint8("addr", addr).Int("cycles", res.Cycles).Msg("sensor configured")
			return res
		}

		res.Err = err
		if transport.IsIOError(err) || ctx.Err() != nil {
			break
		}
		if res.Cycles < c.cfg.MaxRetries {
			c.setState(addr, StateRetrying)
			c.log.Warn().Err(err).Uint8("addr", addr).Int("cycle", res.Cycles).Msg("retrying sensor")
		}
	}

	res.State = StateFailed
	c.setState(addr, StateFailed)
	c.log.Error().Err(res.Err).Uint8("addr", addr).Int("cycles", res.Cycles).Msg("sensor not configured")
	return res
}

// cycle runs every step even after a failed write; the cycle fails if any
// write failed. Transport faults and cancellation end it early.
func (c *Configurator) cycle(ctx context.Context, addr uint8, steps []step) error {
	var firstErr error
	for _, st := range steps {
		err := c.WriteRegister(addr, st.reg, st.value)
		if err != nil {
			if transport.IsIOError(err) {
				return err
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("reg 0x%04X: %w", st.reg, err)
			}
		}
		if err := c.sleep(ctx, st.delay); err != nil {
			return err
		}
	}
	return firstErr
}

func (c *Configurator) settingsSteps(s Settings) []step {
	var steps []step
	if s.EnableConfigMode {
		steps = append(steps, step{reg: frame.RegConfigMode, value: 1, delay: c.cfg.AngleDelay})
	}
	return append(steps,
		step{reg: frame.RegAngle, value: uint16(s.Angle), delay: c.cfg.AngleDelay},
		step{reg: frame.RegDenoise, value: uint16(s.Denoise), delay: c.cfg.DenoiseDelay},
	)
}

func (c *Configurator) pause(ctx context.Context) (func(), error) {
	if c.pauser == nil {
		return func() {}, nil
	}
	resume, err := c.pauser.Pause(ctx)
	if err != nil {
		return nil, fmt.Errorf("writer: pause polling: %w", err)
	}
	return resume, nil
}

func (c *Configurator) setState(addr uint8, st State) {
	if c.sink != nil {
		c.sink.SetState(addr, st)
	}
}

func validateSettings(s Settings) error {
	if s.Angle < 1 || s.Angle > 4 {
		return fmt.Errorf("writer: angle level must be 1..4, got %d", s.Angle)
	}
	if s.Denoise < 1 || s.Denoise > 5 {
		return fmt.Errorf("writer: denoise level must be 1..5, got %d", s.Denoise)
	}
	return nil
}

func validateAddresses(addrs []uint8) error {
	for _, a := range addrs {
		if a < frame.AddressMin || a > frame.AddressMax {
			return fmt.Errorf("writer: address %d outside 1..247", a)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
