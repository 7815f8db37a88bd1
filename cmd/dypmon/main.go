// cmd/dypmon/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tamzrod/dyp-sonar/internal/config"
	"github.com/tamzrod/dyp-sonar/internal/monitor"
	"github.com/tamzrod/dyp-sonar/internal/poller"
	"github.com/tamzrod/dyp-sonar/internal/status"
	"github.com/tamzrod/dyp-sonar/internal/transport"
	"github.com/tamzrod/dyp-sonar/internal/writer"
	wmodbus "github.com/tamzrod/dyp-sonar/internal/writer/modbus"
)

const usage = `usage:
  dypmon monitor <config.yaml>
  dypmon apply <config.yaml>
  dypmon check <config.yaml>
  dypmon set-address <config.yaml> <current> <new>
  dypmon reset-addresses <config.yaml> <new>`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, cfgPath, args := os.Args[1], os.Args[2], os.Args[3:]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Open the bus
	// --------------------

	sess, err := transport.Open(transport.Config{
		Port:      cfg.Serial.Port,
		BaudRate:  cfg.Serial.BaudRate,
		StopBits:  cfg.Serial.StopBits,
		Parity:    cfg.Serial.Parity,
		ReadSlice: time.Duration(cfg.Serial.ReadSliceMs) * time.Millisecond,
		RS485:     cfg.Serial.RS485,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("serial open failed")
	}
	defer sess.Close()

	log.Info().Str("port", sess.Name()).Int("baud", cfg.Serial.BaudRate).Msg("serial port open")

	switch cmd {
	case "monitor":
		err = runMonitor(ctx, cfg, cfgPath, sess)
	case "apply":
		err = runApply(ctx, cfg, sess)
	case "check":
		err = runCheck(cfg, sess)
	case "set-address":
		err = runSetAddress(ctx, cfg, sess, args)
	case "reset-addresses":
		err = runResetAddresses(ctx, cfg, sess, args)
	default:
		err = fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("cmd", cmd).Msg("command failed")
		sess.Close()
		os.Exit(1)
	}
}

// ---- monitor ----

func runMonitor(ctx context.Context, cfg *config.Config, cfgPath string, sess *transport.Session) error {
	m, err := monitor.Build(cfg, sess, log.Logger)
	if err != nil {
		return err
	}

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				printReadings(m)
			}
		}
	}()

	log.Info().Msg(consoleHelp)
	go runConsole(ctx, os.Stdin, m)

	err = m.Run(ctx)

	// Only rewrite the operator's file when something was changed here.
	if m.Changed() {
		monitor.Store(m, cfg)
		if serr := config.Save(cfgPath, cfg); serr != nil {
			log.Warn().Err(serr).Msg("saving preferences failed")
		}
	}
	return err
}

func printReadings(m *monitor.Monitor) {
	cells := make([]string, 0, poller.Channels)
	for ch := 0; ch < poller.Channels; ch++ {
		s, err := m.Snapshot(ch)
		if err != nil {
			continue
		}
		cell := fmt.Sprintf("%s: %s (%s)", s.Label, s.ReadingText(), s.StdDevText())
		if s.Health != status.HealthOK && s.Health != status.HealthDisabled {
			cell += " [" + status.HealthText(s.Health) + "]"
		}
		cells = append(cells, cell)
	}
	fmt.Println(strings.Join(cells, " | "))
}

// ---- configurator ----

func runApply(ctx context.Context, cfg *config.Config, sess *transport.Session) error {
	board := writer.NewBoard()
	conf, err := writer.Build(cfg, sess, nil, board, log.Logger)
	if err != nil {
		return err
	}

	report, err := conf.ApplySettings(ctx, cfg.Sensors.Addresses, writer.SettingsFrom(cfg))
	for _, a := range cfg.Sensors.Addresses {
		fmt.Printf("sensor %d: %s\n", a, board.Text(a))
	}
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("settings not applied to %v", report.Failed())
	}
	return nil
}

func runSetAddress(ctx context.Context, cfg *config.Config, sess *transport.Session, args []string) error {
	if len(args) != 2 {
		return errors.New(usage)
	}
	current, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	next, err := parseAddress(args[1])
	if err != nil {
		return err
	}

	conf, err := writer.Build(cfg, sess, nil, nil, log.Logger)
	if err != nil {
		return err
	}

	res, err := conf.SetAddress(ctx, current, next)
	fmt.Printf("sensor %d -> %d: %s\n", current, next, res.State)
	if err != nil {
		return err
	}
	if res.State != writer.StateSuccess {
		return res.Err
	}
	return nil
}

func runResetAddresses(ctx context.Context, cfg *config.Config, sess *transport.Session, args []string) error {
	if len(args) != 1 {
		return errors.New(usage)
	}
	next, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	conf, err := writer.Build(cfg, sess, nil, nil, log.Logger)
	if err != nil {
		return err
	}

	report, err := conf.ResetAddresses(ctx, []uint8{1, 2, 3, 4}, next)
	for _, r := range report.Results {
		fmt.Printf("sensor %d -> %d: %s\n", r.Address, next, r.State)
	}
	return err
}

// ---- inspection ----

func runCheck(cfg *config.Config, sess *transport.Session) error {
	timeout := time.Duration(cfg.Sensors.WriteTimeoutMs) * time.Millisecond

	var failed []uint8
	for _, a := range cfg.Sensors.Addresses {
		c, err := wmodbus.NewClient(wmodbus.Config{Address: a, Timeout: timeout}, sess)
		if err != nil {
			return err
		}

		r, err := c.Inspect()
		fmt.Printf("sensor %d: address=%d config_mode=%d angle=%d denoise=%d\n",
			a, r.Address, r.ConfigMode, r.Angle, r.Denoise)
		if err != nil {
			log.Warn().Err(err).Uint8("addr", a).Msg("inspect incomplete")
			failed = append(failed, a)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("no answer from %v", failed)
	}
	return nil
}

func parseAddress(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v < 1 || v > 247 {
		return 0, fmt.Errorf("invalid address %q (want 1..247)", s)
	}
	return uint8(v), nil
}
