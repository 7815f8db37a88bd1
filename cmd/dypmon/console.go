// cmd/dypmon/console.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tamzrod/dyp-sonar/internal/writer"
)

// operator is the part of the monitor driven from the console.
type operator interface {
	Apply(ctx context.Context) (writer.Report, error)
	SetActive(ch int, active bool) error
	SetSmoothing(on bool)
	SetWindow(w int) error
}

const consoleHelp = "commands: apply | on <ch> | off <ch> | smooth on|off | window <n>"

// runConsole executes one command per line from r until EOF or ctx ends.
func runConsole(ctx context.Context, r io.Reader, op operator) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := handleCommand(ctx, op, line); err != nil {
			log.Warn().Err(err).Str("cmd", line).Msg("console command failed")
		}
	}
}

func handleCommand(ctx context.Context, op operator, line string) error {
	f := strings.Fields(line)

	switch {
	case f[0] == "apply" && len(f) == 1:
		report, err := op.Apply(ctx)
		if err != nil {
			return err
		}
		log.Info().Bool("ok", report.OK()).Interface("failed", report.Failed()).Msg("settings applied")
		return nil

	case (f[0] == "on" || f[0] == "off") && len(f) == 2:
		ch, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("channel %q: %w", f[1], err)
		}
		return op.SetActive(ch-1, f[0] == "on")

	case f[0] == "smooth" && len(f) == 2 && (f[1] == "on" || f[1] == "off"):
		op.SetSmoothing(f[1] == "on")
		return nil

	case f[0] == "window" && len(f) == 2:
		w, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("window %q: %w", f[1], err)
		}
		return op.SetWindow(w)
	}

	return fmt.Errorf("unknown command; %s", consoleHelp)
}
