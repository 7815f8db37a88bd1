// internal/poller/poller.go
package poller

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dyp-sonar/internal/frame"
	"github.com/tamzrod/dyp-sonar/internal/transport"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	BusAddress    uint8
	StartRegister uint16
	Count         uint16
	Interval      time.Duration
	Timeout       time.Duration
	Threshold     uint16

	// VerifyCRC rejects read responses whose CRC does not match.
	VerifyCRC bool
}

// Poller is a clock-driven reader of the distance block.
// It is stateless across polls apart from the pause/resume handshake.
type Poller struct {
	cfg Config
	tx  Transactor
	log zerolog.Logger

	pauseCh chan pauseRequest

	mu      sync.Mutex
	running bool
	paused  bool
	exited  chan struct{}
	hold    chan struct{}
}

// New creates a poller with immutable config.
func New(cfg Config, tx Transactor, logger zerolog.Logger) (*Poller, error) {
	if tx == nil {
		return nil, errors.New("poller: transactor required")
	}
	if cfg.BusAddress < frame.AddressMin || cfg.BusAddress > frame.AddressMax {
		return nil, errors.New("poller: bus address must be 1..247")
	}
	if cfg.Count == 0 || cfg.Count > Channels {
		return nil, errors.New("poller: register count must be 1..4")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("poller: timeout must be > 0")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = frame.DistanceThreshold
	}

	return &Poller{
		cfg:     cfg,
		tx:      tx,
		log:     logger.With().Str("component", "poller").Logger(),
		pauseCh: make(chan pauseRequest),
	}, nil
}

// PollOnce performs exactly one read transaction.
// Timeouts, short reads and mismatched headers degrade to a miss;
// only transport faults are reported through Err.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{At: time.Now()}

	req := frame.BuildReadRequest(p.cfg.BusAddress, p.cfg.StartRegister, p.cfg.Count)

	resp, err := p.tx.Execute(req, frame.ReadResponseSize(p.cfg.Count), p.cfg.Timeout)
	if err != nil {
		if transport.IsIOError(err) {
			p.log.Error().Err(err).Hex("tx", req).Msg("read transaction failed")
			res.Err = err
			return res
		}
		p.log.Debug().Err(err).Hex("rx", resp).Msg("poll miss")
		res.Miss = err
		return res
	}

	if err := frame.ValidateRead(req, resp, p.cfg.VerifyCRC); err != nil {
		p.log.Debug().Err(err).Hex("rx", resp).Msg("poll miss")
		res.Miss = err
		return res
	}

	regs := frame.DecodeRegisters(resp, p.cfg.Count)
	for i, v := range regs {
		res.Distances[i] = frame.Clamp(v, p.cfg.Threshold)
	}
	res.OK = true
	return res
}
