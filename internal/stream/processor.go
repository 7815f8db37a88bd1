// internal/stream/processor.go
package stream

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// MinStdDevSamples is the history length below which no deviation is reported.
const MinStdDevSamples = 3

// Processor keeps one History per channel and derives display values from it.
// Record is called from the polling path; readers may run concurrently and
// always see a consistent copy.
type Processor struct {
	mu       sync.RWMutex
	channels []*History
}

// NewProcessor creates a processor for n channels of the given capacity.
func NewProcessor(n, capacity int) *Processor {
	p := &Processor{channels: make([]*History, n)}
	for i := range p.channels {
		p.channels[i] = NewHistory(capacity)
	}
	return p
}

// Channels returns the number of channels.
func (p *Processor) Channels() int { return len(p.channels) }

// Capacity returns the per-channel history size.
func (p *Processor) Capacity() int {
	if len(p.channels) == 0 {
		return 0
	}
	return p.channels[0].Cap()
}

func (p *Processor) history(ch int) (*History, error) {
	if ch < 0 || ch >= len(p.channels) {
		return nil, fmt.Errorf("stream: channel %d out of range", ch)
	}
	return p.channels[ch], nil
}

// Record appends one sample to a channel's history.
func (p *Processor) Record(ch int, sample uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.history(ch)
	if err != nil {
		return err
	}
	h.Append(sample)
	return nil
}

// Raw returns the channel's history oldest first.
func (p *Processor) Raw(ch int) []uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, err := p.history(ch)
	if err != nil {
		return nil
	}
	return h.Snapshot()
}

// Latest returns the newest sample of a channel.
func (p *Processor) Latest(ch int) (uint16, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, err := p.history(ch)
	if err != nil {
		return 0, false
	}
	return h.Last()
}

// Len returns how many samples a channel holds.
func (p *Processor) Len(ch int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, err := p.history(ch)
	if err != nil {
		return 0
	}
	return h.Len()
}

// Smoothed returns a trailing moving average over the channel's history:
// element i is the floor of the mean of the last min(window, i+1) samples
// ending at i.
func (p *Processor) Smoothed(ch, window int) []int {
	return MovingAverage(p.Raw(ch), window)
}

// RollingStdDev returns the sample standard deviation (n-1) of the last
// window samples. ok is false while the history holds fewer than
// MinStdDevSamples samples.
func (p *Processor) RollingStdDev(ch, window int) (float64, bool) {
	return StdDev(p.Raw(ch), window)
}

// Reset clears one channel.
func (p *Processor) Reset(ch int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, err := p.history(ch); err == nil {
		h.Reset()
	}
}

// MovingAverage computes the trailing integer moving average of data.
// A window below 1 is treated as 1.
func MovingAverage(data []uint16, window int) []int {
	if window < 1 {
		window = 1
	}
	out := make([]int, len(data))
	sum := 0
	for i, v := range data {
		sum += int(v)
		if i >= window {
			sum -= int(data[i-window])
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		out[i] = sum / n
	}
	return out
}

// StdDev returns the Bessel-corrected standard deviation of the last window
// values of data. A window below 2, or larger than the data, is widened to
// the valid range.
func StdDev(data []uint16, window int) (float64, bool) {
	if len(data) < MinStdDevSamples {
		return 0, false
	}
	if window < 2 {
		window = 2
	}
	if window > len(data) {
		window = len(data)
	}

	tail := data[len(data)-window:]
	xs := make([]float64, len(tail))
	for i, v := range tail {
		xs[i] = float64(v)
	}
	return stat.StdDev(xs, nil), true
}
