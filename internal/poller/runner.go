// internal/poller/runner.go
package poller

import (
	"context"
	"errors"
	"sync"
	"time"
)

type pauseRequest struct {
	ack    chan struct{}
	resume chan struct{}
}

// Run starts the ticker loop and emits PollResult on the provided channel.
// No overlap, no retries. Pause requests are honoured only between polls,
// so an in-flight transaction always completes first.
// Run returns ctx.Err() on cancellation, or the transport error of the
// last delivered result.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) error {
	exited := make(chan struct{})

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("poller: already running")
	}
	p.running = true
	p.exited = exited
	hold := p.hold
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(exited)
	}()

	// Paused before the loop started.
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-p.pauseCh:
			close(req.ack)
			select {
			case <-req.resume:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-ticker.C:
			res := p.PollOnce()
			select {
			case out <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
			if res.Err != nil {
				return res.Err
			}
		}
	}
}

// Pause stops the loop at its next iteration boundary and returns once no
// poll is in flight. The returned resume function restarts polling; it is
// safe to call more than once.
func (p *Poller) Pause(ctx context.Context) (func(), error) {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return nil, errors.New("poller: already paused")
	}
	p.paused = true

	if !p.running {
		resume := p.holdLocked()
		p.mu.Unlock()
		return resume, nil
	}
	exited := p.exited
	p.mu.Unlock()

	req := pauseRequest{
		ack:    make(chan struct{}),
		resume: make(chan struct{}),
	}

	select {
	case p.pauseCh <- req:
	case <-exited:
		p.mu.Lock()
		resume := p.holdLocked()
		p.mu.Unlock()
		return resume, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.paused = false
		p.mu.Unlock()
		return nil, ctx.Err()
	}

	<-req.ack
	return p.resumer(func() { close(req.resume) }), nil
}

// Paused reports whether a pause is in effect.
func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// holdLocked blocks a loop that has not started yet. p.mu must be held.
func (p *Poller) holdLocked() func() {
	hold := make(chan struct{})
	p.hold = hold
	return p.resumer(func() {
		p.mu.Lock()
		p.hold = nil
		p.mu.Unlock()
		close(hold)
	})
}

func (p *Poller) resumer(release func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.paused = false
			p.mu.Unlock()
			release()
		})
	}
}
