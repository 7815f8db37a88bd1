// internal/writer/status_writer.go
package writer

import (
	"sort"
	"sync"
)

// Board is a StatusSink that keeps the latest state per address for display.
// Safe for concurrent use.
type Board struct {
	mu     sync.RWMutex
	states map[uint8]State
}

func NewBoard() *Board {
	return &Board{states: make(map[uint8]State)}
}

func (b *Board) SetState(addr uint8, st State) {
	b.mu.Lock()
	b.states[addr] = st
	b.mu.Unlock()
}

// State returns the last state seen for addr, or StatePending if none.
func (b *Board) State(addr uint8) State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.states[addr]
}

// Text is the display string for addr.
func (b *Board) Text(addr uint8) string {
	return b.State(addr).String()
}

// Addresses lists known addresses in ascending order.
func (b *Board) Addresses() []uint8 {
	b.mu.RLock()
	out := make([]uint8, 0, len(b.states))
	for a := range b.states {
		out = append(out, a)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset forgets all states.
func (b *Board) Reset() {
	b.mu.Lock()
	b.states = make(map[uint8]State)
	b.mu.Unlock()
}
