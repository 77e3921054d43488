package platform

import (
	"sync"

	"rotaryd/hal"
)

type registration struct {
	mask uint64
	fn   hal.EdgeHandler
}

// bank keeps the pending edge bits and the edge handlers for a backend.
// Backends call raise from whatever goroutine observes the edge.
type bank struct {
	mu         sync.Mutex
	pending    uint64
	configured uint64
	handlers   []registration
}

func (b *bank) configure(pin int) {
	b.mu.Lock()
	b.configured |= 1 << pin
	b.mu.Unlock()
}

// release forgets pin everywhere and drops registrations left with no pins.
func (b *bank) release(pin int) {
	bit := uint64(1) << pin
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configured &^= bit
	b.pending &^= bit
	kept := b.handlers[:0]
	for _, r := range b.handlers {
		r.mask &^= bit
		if r.mask != 0 {
			kept = append(kept, r)
		}
	}
	b.handlers = kept
}

// RegisterEdgeCallback implements hal.Platform.
func (b *bank) RegisterEdgeCallback(mask uint64, fn hal.EdgeHandler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, registration{mask: mask, fn: fn})
	b.mu.Unlock()
	return nil
}

// ClearPending implements hal.Platform.
func (b *bank) ClearPending(mask uint64) {
	b.mu.Lock()
	b.pending &^= mask
	b.mu.Unlock()
}

// raise marks pin pending and runs every handler watching it. Handlers run
// without the bank lock held since they call back into ClearPending.
func (b *bank) raise(pin int) {
	bit := uint64(1) << pin
	b.mu.Lock()
	if b.configured&bit == 0 {
		b.mu.Unlock()
		return
	}
	b.pending |= bit
	var due []registration
	for _, r := range b.handlers {
		if r.mask&bit != 0 {
			due = append(due, r)
		}
	}
	b.mu.Unlock()

	for _, r := range due {
		b.mu.Lock()
		status := b.pending & r.mask
		b.mu.Unlock()
		if status != 0 {
			r.fn(status)
		}
	}
}
