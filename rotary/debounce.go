package rotary

import (
	"time"

	"rotaryd/hal"
)

// DebounceInterval is the quiet time required between accepted press changes.
const DebounceInterval = 10 * time.Millisecond

// debouncer filters contact bounce on the press pin. It is owned by the
// interrupt handler.
type debouncer struct {
	lastChange hal.Micros
	primed     bool
}

// filter returns the press state to record given the raw pressed level and
// the currently recorded state.
func (d *debouncer) filter(pressed, current bool, now hal.Micros) bool {
	if pressed == current {
		return current
	}
	if d.primed && now.Sub(d.lastChange) < DebounceInterval {
		return current
	}
	d.lastChange = now
	d.primed = true
	return pressed
}
