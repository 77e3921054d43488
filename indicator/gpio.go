package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"

	"rotaryd/rotary"
)

// leds is the part of the govattu handle used to drive outputs.
type leds interface {
	PinSet(pin uint8)
	PinClear(pin uint8)
}

type ledFuncs struct {
	set, clear func(pin uint8)
}

func (f ledFuncs) PinSet(pin uint8)   { f.set(pin) }
func (f ledFuncs) PinClear(pin uint8) { f.clear(pin) }

// GPIO implements Indicator using discrete GPIO LED pins. The turn LED
// toggles on every detent, the press LED follows the button and the hold LED
// lights on a long press until the next release.
type GPIO struct {
	out      leds
	closeHW  func() error
	turnPin  *uint8
	pressPin *uint8
	holdPin  *uint8
	turnOn   bool
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(turnPin, pressPin, holdPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	for _, pin := range []*uint8{turnPin, pressPin, holdPin} {
		if pin != nil {
			hw.PinMode(*pin, govattu.ALToutput)
		}
	}
	g := newGPIO(ledFuncs{set: hw.PinSet, clear: hw.PinClear}, turnPin, pressPin, holdPin)
	g.closeHW = hw.Close
	return g, nil
}

func newGPIO(out leds, turnPin, pressPin, holdPin *uint8) *GPIO {
	g := &GPIO{out: out, turnPin: turnPin, pressPin: pressPin, holdPin: holdPin}
	g.allOff()
	return g
}

// Ready implements Indicator.Ready.
func (g *GPIO) Ready() {
	g.allOff()
}

// Gesture implements Indicator.Gesture.
func (g *GPIO) Gesture(ev Event) {
	switch ev.Gesture {
	case rotary.Turn:
		g.turnOn = !g.turnOn
		g.set(g.turnPin, g.turnOn)
	case rotary.Press:
		g.set(g.pressPin, true)
	case rotary.Release:
		g.set(g.pressPin, false)
		g.set(g.holdPin, false)
	case rotary.LongPress:
		g.set(g.holdPin, true)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() {
	g.allOff()
	g.set(g.turnPin, true)
	g.set(g.holdPin, true)
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.allOff()
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.allOff()
	if g.closeHW == nil {
		return nil
	}
	return g.closeHW()
}

func (g *GPIO) set(pin *uint8, on bool) {
	if pin == nil {
		return
	}
	if on {
		g.out.PinSet(*pin)
	} else {
		g.out.PinClear(*pin)
	}
}

func (g *GPIO) allOff() {
	g.turnOn = false
	g.set(g.turnPin, false)
	g.set(g.pressPin, false)
	g.set(g.holdPin, false)
}
