package eventpipe

import (
	"fmt"
	"strings"

	"rotaryd/rotary"
)

// Pins is a pin bank commands can drive, such as platform.Sim.
type Pins interface {
	Set(pin int, high bool) error
	Level(pin int) bool
}

// Encoders is the read side of the encoder driver.
type Encoders interface {
	GetPos(id int) (pos int32, pressed bool, ok bool)
	QueueState(id int) ([]rotary.Event, error)
}

// Wiring is the pin assignment of one channel. Press is -1 when absent.
type Wiring struct {
	PhaseA int
	PhaseB int
	Press  int
}

// Executor runs commands against a pin bank and the driver.
type Executor struct {
	pins     Pins
	encoders Encoders
	wiring   map[int]Wiring
}

// NewExecutor returns an Executor. pins may be nil when the platform is real
// hardware, in which case only the query commands work.
func NewExecutor(pins Pins, encoders Encoders, wiring map[int]Wiring) *Executor {
	return &Executor{pins: pins, encoders: encoders, wiring: wiring}
}

// phase levels for each micro position, pins pulled up.
var phaseLevels = [4][2]bool{{true, true}, {true, false}, {false, false}, {false, true}}

// Exec runs cmd and returns a one-line reply.
func (x *Executor) Exec(cmd Command) (string, error) {
	switch cmd.Kind {
	case GetPos:
		pos, pressed, ok := x.encoders.GetPos(cmd.Channel)
		if !ok {
			return "", fmt.Errorf("channel %d: %w", cmd.Channel, rotary.ErrNotOpen)
		}
		state := "released"
		if pressed {
			state = "pressed"
		}
		return fmt.Sprintf("getpos %d %d %s", cmd.Channel, pos, state), nil

	case Queue:
		q, err := x.encoders.QueueState(cmd.Channel)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(q))
		for i, e := range q {
			parts[i] = fmt.Sprintf("%d/%t", e.Position(), e.Pressed())
		}
		return fmt.Sprintf("queue %d [%s]", cmd.Channel, strings.Join(parts, " ")), nil
	}

	if x.pins == nil {
		return "", fmt.Errorf("command needs a simulated platform")
	}

	switch cmd.Kind {
	case Pin:
		return "ok", x.pins.Set(cmd.Pin, cmd.High)

	case Press, Release:
		w, ok := x.wiring[cmd.Channel]
		if !ok || w.Press < 0 {
			return "", fmt.Errorf("channel %d has no press pin", cmd.Channel)
		}
		return "ok", x.pins.Set(w.Press, cmd.Kind == Release)

	case Turn:
		w, ok := x.wiring[cmd.Channel]
		if !ok {
			return "", fmt.Errorf("channel %d not wired", cmd.Channel)
		}
		dir, n := 1, cmd.Steps
		if n < 0 {
			dir, n = -1, -n
		}
		for i := 0; i < n; i++ {
			if err := x.step(w, dir); err != nil {
				return "", err
			}
		}
		return "ok", nil
	}
	return "", fmt.Errorf("unsupported command %d", cmd.Kind)
}

// step moves the phase pins one gray-code position in direction dir.
func (x *Executor) step(w Wiring, dir int) error {
	a, b := x.pins.Level(w.PhaseA), x.pins.Level(w.PhaseB)
	var from int
	for i, lv := range phaseLevels {
		if lv[0] == a && lv[1] == b {
			from = i
		}
	}
	to := phaseLevels[(from+dir+4)%4]
	if to[0] != a {
		return x.pins.Set(w.PhaseA, to[0])
	}
	return x.pins.Set(w.PhaseB, to[1])
}
