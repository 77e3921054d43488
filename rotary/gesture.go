package rotary

import (
	"time"

	"rotaryd/hal"
)

// Gesture timing.
const (
	LongPressDelay = 500 * time.Millisecond
	ClickDelay     = 500 * time.Millisecond
	DblClickDelay  = 500 * time.Millisecond

	// TimerResolution is the granularity the gesture timer is armed with.
	TimerResolution = time.Millisecond
)

type gestureState struct {
	lastPos       Event
	lastEventTime hal.Micros

	recentPress   bool
	recentRelease bool
	possibleDbl   bool
	timerArmed    bool
}

type emission struct {
	cb  Callback
	g   Gesture
	pos int32
	at  hal.Micros
}

func fire(out []emission) {
	for _, e := range out {
		e.cb(e.g, e.pos, e.at)
	}
}

// drain is the consumer task. It empties every channel queue, then runs the
// collected callbacks outside the lock so they may call back into the driver.
func (d *Driver) drain() {
	d.disp.begin()

	d.mu.Lock()
	var out []emission
	for i := range d.channels {
		if ch := d.channels[i].Load(); ch != nil {
			out = d.drainChannel(ch, out)
		}
	}
	d.mu.Unlock()

	fire(out)
}

// timerFired runs when a channel's gesture timer expires. ch may have been
// closed or replaced in the meantime.
func (d *Driver) timerFired(ch *channel) {
	d.mu.Lock()
	if d.channels[ch.id].Load() != ch {
		d.mu.Unlock()
		return
	}
	ch.g.timerArmed = false
	// States still queued are older than now and must be seen first.
	out := d.drainChannel(ch, nil)
	d.mu.Unlock()

	fire(out)
}

func (d *Driver) drainChannel(ch *channel, out []emission) []emission {
	for {
		e, at, ok := ch.q.dequeue()
		if !ok {
			break
		}
		out = ch.evaluate(out, at, false)
		out = d.apply(ch, out, e, at)
	}
	// A state replaced into the slot after it was consumed never posts.
	if e, at, ok := ch.q.settled(); ok && e != ch.g.lastPos {
		out = ch.evaluate(out, at, false)
		out = d.apply(ch, out, e, at)
	}
	return ch.evaluate(out, d.clock.Now(), true)
}

func (ch *channel) emit(out []emission, g Gesture, pos int32, at hal.Micros) []emission {
	if cb := ch.callbacks[g.slot()]; cb != nil {
		out = append(out, emission{cb: cb, g: g, pos: pos, at: at})
	}
	return out
}

// apply compares a dequeued state with the last one seen and emits the
// primitive gestures it implies.
func (d *Driver) apply(ch *channel, out []emission, e Event, at hal.Micros) []emission {
	g := &ch.g
	diff := e ^ g.lastPos
	if diff == 0 {
		return out
	}

	if diff&positionMask != 0 {
		if jump := e.Position() - g.lastPos.Position(); jump >= MissedStepOffset/2 {
			d.logger.Warn("rotary missed step", "channel", ch.id, "position", e.Position())
		}
		out = ch.emit(out, Turn, e.Position(), at)
	}

	if diff&pressedBit != 0 {
		if e.Pressed() {
			out = ch.emit(out, Press, e.Position(), at)
			if g.recentRelease && at.Sub(g.lastEventTime) < DblClickDelay {
				g.possibleDbl = true
			}
			g.recentPress = true
			g.recentRelease = false
		} else {
			out = ch.emit(out, Release, e.Position(), at)
			g.recentPress = false
			if g.possibleDbl {
				out = ch.emit(out, DblClick, e.Position(), at)
				g.possibleDbl = false
			} else {
				g.recentRelease = true
			}
		}
		g.lastEventTime = at
	}

	g.lastPos = e
	return out
}

// evaluate fires the timed gestures that are due at now. With arm set it
// leaves the timer armed for the next one.
func (ch *channel) evaluate(out []emission, now hal.Micros, arm bool) []emission {
	g := &ch.g
	if g.timerArmed {
		ch.timer.Disarm()
		g.timerArmed = false
	}

	elapsed := now.Sub(g.lastEventTime)
	wait := time.Duration(-1)

	if g.recentPress {
		if elapsed >= LongPressDelay {
			out = ch.emit(out, LongPress, g.lastPos.Position(), g.lastEventTime.Add(LongPressDelay))
			g.recentPress = false
			g.possibleDbl = false
		} else {
			wait = LongPressDelay - elapsed
		}
	}
	if g.recentRelease {
		if elapsed >= ClickDelay {
			out = ch.emit(out, Click, g.lastPos.Position(), g.lastEventTime.Add(ClickDelay))
			g.recentRelease = false
		} else {
			wait = ClickDelay - elapsed
		}
	}

	if arm && wait >= 0 {
		ch.timer.Arm(wait.Truncate(TimerResolution) + TimerResolution)
		g.timerArmed = true
	}
	return out
}
