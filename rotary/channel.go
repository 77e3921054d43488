package rotary

import "rotaryd/hal"

// channel is one configured encoder.
//
// The pin fields and debouncer belong to the interrupt handler, gesture state,
// callbacks and timer belong to the task. The two sides only meet in q.
type channel struct {
	id     int
	phaseA int
	phaseB int
	press  int // -1 when absent

	base uint32 // micro position the phase pins rested at on setup

	maskA     uint64
	maskB     uint64
	maskPress uint64
	mask      uint64

	q   queue
	deb debouncer

	g         gestureState
	callbacks [len(gestureNames)]Callback
	timer     hal.Timer
}

func newChannel(id, phaseA, phaseB, press int) *channel {
	ch := &channel{
		id:     id,
		phaseA: phaseA,
		phaseB: phaseB,
		press:  press,
		maskA:  1 << phaseA,
		maskB:  1 << phaseB,
	}
	if press >= 0 {
		ch.maskPress = 1 << press
	}
	ch.mask = ch.maskA | ch.maskB | ch.maskPress
	return ch
}

// pins returns the configured pin numbers, phase A first.
func (ch *channel) pins() []int {
	if ch.press < 0 {
		return []int{ch.phaseA, ch.phaseB}
	}
	return []int{ch.phaseA, ch.phaseB, ch.press}
}

// update folds a fresh pin snapshot into the channel state and queues the
// result. It runs in interrupt context and reports whether a slot was pushed.
func (ch *channel) update(levels uint64, now hal.Micros, st *counters) bool {
	last := ch.q.last()

	micro := microPosition(levels&ch.maskA != 0, levels&ch.maskB != 0)
	delta, missed := stepDelta(last, (micro-ch.base)&3)
	if missed {
		st.desyncs.Add(1)
	}
	pressed := last.Pressed()
	if ch.maskPress != 0 {
		pressed = ch.deb.filter(levels&ch.maskPress == 0, pressed, now)
	}

	next := PackEvent(last.Position()+delta, pressed)
	if next == last {
		return false
	}

	edge := (last^next)&pressedBit != 0 || (last^ch.q.prev())&pressedBit != 0
	if (edge || ch.q.empty()) && ch.q.hasSpace() {
		ch.q.push(next, now)
		st.pushed.Add(1)
		return true
	}
	if edge {
		st.dropped.Add(1)
	} else {
		st.coalesced.Add(1)
	}
	ch.q.replace(next, now)
	// The consumer may have taken the slot just before it was overwritten.
	if ch.q.empty() {
		ch.q.push(next, now)
		st.pushed.Add(1)
		return true
	}
	return false
}
