package rotary

import (
	"sync/atomic"

	"rotaryd/hal"
)

// QueueSize is the number of slots per channel. It must be a power of two.
const QueueSize = 8

// queue is a single-producer, single-consumer ring of encoder states.
//
// The slot before wr always holds the most recent state, even when the ring
// is logically full or empty, so at most QueueSize-1 entries are ever queued.
// Each slot packs the observation time above the Event so that producer
// replacements and consumer reads never tear.
type queue struct {
	slots [QueueSize]atomic.Uint64
	rd    atomic.Uint32 // consumer offset (monotonic)
	wr    atomic.Uint32 // producer offset (monotonic)
}

func packSlot(e Event, at hal.Micros) uint64 {
	return uint64(at)<<32 | uint64(e)
}

func unpackSlot(v uint64) (Event, hal.Micros) {
	return Event(uint32(v)), hal.Micros(v >> 32)
}

// Producer side.

func (q *queue) last() Event {
	e, _ := unpackSlot(q.slots[(q.wr.Load()-1)&(QueueSize-1)].Load())
	return e
}

func (q *queue) prev() Event {
	e, _ := unpackSlot(q.slots[(q.wr.Load()-2)&(QueueSize-1)].Load())
	return e
}

func (q *queue) empty() bool {
	return q.rd.Load() == q.wr.Load()
}

func (q *queue) hasSpace() bool {
	return q.wr.Load()-q.rd.Load() < QueueSize-1
}

func (q *queue) push(e Event, at hal.Micros) {
	wr := q.wr.Load()
	q.slots[wr&(QueueSize-1)].Store(packSlot(e, at))
	q.wr.Store(wr + 1) // release
}

func (q *queue) replace(e Event, at hal.Micros) {
	q.slots[(q.wr.Load()-1)&(QueueSize-1)].Store(packSlot(e, at))
}

// Consumer side.

func (q *queue) dequeue() (Event, hal.Micros, bool) {
	rd := q.rd.Load()
	if rd == q.wr.Load() { // acquire
		return 0, 0, false
	}
	e, at := unpackSlot(q.slots[rd&(QueueSize-1)].Load())
	q.rd.Store(rd + 1)
	return e, at, true
}

// peek returns the most recent state without consuming anything.
func (q *queue) peek() (Event, hal.Micros) {
	return unpackSlot(q.slots[(q.wr.Load()-1)&(QueueSize-1)].Load())
}

// settled returns the most recent state when nothing is queued. ok is false
// if a push raced the check; that push posts its own drain.
func (q *queue) settled() (Event, hal.Micros, bool) {
	wr := q.wr.Load()
	if q.rd.Load() != wr {
		return 0, 0, false
	}
	e, at := unpackSlot(q.slots[(wr-1)&(QueueSize-1)].Load())
	if q.wr.Load() != wr {
		return 0, 0, false
	}
	return e, at, true
}

// pending returns the queued, not yet consumed states, oldest first.
func (q *queue) pending() []Event {
	rd, wr := q.rd.Load(), q.wr.Load()
	out := make([]Event, 0, wr-rd)
	for i := rd; i != wr; i++ {
		e, _ := unpackSlot(q.slots[i&(QueueSize-1)].Load())
		out = append(out, e)
	}
	return out
}
