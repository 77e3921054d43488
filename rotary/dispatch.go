package rotary

import (
	"sync/atomic"

	"rotaryd/hal"
)

// dispatcher wakes the consumer task at most once per burst of pushes.
type dispatcher struct {
	sched  hal.Scheduler
	task   hal.TaskHandle
	posted atomic.Bool
	posts  atomic.Uint32
}

// notify is called from interrupt context after a push.
func (d *dispatcher) notify() {
	if !d.posted.CompareAndSwap(false, true) {
		return
	}
	if !d.sched.Post(d.task) {
		// Let the next push try again.
		d.posted.Store(false)
		return
	}
	d.posts.Add(1)
}

// begin is the first thing a drain does. Any push after this point posts again.
func (d *dispatcher) begin() {
	d.posted.Store(false)
}
