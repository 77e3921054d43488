// Package hal declares the platform capabilities the encoder driver is built on:
// interrupt-capable pins, a cooperative task scheduler with single-shot timers,
// and a free-running microsecond clock.
package hal

import "time"

// EdgeHandler runs in interrupt context. status holds the pending edge bits
// (bit n = pin n) for the mask it was registered with. It must not block.
type EdgeHandler func(status uint64)

// Platform is the GPIO capability used by the driver.
type Platform interface {
	// ConfigureInterruptInput makes pin an input with pull-up and both-edge
	// interrupts. It fails if the pin is reserved or out of range.
	ConfigureInterruptInput(pin int) error

	// ReleasePin disables interrupts on pin and leaves it as a plain input.
	// Releasing a pin that is not configured is not an error.
	ReleasePin(pin int) error

	// ReadLevels returns the levels of the pins in mask, sampled together.
	// Bit n is set when pin n is high.
	ReadLevels(mask uint64) uint64

	// ClearPending acknowledges the pending edge bits in mask.
	ClearPending(mask uint64)

	// RegisterEdgeCallback arranges for fn to be called whenever a pin in mask
	// sees an edge. ReleasePin removes the pin from every registration; a
	// registration with no pins left is dropped.
	RegisterEdgeCallback(mask uint64, fn EdgeHandler) error
}

// TaskHandle identifies a work item registered with a Scheduler.
type TaskHandle int

// Scheduler runs posted work items one at a time in task context.
type Scheduler interface {
	// Register adds fn as a work item and returns its handle.
	Register(fn func()) TaskHandle

	// Post schedules h to run once. It never blocks and returns false if a
	// post for h is already outstanding.
	Post(h TaskHandle) bool

	// NewTimer returns a disarmed single-shot timer whose expiry runs fn in
	// task context.
	NewTimer(fn func()) Timer
}

// Timer is a single-shot timer.
type Timer interface {
	// Arm (re)starts the timer. A previous arming is cancelled.
	Arm(delay time.Duration)
	// Disarm cancels the timer. After Disarm returns the callback will not run
	// for any earlier arming.
	Disarm()
}

// Micros is a wrapping 32-bit microsecond timestamp. Only differences between
// two timestamps less than ~71 minutes apart are meaningful.
type Micros uint32

// Sub returns the time elapsed from earlier to m.
func (m Micros) Sub(earlier Micros) time.Duration {
	return time.Duration(uint32(m-earlier)) * time.Microsecond
}

// Add returns m advanced by d.
func (m Micros) Add(d time.Duration) Micros {
	return m + Micros(d/time.Microsecond)
}

// Milliseconds returns m truncated to whole milliseconds.
func (m Micros) Milliseconds() uint32 {
	return uint32(m) / 1000
}

// Clock is a free-running microsecond counter.
type Clock interface {
	Now() Micros
}

// SystemClock counts microseconds since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock that reads zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now implements Clock.
func (c *SystemClock) Now() Micros {
	return Micros(time.Since(c.start) / time.Microsecond)
}
