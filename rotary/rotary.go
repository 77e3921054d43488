// Package rotary drives quadrature rotary encoders with optional push buttons.
//
// Pin edges are decoded in interrupt context into packed position/press
// states and handed to a single task through a small per-channel ring. The
// task turns them into turn, press and release callbacks and synthesises
// long-press, click and double-click gestures with a single-shot timer.
package rotary

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"rotaryd/hal"
)

// ChannelCount is the number of encoder channels a Driver can hold.
const ChannelCount = 3

// maxPin is the highest pin number representable in a pin mask.
const maxPin = 63

// ErrNotOpen is returned for operations on a channel that is not set up.
const ErrNotOpen Error = "channel_not_open"

// Callback receives a gesture, the encoder position at the time of the
// gesture and its timestamp. Callbacks run on the task goroutine.
type Callback func(g Gesture, pos int32, at hal.Micros)

// Options tune a Driver. The zero value is usable.
type Options struct {
	Clock  hal.Clock
	Logger *slog.Logger
}

// Stats are running counters kept by the interrupt handler.
type Stats struct {
	Interrupts uint32 // edge batches handled
	Pushed     uint32 // states appended to a queue
	Coalesced  uint32 // turns merged into the last slot
	Dropped    uint32 // press/release states overwritten on a full queue
	Desyncs    uint32 // transitions that skipped a phase
	Posts      uint32 // consumer wake-ups requested
}

type counters struct {
	interrupts atomic.Uint32
	pushed     atomic.Uint32
	coalesced  atomic.Uint32
	dropped    atomic.Uint32
	desyncs    atomic.Uint32
}

// Driver owns the channel registry.
type Driver struct {
	platform hal.Platform
	clock    hal.Clock
	sched    hal.Scheduler
	logger   *slog.Logger

	channels [ChannelCount]atomic.Pointer[channel]

	// isrMu is held for the whole edge handler. Taking it elsewhere masks
	// interrupts for the driver.
	isrMu sync.Mutex
	// mu serialises the consumer side: drains, timers, setup and close.
	mu sync.Mutex

	disp dispatcher
	st   counters
}

// New returns a Driver using p for pins and s for the consumer task.
func New(p hal.Platform, s hal.Scheduler, opts Options) *Driver {
	d := &Driver{
		platform: p,
		clock:    opts.Clock,
		sched:    s,
		logger:   opts.Logger,
	}
	if d.clock == nil {
		d.clock = hal.NewSystemClock()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.disp.sched = s
	d.disp.task = s.Register(d.drain)
	return d
}

func validID(id int) bool {
	return id >= 0 && id < ChannelCount
}

func checkPins(phaseA, phaseB, press int) error {
	for _, pin := range []int{phaseA, phaseB} {
		if pin < 0 || pin > maxPin {
			return fmt.Errorf("%w: pin %d out of range", ErrPinUnavailable, pin)
		}
	}
	if press < -1 || press > maxPin {
		return fmt.Errorf("%w: press pin %d out of range", ErrPinUnavailable, press)
	}
	if phaseA == phaseB || press == phaseA || press == phaseB {
		return fmt.Errorf("%w: pins %d/%d/%d overlap", ErrPinUnavailable, phaseA, phaseB, press)
	}
	return nil
}

// Setup configures channel id on the given pins. press is -1 when the encoder
// has no button. An open channel is closed first. On error nothing is left
// configured.
func (d *Driver) Setup(id, phaseA, phaseB, press int) error {
	if !validID(id) {
		return ErrInvalidChannel
	}
	if err := checkPins(phaseA, phaseB, press); err != nil {
		return err
	}

	ch := newChannel(id, phaseA, phaseB, press)

	d.mu.Lock()
	defer d.mu.Unlock()

	var owned uint64
	for i := range d.channels {
		if other := d.channels[i].Load(); i != id && other != nil {
			owned |= other.mask
		}
	}
	if owned&ch.mask != 0 {
		return fmt.Errorf("%w: pins %d/%d/%d in use by another channel", ErrPinUnavailable, phaseA, phaseB, press)
	}

	if d.channels[id].Load() != nil {
		if err := d.closeLocked(id); err != nil {
			return fmt.Errorf("%w: channel %d: %w", ErrAlreadyConfigured, id, err)
		}
	}

	var configured []int
	for _, pin := range ch.pins() {
		if err := d.platform.ConfigureInterruptInput(pin); err != nil {
			d.releasePins(configured)
			return fmt.Errorf("%w: pin %d: %w", ErrPinUnavailable, pin, err)
		}
		configured = append(configured, pin)
	}
	if err := d.platform.RegisterEdgeCallback(ch.mask, d.handleEdges); err != nil {
		d.releasePins(configured)
		return fmt.Errorf("%w: attach interrupt: %w", ErrPinUnavailable, err)
	}
	ch.timer = d.sched.NewTimer(func() { d.timerFired(ch) })
	levels := d.platform.ReadLevels(ch.maskA | ch.maskB)
	ch.base = microPosition(levels&ch.maskA != 0, levels&ch.maskB != 0)

	d.isrMu.Lock()
	d.channels[id].Store(ch)
	d.isrMu.Unlock()

	d.logger.Info("rotary channel open", "channel", id, "phase_a", phaseA, "phase_b", phaseB, "press", press)
	return nil
}

// Close disables the channel's interrupts, drops its queued states and
// releases its callbacks. Closing a channel that is not open is a no-op.
func (d *Driver) Close(id int) error {
	if !validID(id) {
		return ErrInvalidChannel
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked(id)
}

func (d *Driver) closeLocked(id int) error {
	ch := d.channels[id].Load()
	if ch == nil {
		return nil
	}
	var errs []error
	for _, pin := range ch.pins() {
		if err := d.platform.ReleasePin(pin); err != nil {
			errs = append(errs, fmt.Errorf("release pin %d: %w", pin, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	d.isrMu.Lock()
	d.channels[id].Store(nil)
	d.isrMu.Unlock()

	ch.timer.Disarm()
	ch.callbacks = [len(gestureNames)]Callback{}

	d.logger.Info("rotary channel closed", "channel", id)
	return nil
}

func (d *Driver) releasePins(pins []int) {
	for _, pin := range pins {
		if err := d.platform.ReleasePin(pin); err != nil {
			d.logger.Warn("rotary release pin", "pin", pin, "err", err)
		}
	}
}

// SetCallback installs cb in every slot selected by mask. A nil cb clears them.
func (d *Driver) SetCallback(id int, mask Gesture, cb Callback) error {
	if !validID(id) {
		return ErrInvalidChannel
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.channels[id].Load()
	if ch == nil {
		return ErrNotOpen
	}
	for i := range ch.callbacks {
		if mask&(1<<i) != 0 {
			ch.callbacks[i] = cb
		}
	}
	return nil
}

// DequeueNext consumes the oldest queued state of channel id. States taken
// here are not seen by the gesture engine, except the most recent one, which
// the next drain picks up from the last slot.
func (d *Driver) DequeueNext(id int) (Event, bool) {
	if !validID(id) {
		return 0, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.channels[id].Load()
	if ch == nil {
		return 0, false
	}
	e, _, ok := ch.q.dequeue()
	return e, ok
}

// PeekLast returns the most recent state of channel id without consuming it.
func (d *Driver) PeekLast(id int) (Event, bool) {
	if !validID(id) {
		return 0, false
	}
	ch := d.channels[id].Load()
	if ch == nil {
		return 0, false
	}
	e, _ := ch.q.peek()
	return e, true
}

// GetPos returns the current position and press state of channel id.
func (d *Driver) GetPos(id int) (pos int32, pressed bool, ok bool) {
	e, ok := d.PeekLast(id)
	if !ok {
		return 0, false, false
	}
	return e.Position(), e.Pressed(), true
}

// QueueState returns the states queued on channel id and not yet consumed.
func (d *Driver) QueueState(id int) ([]Event, error) {
	if !validID(id) {
		return nil, ErrInvalidChannel
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.channels[id].Load()
	if ch == nil {
		return nil, ErrNotOpen
	}
	return ch.q.pending(), nil
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Interrupts: d.st.interrupts.Load(),
		Pushed:     d.st.pushed.Load(),
		Coalesced:  d.st.coalesced.Load(),
		Dropped:    d.st.dropped.Load(),
		Desyncs:    d.st.desyncs.Load(),
		Posts:      d.disp.posts.Load(),
	}
}

// handleEdges is the interrupt handler registered with the platform.
func (d *Driver) handleEdges(status uint64) {
	d.isrMu.Lock()
	defer d.isrMu.Unlock()

	d.st.interrupts.Add(1)
	now := d.clock.Now()
	for i := range d.channels {
		ch := d.channels[i].Load()
		if ch == nil || status&ch.mask == 0 {
			continue
		}
		d.platform.ClearPending(status & ch.mask)
		if ch.update(d.platform.ReadLevels(ch.mask), now, &d.st) {
			d.disp.notify()
		}
	}
}
