package rotary

import (
	"sort"
	"testing"
	"time"

	"rotaryd/hal"
)

// fakePlatform models a GPIO bank with pull-ups: every pin reads high until set low.
type fakePlatform struct {
	levels     uint64
	configured map[int]bool
	handlers   []fakeHandler
	cleared    uint64

	failConfigure map[int]error
	failRelease   map[int]error
}

type fakeHandler struct {
	mask uint64
	fn   hal.EdgeHandler
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		levels:        ^uint64(0),
		configured:    map[int]bool{},
		failConfigure: map[int]error{},
		failRelease:   map[int]error{},
	}
}

func (p *fakePlatform) ConfigureInterruptInput(pin int) error {
	if err := p.failConfigure[pin]; err != nil {
		return err
	}
	p.configured[pin] = true
	return nil
}

func (p *fakePlatform) ReleasePin(pin int) error {
	if err := p.failRelease[pin]; err != nil {
		return err
	}
	delete(p.configured, pin)
	kept := p.handlers[:0]
	for _, h := range p.handlers {
		h.mask &^= 1 << pin
		if h.mask != 0 {
			kept = append(kept, h)
		}
	}
	p.handlers = kept
	return nil
}

func (p *fakePlatform) ReadLevels(mask uint64) uint64 { return p.levels & mask }
func (p *fakePlatform) ClearPending(mask uint64)      { p.cleared |= mask }

func (p *fakePlatform) RegisterEdgeCallback(mask uint64, fn hal.EdgeHandler) error {
	p.handlers = append(p.handlers, fakeHandler{mask: mask, fn: fn})
	return nil
}

// set drives pin to the given level and raises its edge interrupt.
func (p *fakePlatform) set(pin int, high bool) {
	bit := uint64(1) << pin
	if high {
		p.levels |= bit
	} else {
		p.levels &^= bit
	}
	for _, h := range p.handlers {
		if h.mask&bit != 0 {
			h.fn(bit)
		}
	}
}

type fakeClock struct{ now hal.Micros }

func (c *fakeClock) Now() hal.Micros { return c.now }

type fakeTimer struct {
	clock    *fakeClock
	fn       func()
	armed    bool
	deadline hal.Micros
	delays   []time.Duration
}

func (t *fakeTimer) Arm(d time.Duration) {
	t.armed = true
	t.deadline = t.clock.now.Add(d)
	t.delays = append(t.delays, d)
}

func (t *fakeTimer) Disarm() { t.armed = false }

// fakeSched runs posted work only when the test asks it to.
type fakeSched struct {
	clock  *fakeClock
	tasks  []func()
	posted []bool
	posts  int
	timers []*fakeTimer
}

func (s *fakeSched) Register(fn func()) hal.TaskHandle {
	s.tasks = append(s.tasks, fn)
	s.posted = append(s.posted, false)
	return hal.TaskHandle(len(s.tasks) - 1)
}

func (s *fakeSched) Post(h hal.TaskHandle) bool {
	if s.posted[h] {
		return false
	}
	s.posted[h] = true
	s.posts++
	return true
}

func (s *fakeSched) NewTimer(fn func()) hal.Timer {
	t := &fakeTimer{clock: s.clock, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeSched) run() {
	for h, fn := range s.tasks {
		if s.posted[h] {
			s.posted[h] = false
			fn()
		}
	}
}

type recorded struct {
	g   Gesture
	pos int32
	at  hal.Micros
}

// rig wires a Driver to the fakes. Edges are drained as soon as they happen
// unless manual is set.
type rig struct {
	t      *testing.T
	p      *fakePlatform
	s      *fakeSched
	c      *fakeClock
	d      *Driver
	manual bool
	got    []recorded

	micro map[int]uint32 // per channel, tracks the phase state driven so far
	pinsA map[int]int
	pinsB map[int]int
}

func newRig(t *testing.T) *rig {
	t.Helper()
	c := &fakeClock{}
	r := &rig{
		t:     t,
		p:     newFakePlatform(),
		s:     &fakeSched{clock: c},
		c:     c,
		micro: map[int]uint32{},
		pinsA: map[int]int{},
		pinsB: map[int]int{},
	}
	r.d = New(r.p, r.s, Options{Clock: c})
	return r
}

func (r *rig) setup(id, a, b, press int) {
	r.t.Helper()
	if err := r.d.Setup(id, a, b, press); err != nil {
		r.t.Fatalf("Setup(%d): %v", id, err)
	}
	r.pinsA[id], r.pinsB[id] = a, b
	r.micro[id] = 0
}

func (r *rig) record(id int, mask Gesture) {
	r.t.Helper()
	err := r.d.SetCallback(id, mask, func(g Gesture, pos int32, at hal.Micros) {
		r.got = append(r.got, recorded{g, pos, at})
	})
	if err != nil {
		r.t.Fatalf("SetCallback: %v", err)
	}
}

func ms(n int) hal.Micros { return hal.Micros(n * 1000) }

// advance moves the clock to at, firing due timers in deadline order.
func (r *rig) advance(at hal.Micros) {
	for {
		var due []*fakeTimer
		for _, tm := range r.s.timers {
			if tm.armed && int32(tm.deadline-at) <= 0 {
				due = append(due, tm)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return int32(due[i].deadline-due[j].deadline) < 0 })
		tm := due[0]
		tm.armed = false
		r.c.now = tm.deadline
		tm.fn()
	}
	r.c.now = at
}

func (r *rig) edge(pin int, high bool) {
	r.p.set(pin, high)
	if !r.manual {
		r.s.run()
	}
}

// phase levels for each micro position, pins pulled up.
var phaseLevels = [4][2]bool{{true, true}, {true, false}, {false, false}, {false, true}}

// step drives one legal quadrature transition on channel id, +1 clockwise.
func (r *rig) step(id int, dir int) {
	from := r.micro[id]
	to := uint32(int(from)+dir) & 3
	r.micro[id] = to
	if phaseLevels[from][0] != phaseLevels[to][0] {
		r.edge(r.pinsA[id], phaseLevels[to][0])
	}
	if phaseLevels[from][1] != phaseLevels[to][1] {
		r.edge(r.pinsB[id], phaseLevels[to][1])
	}
}

func (r *rig) gestures(filter Gesture) []recorded {
	var out []recorded
	for _, rec := range r.got {
		if rec.g&filter != 0 {
			out = append(out, rec)
		}
	}
	return out
}
