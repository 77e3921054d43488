package indicator

import (
	"bytes"
	"errors"
	"testing"

	"rotaryd/rotary"
	"rotaryd/video"
)

type fakeLEDs struct {
	on map[uint8]bool
}

func (f *fakeLEDs) PinSet(pin uint8)   { f.on[pin] = true }
func (f *fakeLEDs) PinClear(pin uint8) { f.on[pin] = false }

func pin(n uint8) *uint8 { return &n }

func TestGPIOFollowsGestures(t *testing.T) {
	out := &fakeLEDs{on: map[uint8]bool{}}
	g := newGPIO(out, pin(17), pin(27), pin(22))

	g.Gesture(Event{Gesture: rotary.Turn, Position: 1})
	if !out.on[17] {
		t.Fatal("turn LED should toggle on")
	}
	g.Gesture(Event{Gesture: rotary.Turn, Position: 2})
	if out.on[17] {
		t.Fatal("turn LED should toggle off")
	}

	g.Gesture(Event{Gesture: rotary.Press, Pressed: true})
	g.Gesture(Event{Gesture: rotary.LongPress, Pressed: true})
	if !out.on[27] || !out.on[22] {
		t.Fatalf("press/hold LEDs = %v", out.on)
	}
	g.Gesture(Event{Gesture: rotary.Release})
	if out.on[27] || out.on[22] {
		t.Fatalf("release should clear press and hold: %v", out.on)
	}
	if err := g.Release(); err != nil {
		t.Fatal(err)
	}
}

type pipeBuf struct {
	bytes.Buffer
	closed bool
}

func (p *pipeBuf) Close() error { p.closed = true; return nil }

func TestNeopixelDirection(t *testing.T) {
	buf := &pipeBuf{}
	n := newNeopixel(buf)

	n.Gesture(Event{Channel: 1, Gesture: rotary.Turn, Position: 3})
	n.Gesture(Event{Channel: 1, Gesture: rotary.Turn, Position: 2})
	n.Gesture(Event{Channel: 1, Gesture: rotary.DblClick})
	want := neoTurnCW + neoTurnCCW + neoDblClick
	if buf.String() != want {
		t.Fatalf("pipe = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	n.Ready()
	n.Gesture(Event{Gesture: rotary.Release})
	if buf.String() != neoNormalIdle+neoNormalIdle {
		t.Fatalf("pipe = %q", buf.String())
	}
	n.Release()
	if !buf.closed {
		t.Fatal("pipe not closed")
	}
}

type countIndicator struct {
	Noop
	gestures int
	released bool
}

func (c *countIndicator) Gesture(Event)  { c.gestures++ }
func (c *countIndicator) Release() error { c.released = true; return nil }

func TestMultiFansOut(t *testing.T) {
	a, b := &countIndicator{}, &countIndicator{}
	m := NewMulti(a, b)
	m.Gesture(Event{Gesture: rotary.Click})
	m.Release()
	if a.gestures != 1 || b.gestures != 1 || !a.released || !b.released {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
}

func TestNewWithNothingConfigured(t *testing.T) {
	ind, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ind.(*Noop); !ok {
		t.Fatalf("got %T, want *Noop", ind)
	}
}

func TestNewVideoWithoutScreenSupport(t *testing.T) {
	if video.ScreenSupported() {
		t.Skip("built with screen support")
	}
	if _, err := New(Config{VideoEnabled: true}); !errors.Is(err, video.ErrScreenNotCompiled) {
		t.Fatalf("err = %v", err)
	}
}
