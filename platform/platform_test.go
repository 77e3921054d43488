package platform

import (
	"errors"
	"testing"
)

func TestSimRaisesConfiguredPins(t *testing.T) {
	s := NewSim()
	var got []uint64
	if err := s.ConfigureInterruptInput(4); err != nil {
		t.Fatal(err)
	}
	if err := s.ConfigureInterruptInput(5); err != nil {
		t.Fatal(err)
	}
	s.RegisterEdgeCallback(1<<4|1<<5, func(status uint64) {
		got = append(got, status)
		s.ClearPending(status)
	})

	s.Set(4, false)
	s.Set(4, false) // no change, no edge
	s.Set(6, false) // not configured
	s.Set(5, false)

	if len(got) != 2 || got[0] != 1<<4 || got[1] != 1<<5 {
		t.Fatalf("statuses = %b", got)
	}
	if lv := s.ReadLevels(1<<4 | 1<<5 | 1<<6); lv != 0 {
		t.Fatalf("levels = %b, want 0", lv)
	}
	if s.Level(7) != true {
		t.Fatal("idle pin should read high")
	}
}

func TestBankReleaseDropsEmptyRegistrations(t *testing.T) {
	s := NewSim()
	calls := 0
	for _, pin := range []int{1, 2} {
		if err := s.ConfigureInterruptInput(pin); err != nil {
			t.Fatal(err)
		}
	}
	s.RegisterEdgeCallback(1<<1|1<<2, func(status uint64) {
		calls++
		s.ClearPending(status)
	})

	s.ReleasePin(1)
	s.Set(1, false)
	if calls != 0 {
		t.Fatal("released pin raised an edge")
	}
	s.Set(2, false)
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}

	s.ReleasePin(2)
	if len(s.handlers) != 0 {
		t.Fatalf("handlers = %d after releasing every pin", len(s.handlers))
	}
}

func TestBankStatusIsPerRegistration(t *testing.T) {
	s := NewSim()
	s.ConfigureInterruptInput(1)
	s.ConfigureInterruptInput(9)
	var a, b []uint64
	s.RegisterEdgeCallback(1<<1, func(st uint64) { a = append(a, st) })
	s.RegisterEdgeCallback(1<<9, func(st uint64) { b = append(b, st) })

	s.Set(9, false)
	s.Set(1, false)
	if len(a) != 1 || a[0] != 1<<1 {
		t.Fatalf("a = %b", a)
	}
	// The first handler never cleared pin 1, the second only sees its own mask.
	if len(b) != 1 || b[0] != 1<<9 {
		t.Fatalf("b = %b", b)
	}
}

func TestSimPinRange(t *testing.T) {
	s := NewSim()
	for _, pin := range []int{-1, MaxPin + 1} {
		if err := s.ConfigureInterruptInput(pin); !errors.Is(err, ErrPinRange) {
			t.Errorf("pin %d: %v", pin, err)
		}
	}
}

func TestNewReservedPins(t *testing.T) {
	p, err := New(Config{Type: "sim", Reserved: []int{2}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ConfigureInterruptInput(2); !errors.Is(err, ErrPinReserved) {
		t.Fatalf("reserved pin: %v", err)
	}
	if err := p.ConfigureInterruptInput(3); err != nil {
		t.Fatalf("free pin: %v", err)
	}
	if _, ok := AsSim(p); !ok {
		t.Fatal("AsSim did not unwrap reserved sim")
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(Config{Type: "bogus"}, nil); err == nil {
		t.Fatal("expected error")
	}
}
