package platform

import "sync/atomic"

// Sim is an in-memory pin bank. Pins idle high as if pulled up.
type Sim struct {
	bank
	levels atomic.Uint64
}

// NewSim returns a Sim with every pin high.
func NewSim() *Sim {
	s := &Sim{}
	s.levels.Store(^uint64(0))
	return s
}

// ConfigureInterruptInput implements hal.Platform.
func (s *Sim) ConfigureInterruptInput(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	s.configure(pin)
	return nil
}

// ReleasePin implements hal.Platform.
func (s *Sim) ReleasePin(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	s.release(pin)
	return nil
}

// ReadLevels implements hal.Platform.
func (s *Sim) ReadLevels(mask uint64) uint64 {
	return s.levels.Load() & mask
}

// Set drives pin to level and raises an edge if the level changed.
func (s *Sim) Set(pin int, high bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	bit := uint64(1) << pin
	for {
		old := s.levels.Load()
		next := old &^ bit
		if high {
			next |= bit
		}
		if old == next {
			return nil
		}
		if s.levels.CompareAndSwap(old, next) {
			break
		}
	}
	s.raise(pin)
	return nil
}

// Level returns the current level of pin.
func (s *Sim) Level(pin int) bool {
	return s.levels.Load()&(1<<pin) != 0
}

// Close implements Platform.
func (s *Sim) Close() error { return nil }
