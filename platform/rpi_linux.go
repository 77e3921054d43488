//go:build linux

package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/warthog618/gpio"
)

// rpiMaxPin is the last BCM283x GPIO.
const rpiMaxPin = 53

// RPi drives the BCM283x GPIO block through /dev/gpiomem.
type RPi struct {
	bank
	logger *slog.Logger

	mu   sync.RWMutex
	pins map[int]*gpio.Pin
}

// NewRPi maps the GPIO registers.
func NewRPi(logger *slog.Logger) (*RPi, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &RPi{logger: logger, pins: map[int]*gpio.Pin{}}, nil
}

// ConfigureInterruptInput implements hal.Platform.
func (r *RPi) ConfigureInterruptInput(pin int) error {
	if pin < 0 || pin > rpiMaxPin {
		return fmt.Errorf("pin %d: %w", pin, ErrPinRange)
	}
	r.mu.Lock()
	if _, ok := r.pins[pin]; ok {
		r.mu.Unlock()
		return nil
	}
	p := gpio.NewPin(pin)
	p.Input()
	p.PullUp()
	r.pins[pin] = p
	r.mu.Unlock()

	// The watcher goroutine calls back into ReadLevels, so no lock is held here.
	r.configure(pin)
	if err := p.Watch(gpio.EdgeBoth, func(*gpio.Pin) { r.raise(pin) }); err != nil {
		r.release(pin)
		r.mu.Lock()
		delete(r.pins, pin)
		r.mu.Unlock()
		return fmt.Errorf("watch pin %d: %w", pin, err)
	}
	r.logger.Debug("pin watched", "pin", pin)
	return nil
}

// ReleasePin implements hal.Platform.
func (r *RPi) ReleasePin(pin int) error {
	if pin < 0 || pin > rpiMaxPin {
		return fmt.Errorf("pin %d: %w", pin, ErrPinRange)
	}
	r.release(pin)
	r.mu.Lock()
	p, ok := r.pins[pin]
	delete(r.pins, pin)
	r.mu.Unlock()
	if ok {
		p.Unwatch()
	}
	return nil
}

// ReadLevels implements hal.Platform.
func (r *RPi) ReadLevels(mask uint64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var levels uint64
	for pin, p := range r.pins {
		bit := uint64(1) << pin
		if mask&bit != 0 && p.Read() == gpio.High {
			levels |= bit
		}
	}
	return levels
}

// Close unwatches every pin and unmaps the registers.
func (r *RPi) Close() error {
	r.mu.Lock()
	pins := r.pins
	r.pins = map[int]*gpio.Pin{}
	r.mu.Unlock()
	for pin, p := range pins {
		r.release(pin)
		p.Unwatch()
	}
	return gpio.Close()
}
