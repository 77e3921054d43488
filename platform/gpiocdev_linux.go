//go:build linux

package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOCDev uses the Linux GPIO character device. Levels are tracked from the
// edge events so a read never needs a syscall.
type GPIOCDev struct {
	bank
	chip   string
	logger *slog.Logger
	levels atomic.Uint64

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewGPIOCDev opens nothing until a pin is configured.
func NewGPIOCDev(chip string, logger *slog.Logger) (*GPIOCDev, error) {
	return &GPIOCDev{
		chip:   chip,
		logger: logger,
		lines:  map[int]*gpiocdev.Line{},
	}, nil
}

// ConfigureInterruptInput implements hal.Platform.
func (g *GPIOCDev) ConfigureInterruptInput(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.lines[pin]; ok {
		return nil
	}

	line, err := gpiocdev.RequestLine(g.chip, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer("rotaryd"),
		gpiocdev.WithEventHandler(g.handleEvent))
	if err != nil {
		return fmt.Errorf("request %s line %d: %w", g.chip, pin, err)
	}
	v, err := line.Value()
	if err != nil {
		line.Close()
		return fmt.Errorf("read %s line %d: %w", g.chip, pin, err)
	}
	g.setLevel(pin, v != 0)
	g.lines[pin] = line
	g.configure(pin)
	g.logger.Debug("line requested", "chip", g.chip, "line", pin, "level", v)
	return nil
}

func (g *GPIOCDev) handleEvent(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		g.setLevel(evt.Offset, true)
	case gpiocdev.LineEventFallingEdge:
		g.setLevel(evt.Offset, false)
	default:
		return
	}
	g.raise(evt.Offset)
}

func (g *GPIOCDev) setLevel(pin int, high bool) {
	bit := uint64(1) << pin
	for {
		old := g.levels.Load()
		next := old &^ bit
		if high {
			next |= bit
		}
		if g.levels.CompareAndSwap(old, next) {
			return
		}
	}
}

// ReleasePin implements hal.Platform.
func (g *GPIOCDev) ReleasePin(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	g.release(pin)
	g.mu.Lock()
	line, ok := g.lines[pin]
	delete(g.lines, pin)
	g.mu.Unlock()
	if !ok {
		return nil
	}
	if err := line.Close(); err != nil {
		return fmt.Errorf("close %s line %d: %w", g.chip, pin, err)
	}
	return nil
}

// ReadLevels implements hal.Platform.
func (g *GPIOCDev) ReadLevels(mask uint64) uint64 {
	return g.levels.Load() & mask
}

// Close releases every requested line.
func (g *GPIOCDev) Close() error {
	g.mu.Lock()
	pins := make([]int, 0, len(g.lines))
	for pin := range g.lines {
		pins = append(pins, pin)
	}
	g.mu.Unlock()

	var first error
	for _, pin := range pins {
		if err := g.ReleasePin(pin); err != nil && first == nil {
			first = err
		}
	}
	return first
}
