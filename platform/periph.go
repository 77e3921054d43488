package platform

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// periphPoll bounds how long a watcher waits for an edge before checking
// whether it should stop.
const periphPoll = 100 * time.Millisecond

// Periph uses periph.io pin drivers, one edge watcher goroutine per pin.
type Periph struct {
	bank
	logger *slog.Logger

	mu   sync.RWMutex
	pins map[int]*periphPin
}

type periphPin struct {
	io   gpio.PinIO
	stop chan struct{}
	done chan struct{}
}

// NewPeriph loads the periph host drivers.
func NewPeriph(logger *slog.Logger) (*Periph, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	for _, f := range state.Failed {
		logger.Debug("periph driver failed", "driver", f.D.String(), "err", f.Err)
	}
	return &Periph{logger: logger, pins: map[int]*periphPin{}}, nil
}

// ConfigureInterruptInput implements hal.Platform.
func (p *Periph) ConfigureInterruptInput(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pins[pin]; ok {
		return nil
	}

	io := gpioreg.ByName(strconv.Itoa(pin))
	if io == nil {
		return fmt.Errorf("gpio %d: %w", pin, ErrPinRange)
	}
	if err := io.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("gpio %d input: %w", pin, err)
	}
	pp := &periphPin{io: io, stop: make(chan struct{}), done: make(chan struct{})}
	p.pins[pin] = pp
	p.configure(pin)
	go p.watch(pin, pp)
	return nil
}

func (p *Periph) watch(pin int, pp *periphPin) {
	defer close(pp.done)
	for {
		select {
		case <-pp.stop:
			return
		default:
		}
		if pp.io.WaitForEdge(periphPoll) {
			p.raise(pin)
		}
	}
}

// ReleasePin implements hal.Platform.
func (p *Periph) ReleasePin(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	p.release(pin)
	p.mu.Lock()
	pp, ok := p.pins[pin]
	delete(p.pins, pin)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	close(pp.stop)
	<-pp.done
	if err := pp.io.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("gpio %d disable edges: %w", pin, err)
	}
	return nil
}

// ReadLevels implements hal.Platform.
func (p *Periph) ReadLevels(mask uint64) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var levels uint64
	for pin, pp := range p.pins {
		bit := uint64(1) << pin
		if mask&bit != 0 && pp.io.Read() == gpio.High {
			levels |= bit
		}
	}
	return levels
}

// Close stops every watcher.
func (p *Periph) Close() error {
	p.mu.RLock()
	pins := make([]int, 0, len(p.pins))
	for pin := range p.pins {
		pins = append(pins, pin)
	}
	p.mu.RUnlock()

	var first error
	for _, pin := range pins {
		if err := p.ReleasePin(pin); err != nil && first == nil {
			first = err
		}
	}
	return first
}
