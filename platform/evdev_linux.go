//go:build linux

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kenshaw/evdev"
)

// Evdev reads pins exported by the gpio-keys driver as key events. A key
// down reads as a low level, matching a pulled-up switch to ground.
type Evdev struct {
	bank
	logger *slog.Logger
	dev    *evdev.Evdev
	byCode map[uint16]int
	pins   map[int]bool
	levels atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEvdev opens device and starts reading key events. keys maps pin
// numbers to key codes.
func NewEvdev(device string, keys map[int]uint16, logger *slog.Logger) (*Evdev, error) {
	if device == "" {
		return nil, fmt.Errorf("evdev: no device configured")
	}
	byCode := make(map[uint16]int, len(keys))
	pins := make(map[int]bool, len(keys))
	for pin, code := range keys {
		if err := checkPin(pin); err != nil {
			return nil, err
		}
		byCode[code] = pin
		pins[pin] = true
	}

	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}
	logger.Info("opened input device", "device", device, "name", dev.Name())

	ctx, cancel := context.WithCancel(context.Background())
	e := &Evdev{
		logger: logger,
		dev:    dev,
		byCode: byCode,
		pins:   pins,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.levels.Store(^uint64(0))
	go e.poll(ctx)
	return e, nil
}

func (e *Evdev) poll(ctx context.Context) {
	defer close(e.done)
	ch := e.dev.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event == nil {
				e.logger.Warn("input device closed")
				return
			}
			if _, ok := event.Type.(evdev.KeyType); !ok {
				continue
			}
			pin, ok := e.byCode[event.Code]
			if !ok || event.Value > 1 { // 2 is autorepeat
				continue
			}
			bit := uint64(1) << pin
			for {
				old := e.levels.Load()
				next := old | bit
				if event.Value == 1 {
					next = old &^ bit
				}
				if e.levels.CompareAndSwap(old, next) {
					break
				}
			}
			e.raise(pin)
		}
	}
}

// ConfigureInterruptInput implements hal.Platform.
func (e *Evdev) ConfigureInterruptInput(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if !e.pins[pin] {
		return fmt.Errorf("pin %d has no key mapping: %w", pin, ErrPinReserved)
	}
	e.configure(pin)
	return nil
}

// ReleasePin implements hal.Platform.
func (e *Evdev) ReleasePin(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	e.release(pin)
	return nil
}

// ReadLevels implements hal.Platform.
func (e *Evdev) ReadLevels(mask uint64) uint64 {
	return e.levels.Load() & mask
}

// Close stops the reader and closes the device.
func (e *Evdev) Close() error {
	e.cancel()
	<-e.done
	return e.dev.Close()
}
