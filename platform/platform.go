// Package platform provides the interrupt-capable GPIO backends the encoder
// driver runs on.
package platform

import (
	"errors"
	"fmt"
	"log/slog"

	"rotaryd/hal"
)

var (
	// ErrPinRange is returned for pin numbers outside 0..MaxPin.
	ErrPinRange = errors.New("pin out of range")
	// ErrPinReserved is returned for pins the backend will not hand out.
	ErrPinReserved = errors.New("pin reserved")
	// ErrNotSupported is returned when a backend is not built for this OS.
	ErrNotSupported = errors.New("platform not supported on this system")
)

// MaxPin is the highest pin number a backend accepts.
const MaxPin = 63

// Platform is a hal.Platform that holds OS resources.
type Platform interface {
	hal.Platform
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Type     string         `yaml:"type"`     // "gpiocdev", "rpi", "periph", "evdev", "sim"
	Chip     string         `yaml:"chip"`     // gpiocdev chip, e.g. "gpiochip0"
	Device   string         `yaml:"device"`   // evdev input device, e.g. "/dev/input/event0"
	Keys     map[int]uint16 `yaml:"keys"`     // evdev: pin number -> key code
	Reserved []int          `yaml:"reserved"` // pins never handed out
}

// New creates a Platform based on the provided configuration.
func New(cfg Config, logger *slog.Logger) (Platform, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("platform", cfg.Type)

	var (
		p   Platform
		err error
	)
	switch cfg.Type {
	case "gpiocdev", "":
		chip := cfg.Chip
		if chip == "" {
			chip = "gpiochip0"
		}
		p, err = NewGPIOCDev(chip, logger)
	case "rpi":
		p, err = NewRPi(logger)
	case "periph":
		p, err = NewPeriph(logger)
	case "evdev":
		p, err = NewEvdev(cfg.Device, cfg.Keys, logger)
	case "sim":
		p = NewSim()
	default:
		return nil, fmt.Errorf("unknown platform type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.Reserved) == 0 {
		return p, nil
	}
	return &reserved{Platform: p, pins: cfg.Reserved}, nil
}

// reserved refuses to configure a fixed set of pins.
type reserved struct {
	Platform
	pins []int
}

func (r *reserved) ConfigureInterruptInput(pin int) error {
	for _, p := range r.pins {
		if p == pin {
			return fmt.Errorf("pin %d: %w", pin, ErrPinReserved)
		}
	}
	return r.Platform.ConfigureInterruptInput(pin)
}

// AsSim returns the simulated bank behind p, if there is one.
func AsSim(p Platform) (*Sim, bool) {
	if r, ok := p.(*reserved); ok {
		p = r.Platform
	}
	s, ok := p.(*Sim)
	return s, ok
}

func checkPin(pin int) error {
	if pin < 0 || pin > MaxPin {
		return fmt.Errorf("pin %d: %w", pin, ErrPinRange)
	}
	return nil
}
