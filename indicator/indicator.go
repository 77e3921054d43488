package indicator

import (
	"fmt"

	"rotaryd/video"
)

// Indicator is the interface for gesture feedback implementations (LEDs, neopixels, display).
type Indicator interface {
	// Ready shows the idle, connected state.
	Ready()

	// Gesture shows a single gesture. It is called on the driver task and
	// must not block for long.
	Gesture(ev Event)

	// ConnectionLost shows that the broker connection is down.
	ConnectionLost()

	// Shutdown shows the terminated state.
	Shutdown()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO LED pins (nil = not configured)
	TurnPin  *uint8 `yaml:"turn_pin"`
	PressPin *uint8 `yaml:"press_pin"`
	HoldPin  *uint8 `yaml:"hold_pin"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`

	// Video framebuffer display (true = enabled)
	VideoEnabled bool `yaml:"video_enabled"`
}

// New creates an Indicator based on the provided configuration.
// Returns a Multi indicator if more than one is configured.
func New(cfg Config) (Indicator, error) {
	var indicators []Indicator

	if cfg.TurnPin != nil || cfg.PressPin != nil || cfg.HoldPin != nil {
		gpio, err := NewGPIO(cfg.TurnPin, cfg.PressPin, cfg.HoldPin)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, gpio)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			releaseAll(indicators)
			return nil, err
		}
		indicators = append(indicators, neo)
	}

	if cfg.VideoEnabled {
		if !video.ScreenSupported() {
			releaseAll(indicators)
			return nil, fmt.Errorf("video_enabled: %w", video.ErrScreenNotCompiled)
		}
		v, err := video.New()
		if err != nil {
			releaseAll(indicators)
			return nil, err
		}
		indicators = append(indicators, &Display{v: v})
	}

	switch len(indicators) {
	case 0:
		return &Noop{}, nil
	case 1:
		return indicators[0], nil
	}
	return &Multi{indicators: indicators}, nil
}

func releaseAll(indicators []Indicator) {
	for _, ind := range indicators {
		ind.Release()
	}
}
