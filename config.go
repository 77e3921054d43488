package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"rotaryd/console"
	"rotaryd/eventpipe"
	"rotaryd/indicator"
	"rotaryd/mqtt"
	"rotaryd/platform"
	"rotaryd/rotary"
	"rotaryd/wshub"
)

// Config is the main configuration structure for rotaryd.
type Config struct {
	ClientID string `yaml:"client_id"`

	Logging LoggingConfig `yaml:"logging"`

	// Pin backend
	Platform platform.Config `yaml:"platform"`

	// Encoder channels
	Channels []ChannelConfig `yaml:"channels"`

	// Gesture sinks
	MQTT      mqtt.Config      `yaml:"mqtt"`
	Indicator indicator.Config `yaml:"indicator"`
	Console   console.Config   `yaml:"console"`
	WebSocket wshub.Config     `yaml:"websocket"`

	EventPipe eventpipe.Config `yaml:"event_pipe"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // error, warn, info, debug
}

// ChannelConfig wires one encoder channel.
type ChannelConfig struct {
	ID     int  `yaml:"id"`
	PhaseA int  `yaml:"phase_a"`
	PhaseB int  `yaml:"phase_b"`
	Press  *int `yaml:"press"` // nil = no button
}

// PressPin returns the button pin or -1.
func (c ChannelConfig) PressPin() int {
	if c.Press == nil {
		return -1
	}
	return *c.Press
}

// LoadConfig reads and validates the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults and checks the channel wiring. Pin conflicts
// between channels are left to the driver.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id missing in config file")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if len(c.Channels) == 0 {
		return errors.New("no channels configured")
	}

	seen := make(map[int]bool)
	for _, ch := range c.Channels {
		if ch.ID < 0 || ch.ID >= rotary.ChannelCount {
			return fmt.Errorf("channel %d: id out of range 0..%d", ch.ID, rotary.ChannelCount-1)
		}
		if seen[ch.ID] {
			return fmt.Errorf("channel %d configured twice", ch.ID)
		}
		seen[ch.ID] = true
	}

	if c.WebSocket.Listen != "" && c.WebSocket.Path == "" {
		c.WebSocket.Path = "/ws"
	}
	return nil
}

// wiring returns the pin assignment of every channel for the command executor.
func (c *Config) wiring() map[int]eventpipe.Wiring {
	w := make(map[int]eventpipe.Wiring, len(c.Channels))
	for _, ch := range c.Channels {
		w[ch.ID] = eventpipe.Wiring{PhaseA: ch.PhaseA, PhaseB: ch.PhaseB, Press: ch.PressPin()}
	}
	return w
}
