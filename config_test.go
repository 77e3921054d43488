package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rotaryd/eventpipe"
	"rotaryd/platform"
)

const sampleConfig = `
client_id: knob1
logging:
  level: debug
platform:
  type: sim
  reserved: [2]
channels:
  - id: 0
    phase_a: 4
    phase_b: 5
    press: 6
  - id: 2
    phase_a: 10
    phase_b: 11
websocket:
  listen: ":8080"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rotaryd.cfg")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientID != "knob1" || cfg.Platform.Type != "sim" || len(cfg.Platform.Reserved) != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Channels) != 2 {
		t.Fatalf("channels = %+v", cfg.Channels)
	}
	if got := cfg.Channels[0].PressPin(); got != 6 {
		t.Fatalf("press pin = %d", got)
	}
	if got := cfg.Channels[1].PressPin(); got != -1 {
		t.Fatalf("missing press pin = %d", got)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Fatalf("websocket path = %q", cfg.WebSocket.Path)
	}

	w := cfg.wiring()
	if w[2] != (eventpipe.Wiring{PhaseA: 10, PhaseB: 11, Press: -1}) {
		t.Fatalf("wiring = %+v", w)
	}
}

func TestValidate(t *testing.T) {
	press := 3
	cases := []struct {
		name string
		cfg  Config
		err  string
	}{
		{"no client id", Config{Channels: []ChannelConfig{{}}}, "client_id"},
		{"no channels", Config{ClientID: "x"}, "no channels"},
		{"bad id", Config{ClientID: "x", Channels: []ChannelConfig{{ID: 3}}}, "out of range"},
		{"duplicate", Config{ClientID: "x", Channels: []ChannelConfig{{ID: 1}, {ID: 1, Press: &press}}}, "twice"},
		{"bad level", Config{ClientID: "x", Logging: LoggingConfig{Level: "loud"}, Channels: []ChannelConfig{{}}}, "invalid log level"},
		{"ok", Config{ClientID: "x", Channels: []ChannelConfig{{ID: 0, PhaseA: 1, PhaseB: 2}}}, ""},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if c.err == "" {
			if err != nil {
				t.Errorf("%s: %v", c.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), c.err) {
			t.Errorf("%s: err = %v, want %q", c.name, err, c.err)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"error":   slog.LevelError,
		"WARNING": slog.LevelWarn,
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
	} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Error("trace accepted")
	}
}

func TestAppOnSimPlatform(t *testing.T) {
	press := 6
	cfg := &Config{
		ClientID: "knob1",
		Platform: platform.Config{Type: "sim"},
		Channels: []ChannelConfig{{ID: 0, PhaseA: 4, PhaseB: 5, Press: &press}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{cfg: cfg, logger: setupLogger(io.Discard, "debug"), ctx: ctx, cancel: cancel}
	if err := app.start(); err != nil {
		t.Fatal(err)
	}
	defer app.shutdown()

	for _, line := range []string{"turn 0 3", "press 0"} {
		cmd, err := eventpipe.ParseLine(line)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := app.exec.Exec(cmd); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	pos, pressed, ok := app.driver.GetPos(0)
	if !ok || pos != 3 || !pressed {
		t.Fatalf("GetPos = %d, %t, %t", pos, pressed, ok)
	}
	if got := app.positions(); len(got) != 1 || got[0].Position != 3 {
		t.Fatalf("positions = %+v", got)
	}
}
