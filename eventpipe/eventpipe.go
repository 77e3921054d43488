// Package eventpipe accepts simulation and query commands on a named pipe.
package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/rotaryd-events")
}

// Handler runs a parsed command and returns a reply line.
type Handler func(Command) (string, error)

// EventPipe listens for commands on a named pipe. Replies are logged since
// the pipe is read only.
type EventPipe struct {
	path    string
	handler Handler
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handler Handler, logger *slog.Logger) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	os.Remove(cfg.Path)
	if err := unix.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventPipe{
		path:    cfg.Path,
		handler: handler,
		logger:  logger.With("component", "eventpipe"),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	ep.logger.Info("event pipe listening", "path", ep.path)

	for ep.ctx.Err() == nil {
		// Blocks until a writer connects. Close unblocks it by opening the
		// write end itself.
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			ep.logger.Warn("event pipe open", "err", err)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() && ep.ctx.Err() == nil {
			ep.handleLine(scanner.Text())
		}
		file.Close()
	}
}

func (ep *EventPipe) handleLine(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	cmd, err := ParseLine(line)
	if err != nil {
		ep.logger.Warn("event pipe parse", "line", line, "err", err)
		return
	}
	if ep.handler == nil {
		return
	}
	reply, err := ep.handler(cmd)
	if err != nil {
		ep.logger.Warn("event pipe command", "line", line, "err", err)
		return
	}
	ep.logger.Info("event pipe", "cmd", line, "reply", reply)
}

// Close stops the listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	if f, err := os.OpenFile(ep.path, os.O_WRONLY|unix.O_NONBLOCK, 0); err == nil {
		f.Close()
	}
	return os.Remove(ep.path)
}
