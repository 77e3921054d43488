// Package console is a line oriented serial console. It prints every gesture
// and runs the event pipe command set typed at it.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tarm/serial"

	"rotaryd/eventpipe"
)

// Config holds the serial console settings.
type Config struct {
	Device string `yaml:"device"` // e.g., "/dev/ttyUSB0"; empty disables the console
	Baud   int    `yaml:"baud"`
}

// maxLine bounds a command line; longer input is discarded.
const maxLine = 256

// Console reads commands from and writes gesture lines to a serial port.
type Console struct {
	port    io.ReadWriteCloser
	handler eventpipe.Handler
	logger  *slog.Logger

	mu sync.Mutex // serialises writes
}

// New opens the serial port. Returns nil if no device is configured.
func New(cfg Config, handler eventpipe.Handler, logger *slog.Logger) (*Console, error) {
	if cfg.Device == "" {
		return nil, nil
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Device, err)
	}
	return newConsole(port, handler, logger), nil
}

func newConsole(port io.ReadWriteCloser, handler eventpipe.Handler, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{port: port, handler: handler, logger: logger.With("component", "console")}
}

// Printf writes one line to the port.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.port, format+"\r\n", args...); err != nil {
		c.logger.Debug("console write", "err", err)
	}
}

// Run reads command lines until ctx is done or the port fails.
func (c *Console) Run(ctx context.Context) error {
	buf := make([]byte, 64)
	var line []byte
	for ctx.Err() == nil {
		n, err := c.port.Read(buf)
		if err != nil && err != io.EOF {
			return fmt.Errorf("console read: %w", err)
		}
		if n == 0 {
			if err == io.EOF {
				// timeout on an idle port
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				c.runLine(string(bytes.TrimSpace(line)))
				line = line[:0]
			default:
				if len(line) < maxLine {
					line = append(line, b)
				}
			}
		}
	}
	return ctx.Err()
}

func (c *Console) runLine(line string) {
	if line == "" || line[0] == '#' {
		return
	}
	cmd, err := eventpipe.ParseLine(line)
	if err != nil {
		c.Printf("error: %v", err)
		return
	}
	if c.handler == nil {
		return
	}
	reply, err := c.handler(cmd)
	if err != nil {
		c.Printf("error: %v", err)
		return
	}
	c.Printf("%s", reply)
}

// Close closes the port.
func (c *Console) Close() error {
	return c.port.Close()
}
