//go:build !linux

package platform

import "log/slog"

// NewGPIOCDev is only available on Linux.
func NewGPIOCDev(string, *slog.Logger) (Platform, error) { return nil, ErrNotSupported }

// NewRPi is only available on Linux.
func NewRPi(*slog.Logger) (Platform, error) { return nil, ErrNotSupported }

// NewEvdev is only available on Linux.
func NewEvdev(string, map[int]uint16, *slog.Logger) (Platform, error) { return nil, ErrNotSupported }
