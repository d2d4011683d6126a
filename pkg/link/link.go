// ComicSync Core
// Copyright (c) 2025 The ComicSync Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ComicSync Core.
//
// ComicSync Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ComicSync Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ComicSync Core.  If not, see <http://www.gnu.org/licenses/>.

// Package link owns the physical serial connection to the actuator. It
// performs no retries and no framing beyond what callers hand it; retry
// policy belongs to callers.
package link

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// ErrNotConnected is returned by Send when no port is open. It is a normal
// degraded condition, not a fatal one.
var ErrNotConnected = errors.New("serial link not connected")

// ErrNoPort is returned by Connect when no port path is supplied.
var ErrNoPort = errors.New("no serial port specified")

// SerialPort is the subset of serial port operations the link uses
// (for mocking in tests).
type SerialPort interface {
	Write(p []byte) (n int, err error)
	Close() error
}

// PortFactory creates a serial port connection.
type PortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultPortFactory is the default factory that opens real serial ports.
func DefaultPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// Link is the exclusive owner of one serial connection. The single-worker
// invariant upheld by the driver guarantees no concurrent writers; the
// mutex here only protects connection state changes against sends.
type Link struct {
	factory PortFactory
	port    SerialPort
	path    string
	baud    int
	mu      sync.RWMutex
}

// New creates a disconnected link. A nil factory opens real serial ports.
func New(factory PortFactory) *Link {
	if factory == nil {
		factory = DefaultPortFactory
	}
	return &Link{factory: factory}
}

// Connect opens the given port. It is idempotent: an already-connected link
// reports success without touching the existing connection.
func (l *Link) Connect(path string, baudRate int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		return nil
	}
	if path == "" {
		return ErrNoPort
	}

	port, err := l.factory(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", path, err)
	}

	l.port = port
	l.path = path
	l.baud = baudRate
	log.Info().Str("port", path).Int("baud", baudRate).Msg("serial link connected")
	return nil
}

// Disconnect closes the connection. Idempotent if not connected.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil
	}

	err := l.port.Close()
	l.port = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", l.path, err)
	}
	log.Info().Str("port", l.path).Msg("serial link disconnected")
	return nil
}

// Connected reports whether a port is currently open.
func (l *Link) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.port != nil
}

// Port returns the path of the connected port, or empty if disconnected.
func (l *Link) Port() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.port == nil {
		return ""
	}
	return l.path
}

// Send writes one command to the device. Failures are logged and returned,
// never raised as a fatal condition; a disconnected link fails every send.
func (l *Link) Send(data []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.port == nil {
		return ErrNotConnected
	}

	if _, err := l.port.Write(data); err != nil {
		log.Error().Err(err).Str("port", l.path).Msg("failed to write to serial port")
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	return nil
}

// Probe opens and immediately closes a candidate port to test availability.
// Used by the configuration surface to enumerate usable devices.
func (l *Link) Probe(path string) bool {
	port, err := l.factory(path, &serial.Mode{})
	if err != nil {
		return false
	}
	if err := port.Close(); err != nil {
		log.Warn().Err(err).Str("port", path).Msg("failed to close probed port")
	}
	return true
}
