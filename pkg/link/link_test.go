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

package link

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type mockPort struct {
	writes   [][]byte
	writeErr error
	closed   bool
}

func (m *mockPort) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.writes = append(m.writes, buf)
	return len(p), nil
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func mockFactory(port *mockPort, openErr error) (PortFactory, *int) {
	calls := 0
	return func(_ string, _ *serial.Mode) (SerialPort, error) {
		calls++
		if openErr != nil {
			return nil, openErr
		}
		return port, nil
	}, &calls
}

func TestConnectIdempotent(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	factory, calls := mockFactory(port, nil)
	l := New(factory)

	require.NoError(t, l.Connect("/dev/ttyUSB0", 115200))
	require.NoError(t, l.Connect("/dev/ttyUSB0", 115200))
	assert.Equal(t, 1, *calls, "second connect must not reopen the port")
	assert.True(t, l.Connected())
	assert.Equal(t, "/dev/ttyUSB0", l.Port())
}

func TestConnectRequiresPort(t *testing.T) {
	t.Parallel()

	factory, _ := mockFactory(&mockPort{}, nil)
	l := New(factory)

	require.ErrorIs(t, l.Connect("", 115200), ErrNoPort)
	assert.False(t, l.Connected())
}

func TestConnectOpenFailure(t *testing.T) {
	t.Parallel()

	factory, _ := mockFactory(nil, errors.New("port busy"))
	l := New(factory)

	require.Error(t, l.Connect("/dev/ttyUSB0", 115200))
	assert.False(t, l.Connected())
}

func TestDisconnectIdempotent(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	factory, _ := mockFactory(port, nil)
	l := New(factory)

	require.NoError(t, l.Disconnect(), "disconnect before connect is a no-op")

	require.NoError(t, l.Connect("/dev/ttyUSB0", 115200))
	require.NoError(t, l.Disconnect())
	assert.True(t, port.closed)
	require.NoError(t, l.Disconnect())
	assert.False(t, l.Connected())
	assert.Empty(t, l.Port())
}

func TestSendRequiresConnection(t *testing.T) {
	t.Parallel()

	factory, _ := mockFactory(&mockPort{}, nil)
	l := New(factory)

	require.ErrorIs(t, l.Send([]byte("DSTOP\n")), ErrNotConnected)
}

func TestSendPassesThrough(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	factory, _ := mockFactory(port, nil)
	l := New(factory)
	require.NoError(t, l.Connect("/dev/ttyUSB0", 115200))

	require.NoError(t, l.Send([]byte("L05000\n")))
	require.Len(t, port.writes, 1)
	assert.Equal(t, []byte("L05000\n"), port.writes[0])
}

func TestSendReportsWriteFailure(t *testing.T) {
	t.Parallel()

	port := &mockPort{writeErr: errors.New("device unplugged")}
	factory, _ := mockFactory(port, nil)
	l := New(factory)
	require.NoError(t, l.Connect("/dev/ttyUSB0", 115200))

	err := l.Send([]byte("L05000\n"))
	require.Error(t, err)
	assert.True(t, l.Connected(), "a transport error does not change connection state")
}

func TestProbe(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	okFactory, _ := mockFactory(port, nil)
	assert.True(t, New(okFactory).Probe("/dev/ttyUSB0"))
	assert.True(t, port.closed, "probe closes the port it opened")

	badFactory, _ := mockFactory(nil, errors.New("missing"))
	assert.False(t, New(badFactory).Probe("/dev/ttyUSB0"))
}
