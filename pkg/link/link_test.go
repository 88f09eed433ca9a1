// Roverlink Core
// Copyright (c) 2026 The Roverlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Roverlink Core.
//
// Roverlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Roverlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Roverlink Core.  If not, see <http://www.gnu.org/licenses/>.

package link

import (
	"testing"
	"time"

	"github.com/RoverlinkProject/roverlink-core/pkg/link/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/goleak"
)

func mockFactory(port *testutils.MockSerialPort) PortFactory {
	return func(_ string, _ *serial.Mode) (SerialPort, error) {
		return port, nil
	}
}

func TestSend_NotConnected(t *testing.T) {
	t.Parallel()

	l := NewLink("motor", Options{})

	err := l.Send("F")
	require.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, l.Connected())
}

func TestConnect_SendWritesTerminatedLine(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	l := NewLink("motor", Options{Factory: mockFactory(mock)})

	require.NoError(t, l.Connect("/dev/ttyUSB0"))
	assert.True(t, l.Connected())
	assert.Equal(t, "/dev/ttyUSB0", l.Path())

	require.NoError(t, l.Send("F"))
	require.NoError(t, l.Send("SP200"))
	assert.Equal(t, []string{"F", "SP200"}, mock.Commands())

	require.NoError(t, l.Close())
	assert.False(t, l.Connected())
	assert.True(t, mock.IsClosed())
}

func TestConnect_AlreadyConnected(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	l := NewLink("motor", Options{Factory: mockFactory(mock)})

	require.NoError(t, l.Connect("/dev/ttyUSB0"))
	defer func() { _ = l.Close() }()

	err := l.Connect("/dev/ttyUSB0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestConnect_OpenErrorRecordsState(t *testing.T) {
	t.Parallel()

	l := NewLink("servo", Options{Factory: func(_ string, _ *serial.Mode) (SerialPort, error) {
		return nil, assert.AnError
	}})

	err := l.Connect("/dev/ttyACM1")
	require.Error(t, err)

	state := l.State()
	assert.False(t, state.Connected)
	assert.Equal(t, "/dev/ttyACM1", state.Port)
	require.Error(t, state.LastError)
}

func TestConnect_SetReadTimeoutError(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	mock.TimeoutErr = assert.AnError

	l := NewLink("motor", Options{Factory: mockFactory(mock)})

	err := l.Connect("/dev/ttyUSB0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read timeout")
	assert.False(t, l.Connected())
	assert.True(t, mock.IsClosed())
}

func TestSend_WriteErrorDropsConnection(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	l := NewLink("motor", Options{Factory: mockFactory(mock)})

	require.NoError(t, l.Connect("/dev/ttyUSB0"))
	mock.WriteError = assert.AnError

	err := l.Send("F")
	require.Error(t, err)

	assert.False(t, l.Connected())
	assert.True(t, mock.IsClosed(), "transport should be closed after write failure")
	require.Error(t, l.LastError())

	// fails fast without touching the transport
	err = l.Send("F")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestListen_ReadErrorDropsConnection(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	mock.ReadError = assert.AnError
	l := NewLink("motor", Options{Factory: mockFactory(mock)})

	require.NoError(t, l.Connect("/dev/ttyUSB0"))

	require.Eventually(t, func() bool {
		return !l.Connected()
	}, time.Second, 5*time.Millisecond, "listener should drop the link on read error")
	assert.True(t, mock.IsClosed())
}

func TestClose_ListenerExits(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := testutils.NewMockSerialPort()
	l := NewLink("motor", Options{Factory: mockFactory(mock)})

	require.NoError(t, l.Connect("/dev/ttyUSB0"))
	require.NoError(t, l.Close())

	// listener notices the closed port on its next poll
	require.Eventually(t, func() bool {
		return mock.IsClosed()
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}

func TestState_Snapshot(t *testing.T) {
	t.Parallel()

	mock := testutils.NewMockSerialPort()
	l := NewLink("servo", Options{Factory: mockFactory(mock), BaudRate: 115200})

	require.NoError(t, l.Connect("/dev/ttyACM0"))
	defer func() { _ = l.Close() }()

	state := l.State()
	assert.True(t, state.Connected)
	assert.Equal(t, "/dev/ttyACM0", state.Port)
	assert.Equal(t, 115200, state.BaudRate)
	assert.Equal(t, 0, state.ReconnectAttempts)
	assert.NoError(t, state.LastError)
}
