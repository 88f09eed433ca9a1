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

// Package testutils provides a scriptable serial port for link tests.
package testutils

import (
	"errors"
	"strings"
	"time"

	"github.com/RoverlinkProject/roverlink-core/pkg/helpers/syncutil"
)

// MockSerialPort is a scriptable implementation of the link.SerialPort
// interface. Reads serve queued data or injected errors; writes are
// captured for assertion.
type MockSerialPort struct {
	ReadError  error
	WriteError error
	CloseError error
	TimeoutErr error
	ReadFunc   func(p []byte) (n int, err error)
	WriteFunc  func(p []byte) (n int, err error)
	readData   []byte
	readIndex  int
	written    []byte
	Closed     bool
	mu         syncutil.RWMutex
}

// NewMockSerialPort creates an empty mock port.
func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{}
}

// FeedLine queues one terminated response line for subsequent reads.
func (m *MockSerialPort) FeedLine(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readData = append(m.readData, []byte(line+"\n")...)
}

// FeedBytes queues raw bytes for subsequent reads.
func (m *MockSerialPort) FeedBytes(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readData = append(m.readData, b...)
}

// Read serves queued data, custom read functions or injected errors.
// With no data pending it behaves like a timed-out poll: a short delay
// and a zero-byte result.
func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	m.mu.RLock()
	closed := m.Closed
	readFunc := m.ReadFunc
	readErr := m.ReadError
	m.mu.RUnlock()

	if closed {
		return 0, errors.New("port closed")
	}

	if readFunc != nil {
		return readFunc(p)
	}

	if readErr != nil {
		return 0, readErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readIndex >= len(m.readData) {
		// simulate a read timeout poll
		time.Sleep(time.Millisecond)
		return 0, nil
	}

	n = copy(p, m.readData[m.readIndex:])
	m.readIndex += n
	return n, nil
}

// Write captures outbound bytes, or fails with WriteError when set.
func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	m.mu.RLock()
	closed := m.Closed
	writeFunc := m.WriteFunc
	writeErr := m.WriteError
	m.mu.RUnlock()

	if closed {
		return 0, errors.New("port closed")
	}

	if writeFunc != nil {
		return writeFunc(p)
	}

	if writeErr != nil {
		return 0, writeErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, p...)
	return len(p), nil
}

// Commands returns the complete command lines written so far, without
// terminators.
func (m *MockSerialPort) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw := strings.Split(string(m.written), "\n")
	cmds := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// SetReadTimeout records nothing; it fails only when TimeoutErr is set.
func (m *MockSerialPort) SetReadTimeout(_ time.Duration) error {
	return m.TimeoutErr
}

// Close marks the port closed.
func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	m.Closed = true
	closeError := m.CloseError
	m.mu.Unlock()
	return closeError
}

// IsClosed returns true if the port has been closed (thread-safe).
func (m *MockSerialPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}
