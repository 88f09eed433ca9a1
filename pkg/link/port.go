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
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialPort is the subset of serial port operations the link layer uses.
// Injected via PortFactory so tests can substitute a mock.
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
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

// IsDisconnectionError reports whether err indicates the device went away,
// as opposed to a configuration or permission problem.
func IsDisconnectionError(err error) bool {
	if err == nil {
		return false
	}

	var portErr serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		case serial.PortBusy, serial.PermissionDenied, serial.InvalidSpeed,
			serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits,
			serial.InvalidTimeoutValue, serial.ErrorEnumeratingPorts, serial.FunctionNotImplemented:
			return false
		default:
			return false
		}
	}

	// OS-level errors that arrive unwrapped
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "device not configured") ||
		strings.Contains(errStr, "input/output error") ||
		strings.Contains(errStr, "no such device") ||
		strings.Contains(errStr, "device not found") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "device disconnected")
}
