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

// Package link manages the serial connections to the rover's two
// microcontrollers. Each Link owns one port: byte I/O, line framing and
// connect state. Queries correlate responses by line prefix; the wire
// protocol has no request IDs, so at most one query may be outstanding
// per link at a time.
package link

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RoverlinkProject/roverlink-core/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// ErrNotConnected is returned by Send and Query when the link is down.
// Callers treat it as a degraded-capability state, not a fault.
var ErrNotConnected = errors.New("link not connected")

const (
	defaultBaudRate    = 115200
	defaultReadTimeout = 100 * time.Millisecond
	defaultQueueSize   = 64
)

// Options configures a Link or Detector.
type Options struct {
	Factory     PortFactory
	Clock       clockwork.Clock
	BaudRate    int
	Settle      time.Duration
	ReadTimeout time.Duration
	QueueSize   int
}

func (o Options) withDefaults() Options {
	if o.Factory == nil {
		o.Factory = DefaultPortFactory
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.BaudRate <= 0 {
		o.BaudRate = defaultBaudRate
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	return o
}

// State is a point-in-time copy of a link's connection state.
type State struct {
	LastError         error
	Port              string
	BaudRate          int
	ReconnectAttempts int
	Connected         bool
}

// Link owns one serial connection to a controller. Connected is strictly
// two-state: either the transport is open and the listener is running, or
// every send fails fast with ErrNotConnected.
type Link struct {
	factory     PortFactory
	clock       clockwork.Clock
	port        SerialPort
	lastErr     error
	inbound     chan string
	name        string
	path        string
	baud        int
	settle      time.Duration
	readTimeout time.Duration
	attempts    int
	connected   bool
	cmdMu       syncutil.Mutex // serializes send+wait sequences
	mu          syncutil.RWMutex
}

// NewLink creates a disconnected link named for its logical device
// (e.g. "motor", "servo").
func NewLink(name string, opts Options) *Link {
	opts = opts.withDefaults()
	return &Link{
		name:        name,
		factory:     opts.Factory,
		clock:       opts.Clock,
		baud:        opts.BaudRate,
		settle:      opts.Settle,
		readTimeout: opts.ReadTimeout,
		inbound:     make(chan string, opts.QueueSize),
	}
}

func (l *Link) Name() string { return l.name }

func (l *Link) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected && l.port != nil
}

func (l *Link) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

func (l *Link) Attempts() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attempts
}

func (l *Link) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// State returns a copy of the link's connection state.
func (l *Link) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return State{
		Port:              l.path,
		BaudRate:          l.baud,
		Connected:         l.connected,
		ReconnectAttempts: l.attempts,
		LastError:         l.lastErr,
	}
}

// RecordAttempt increments the reconnect attempt counter. Called by the
// supervisor before each connection attempt; a successful Connect resets it.
func (l *Link) RecordAttempt() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
}

// Connect opens the serial port at path and starts the listener goroutine.
// The settle wait covers the controller reset that opening the port triggers.
func (l *Link) Connect(path string) error {
	if path == "" {
		return errors.New("no port path")
	}

	if l.Connected() {
		return fmt.Errorf("%s link already connected", l.name)
	}

	port, err := l.factory(path, &serial.Mode{
		BaudRate: l.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		l.recordFailure(path, err)
		return fmt.Errorf("failed to open %s port %s: %w", l.name, path, err)
	}

	if err := port.SetReadTimeout(l.readTimeout); err != nil {
		_ = port.Close()
		l.recordFailure(path, err)
		return fmt.Errorf("failed to set read timeout on %s port: %w", l.name, err)
	}

	if l.settle > 0 {
		l.clock.Sleep(l.settle)
	}

	l.mu.Lock()
	l.port = port
	l.path = path
	l.connected = true
	l.attempts = 0
	l.lastErr = nil
	l.mu.Unlock()

	go l.listen(port)

	log.Info().Str("link", l.name).Str("port", path).Msg("controller connected")

	return nil
}

func (l *Link) recordFailure(path string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.path = path
	l.lastErr = err
}

// Close disconnects the link. The listener goroutine notices the port
// change on its next poll and exits.
func (l *Link) Close() error {
	l.mu.Lock()
	port := l.port
	l.port = nil
	l.connected = false
	l.mu.Unlock()

	if port != nil {
		if err := port.Close(); err != nil {
			return fmt.Errorf("failed to close %s port: %w", l.name, err)
		}
		log.Info().Str("link", l.name).Msg("controller disconnected")
	}
	return nil
}

// Send writes one terminated command line, failing fast when disconnected.
// Any write failure flips the link to disconnected.
func (l *Link) Send(cmd string) error {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()
	return l.send(cmd)
}

func (l *Link) send(cmd string) error {
	l.mu.RLock()
	connected := l.connected
	port := l.port
	l.mu.RUnlock()

	if !connected || port == nil {
		return ErrNotConnected
	}

	if _, err := port.Write([]byte(cmd + "\n")); err != nil {
		l.dropConnection(port, err)
		return fmt.Errorf("write failed on %s link: %w", l.name, err)
	}

	log.Trace().Str("link", l.name).Str("cmd", cmd).Msg("sent command")
	return nil
}

// dropConnection marks the link disconnected if port is still the active
// transport. Safe to call from the listener and the send path concurrently.
func (l *Link) dropConnection(port SerialPort, err error) {
	l.mu.Lock()
	if l.port != port {
		l.mu.Unlock()
		return
	}
	l.port = nil
	l.connected = false
	l.lastErr = err
	l.mu.Unlock()

	_ = port.Close()

	if IsDisconnectionError(err) {
		log.Warn().Str("link", l.name).Err(err).Msg("device disconnected")
	} else {
		log.Error().Str("link", l.name).Err(err).Msg("link I/O error, marking disconnected")
	}
}

// listen frames inbound lines and pushes them onto the bounded queue.
// Reads poll with the configured timeout so the loop can notice a
// disconnect; a read error drops the connection and ends the goroutine.
func (l *Link) listen(port SerialPort) {
	log.Debug().Str("link", l.name).Msg("listener started")

	var lineBuf []byte
	buf := make([]byte, 256)

	for {
		l.mu.RLock()
		alive := l.connected && l.port == port
		l.mu.RUnlock()
		if !alive {
			log.Debug().Str("link", l.name).Msg("listener stopped")
			return
		}

		n, err := port.Read(buf)
		if err != nil {
			l.dropConnection(port, err)
			return
		}

		for i := 0; i < n; i++ {
			switch buf[i] {
			case '\n':
				line := strings.TrimSpace(string(lineBuf))
				lineBuf = lineBuf[:0]
				if line == "" {
					continue
				}
				select {
				case l.inbound <- line:
				default:
					log.Warn().Str("link", l.name).Str("line", line).Msg("inbound queue full, dropping line")
				}
			case '\r':
				// stripped
			default:
				lineBuf = append(lineBuf, buf[i])
			}
		}
	}
}
