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
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Query sends cmd and waits for a response line starting with prefix,
// returning the full line and true, or "" and false on timeout or when
// disconnected.
//
// The command mutex is held across the whole drain+send+wait sequence:
// with no request IDs on the wire, a single outstanding query per link is
// the only way to keep one caller from consuming another's response.
// Stale lines left over from an abandoned query are drained before the
// send; unsolicited lines that arrive during the wait are discarded.
func (l *Link) Query(cmd, prefix string, timeout time.Duration) (string, bool) {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	if !l.Connected() {
		return "", false
	}

	l.drain()

	if err := l.send(cmd); err != nil {
		return "", false
	}

	timer := l.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line := <-l.inbound:
			if strings.HasPrefix(line, prefix) {
				return line, true
			}
			log.Debug().Str("link", l.name).Str("line", line).
				Str("want", prefix).Msg("discarding unsolicited line")
		case <-timer.Chan():
			log.Debug().Str("link", l.name).Str("cmd", cmd).
				Str("want", prefix).Msg("query timed out")
			return "", false
		}
	}
}

func (l *Link) drain() {
	for {
		select {
		case line := <-l.inbound:
			log.Trace().Str("link", l.name).Str("line", line).Msg("drained stale line")
		default:
			return
		}
	}
}
