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
	"context"
	"time"

	"github.com/RoverlinkProject/roverlink-core/pkg/helpers/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Supervisor repairs dead links in the background. Each link gets a
// bounded number of reconnect attempts at a fixed interval; once the
// budget is spent the link is abandoned until process restart rather
// than retried forever.
type Supervisor struct {
	clock     clockwork.Clock
	exhausted map[string]bool
	links     []*Link
	interval  time.Duration
	maxTries  int
	mu        syncutil.Mutex
}

func NewSupervisor(links []*Link, interval time.Duration, maxTries int, clock clockwork.Clock) *Supervisor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Supervisor{
		links:     links,
		interval:  interval,
		maxTries:  maxTries,
		clock:     clock,
		exhausted: make(map[string]bool),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", s.interval).Int("max_tries", s.maxTries).
		Msg("reconnect supervisor started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("reconnect supervisor stopped")
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}

// Sweep makes one reconnect pass over all supervised links.
func (s *Supervisor) Sweep() {
	for _, l := range s.links {
		s.check(l)
	}
}

func (s *Supervisor) check(l *Link) {
	if l.Connected() {
		return
	}

	path := l.Path()
	if path == "" {
		// never detected, nothing to retry
		return
	}

	if l.Attempts() >= s.maxTries {
		s.mu.Lock()
		first := !s.exhausted[l.Name()]
		s.exhausted[l.Name()] = true
		s.mu.Unlock()
		if first {
			log.Error().Str("link", l.Name()).Int("attempts", l.Attempts()).
				Msg("reconnect attempts exhausted, abandoning link until restart")
		}
		return
	}

	l.RecordAttempt()
	log.Info().Str("link", l.Name()).Str("port", path).
		Int("attempt", l.Attempts()).Int("max", s.maxTries).
		Msg("attempting reconnect")

	if err := l.Connect(path); err != nil {
		log.Warn().Str("link", l.Name()).Err(err).Msg("reconnect failed")
		return
	}

	s.mu.Lock()
	delete(s.exhausted, l.Name())
	s.mu.Unlock()

	log.Info().Str("link", l.Name()).Str("port", path).Msg("link reconnected")
}
