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

// Package service wires the configured links, detection, reconnect
// supervision and the navigator into one runnable unit. A missing
// controller degrades the service rather than failing startup; the
// reconnect supervisor picks the link up if the device appears later.
package service

import (
	"context"

	"github.com/RoverlinkProject/roverlink-core/pkg/autonomous"
	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/helpers"
	"github.com/RoverlinkProject/roverlink-core/pkg/link"
	"github.com/RoverlinkProject/roverlink-core/pkg/rover"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service owns the links and the navigation loop for one rover.
type Service struct {
	// Candidates enumerates serial ports to probe during detection.
	// Overridable for tests; defaults to the platform device scan.
	Candidates func() ([]string, error)

	cfg        *config.Instance
	opts       link.Options
	motor      *link.Link
	servo      *link.Link
	rover      *rover.Rover
	monitor    *autonomous.Monitor
	navigator  *autonomous.Navigator
	supervisor *link.Supervisor
}

// New builds a stopped service from the loaded configuration. Zero
// fields in opts are filled from the serial config section.
func New(cfg *config.Instance, opts link.Options) *Service {
	serial := cfg.Serial()
	if opts.BaudRate == 0 {
		opts.BaudRate = serial.BaudRate
	}
	if opts.Settle == 0 {
		opts.Settle = serial.Settle()
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = serial.ReadTimeout()
	}

	motor := link.NewLink("motor", opts)
	servo := link.NewLink("servo", opts)
	rov := rover.New(motor, servo, cfg)
	monitor := autonomous.NewMonitor(cfg.Safety())

	return &Service{
		Candidates: helpers.SerialCandidates,
		cfg:        cfg,
		opts:       opts,
		motor:      motor,
		servo:      servo,
		rover:      rov,
		monitor:    monitor,
		navigator:  autonomous.NewNavigator(rov, monitor, autonomous.ConfigFromInstance(cfg)),
		supervisor: link.NewSupervisor(
			[]*link.Link{motor, servo},
			serial.ReconnectInterval(),
			serial.MaxReconnectTries,
			opts.Clock,
		),
	}
}

func (s *Service) Rover() *rover.Rover              { return s.rover }
func (s *Service) Navigator() *autonomous.Navigator { return s.navigator }
func (s *Service) Monitor() *autonomous.Monitor     { return s.monitor }
func (s *Service) MotorLink() *link.Link            { return s.motor }
func (s *Service) ServoLink() *link.Link            { return s.servo }

// Start connects the controllers and runs the reconnect supervisor until
// ctx is cancelled, then shuts everything down. A mode other than idle
// begins autonomous driving once the links are up. Controllers that
// cannot be found leave the service degraded, not failed.
func (s *Service) Start(ctx context.Context, mode autonomous.Mode) error {
	s.connect()

	if mode != autonomous.ModeIdle {
		if !s.navigator.Start(mode) {
			log.Warn().Str("mode", string(mode)).Msg("autonomous start refused")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.supervisor.Run(gctx)
		return nil
	})

	err := g.Wait()
	s.shutdown()
	return err
}

// connect resolves port assignments and opens both links. Configured
// ports win; detection fills in whatever is left unassigned.
func (s *Service) connect() {
	serial := s.cfg.Serial()
	motorPort := serial.MotorPort
	servoPort := serial.ServoPort

	if motorPort == "" || servoPort == "" {
		candidates, err := s.Candidates()
		if err != nil {
			log.Warn().Err(err).Msg("serial port enumeration failed")
		}

		// don't probe ports already assigned by config
		assigned := []string{motorPort, servoPort}
		probeList := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if helpers.Contains(assigned, c) {
				continue
			}
			probeList = append(probeList, c)
		}

		if len(probeList) > 0 {
			log.Info().Strs("candidates", probeList).Msg("probing serial ports")
			det := link.NewDetector(s.opts).Detect(probeList)
			if motorPort == "" {
				motorPort = det.MotorPort
			}
			if servoPort == "" {
				servoPort = det.ServoPort
			}
		}
	}

	s.connectLink(s.motor, motorPort)
	s.connectLink(s.servo, servoPort)
}

func (s *Service) connectLink(l *link.Link, port string) {
	if port == "" {
		log.Warn().Str("link", l.Name()).Msg("controller not found, running degraded")
		return
	}
	if err := l.Connect(port); err != nil {
		log.Warn().Str("link", l.Name()).Err(err).Msg("initial connect failed")
	}
}

func (s *Service) shutdown() {
	log.Info().Msg("shutting down")

	// stops the loop and leaves the motors stopped
	s.navigator.Stop()

	if err := s.motor.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing motor link")
	}
	if err := s.servo.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing servo link")
	}
}
