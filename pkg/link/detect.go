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

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// Handshake markers the controllers emit after boot.
const (
	HandshakeMotor = "MOTOR_READY"
	HandshakeServo = "SERVO_READY"
)

// Detection holds the port assignment found by a probe pass. An empty
// role means no port answered with that marker; the system runs degraded
// with that link disconnected.
type Detection struct {
	MotorPort string
	ServoPort string
}

func (d Detection) Complete() bool {
	return d.MotorPort != "" && d.ServoPort != ""
}

// Detector probes candidate ports for the boot handshake to work out
// which physical port belongs to which controller.
type Detector struct {
	factory     PortFactory
	clock       clockwork.Clock
	baud        int
	settle      time.Duration
	readTimeout time.Duration
}

func NewDetector(opts Options) *Detector {
	opts = opts.withDefaults()
	return &Detector{
		factory:     opts.Factory,
		clock:       opts.Clock,
		baud:        opts.BaudRate,
		settle:      opts.Settle,
		readTimeout: opts.ReadTimeout,
	}
}

// Detect probes each candidate in order until both roles are assigned.
// Ports that fail to open or answer with neither marker are skipped;
// a missing role is a degraded state, not an error.
func (d *Detector) Detect(candidates []string) Detection {
	var det Detection

	log.Info().Int("candidates", len(candidates)).Msg("detecting controller ports")

	for _, path := range candidates {
		if det.Complete() {
			break
		}

		marker, ok := d.probe(path)
		if !ok {
			continue
		}

		switch {
		case strings.Contains(marker, HandshakeMotor) && det.MotorPort == "":
			det.MotorPort = path
			log.Info().Str("port", path).Msg("motor controller found")
		case strings.Contains(marker, HandshakeServo) && det.ServoPort == "":
			det.ServoPort = path
			log.Info().Str("port", path).Msg("servo controller found")
		default:
			log.Debug().Str("port", path).Str("marker", marker).Msg("no known handshake on port")
		}
	}

	if det.MotorPort == "" {
		log.Warn().Msg("no motor controller detected")
	}
	if det.ServoPort == "" {
		log.Warn().Msg("no servo controller detected")
	}

	return det
}

// probe opens a port briefly, waits out the boot reset and reads whatever
// handshake the device sent.
func (d *Detector) probe(path string) (string, bool) {
	port, err := d.factory(path, &serial.Mode{
		BaudRate: d.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		log.Debug().Err(err).Str("port", path).Msg("failed to open port for detection")
		return "", false
	}
	defer func() {
		if closeErr := port.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Str("port", path).Msg("failed to close port after detection")
		}
	}()

	if err := port.SetReadTimeout(d.readTimeout); err != nil {
		log.Debug().Err(err).Str("port", path).Msg("failed to set read timeout for detection")
		return "", false
	}

	if d.settle > 0 {
		d.clock.Sleep(d.settle)
	}

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("port", path).Msg("no handshake from port")
		return "", false
	}
	if n == 0 {
		return "", false
	}

	return strings.TrimSpace(string(buf[:n])), true
}
