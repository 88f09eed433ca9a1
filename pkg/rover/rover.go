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

// Package rover translates high-level vehicle operations into the wire
// commands understood by the two onboard controllers. Motion and speed go
// to the motor controller; servos, distance sweeps and IMU readings go to
// the servo controller. Every operation degrades to a no-op result when
// its controller is offline.
package rover

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/helpers"
	"github.com/RoverlinkProject/roverlink-core/pkg/link"
	"github.com/rs/zerolog/log"
)

// Wire commands. Motion commands are single letters; parameterized
// commands carry their argument immediately after the letter.
const (
	cmdForward  = "F"
	cmdBackward = "B"
	cmdLeft     = "L"
	cmdRight    = "R"
	cmdStop     = "S"
	cmdCenter   = "C"
	cmdDistance = "D"
	cmdScan     = "SCAN"
	cmdIMU      = "I"
	cmdStatus   = "?"

	prefixDistance = "DIST:"
	prefixScan     = "DIST_ALL:"
	prefixIMU      = "IMU:"
	prefixStatus   = "STATUS:"
)

// Distances is one sweep of the ultrasonic sensors, in centimeters.
// A zero reading means the sensor returned nothing usable.
type Distances struct {
	Front float64
	Left  float64
	Right float64
}

// IMUReading is one orientation and acceleration sample. Angles are in
// degrees, acceleration in m/s².
type IMUReading struct {
	Pitch  float64
	Roll   float64
	Yaw    float64
	AccelX float64
	AccelY float64
	AccelZ float64
}

// Rover issues commands and queries over the motor and servo links.
type Rover struct {
	motor *link.Link
	servo *link.Link
	cfg   *config.Instance
}

func New(motor, servo *link.Link, cfg *config.Instance) *Rover {
	return &Rover{motor: motor, servo: servo, cfg: cfg}
}

func (r *Rover) MotorConnected() bool { return r.motor.Connected() }
func (r *Rover) ServoConnected() bool { return r.servo.Connected() }

// SendMotorCommand sends one raw command to the motor controller and
// reports whether it went out on the wire.
func (r *Rover) SendMotorCommand(cmd string) bool {
	return r.sendTo(r.motor, cmd)
}

// SendServoCommand sends one raw command to the servo controller.
func (r *Rover) SendServoCommand(cmd string) bool {
	return r.sendTo(r.servo, cmd)
}

func (r *Rover) sendTo(l *link.Link, cmd string) bool {
	if err := l.Send(cmd); err != nil {
		log.Debug().Str("link", l.Name()).Str("cmd", cmd).Err(err).
			Msg("command not delivered")
		return false
	}
	return true
}

func (r *Rover) Forward() bool  { return r.SendMotorCommand(cmdForward) }
func (r *Rover) Backward() bool { return r.SendMotorCommand(cmdBackward) }
func (r *Rover) Left() bool     { return r.SendMotorCommand(cmdLeft) }
func (r *Rover) Right() bool    { return r.SendMotorCommand(cmdRight) }
func (r *Rover) Stop() bool     { return r.SendMotorCommand(cmdStop) }

// SetSpeed sets the motor PWM duty, clamped to the configured range.
func (r *Rover) SetSpeed(speed int) bool {
	m := r.cfg.Motor()
	speed = helpers.Clamp(speed, m.MinSpeed, m.MaxSpeed)
	return r.SendMotorCommand(fmt.Sprintf("SP%d", speed))
}

// SetServo moves one servo to the given angle, clamped to the configured
// range. The wire format packs the servo index and a zero-padded angle.
func (r *Rover) SetServo(index, angle int) bool {
	s := r.cfg.Servo()
	angle = helpers.Clamp(angle, s.MinAngle, s.MaxAngle)
	return r.SendServoCommand(fmt.Sprintf("S%d%03d", index, angle))
}

// CenterServos returns all servos to their neutral position.
func (r *Rover) CenterServos() bool {
	return r.SendServoCommand(cmdCenter)
}

// ServoPreset recalls a stored servo pose on the servo controller.
func (r *Rover) ServoPreset(preset int) bool {
	return r.SendServoCommand(fmt.Sprintf("P%d", preset))
}

// Distance queries the forward ultrasonic sensor on the motor controller.
// The second return is false when the controller is offline, the query
// times out or the response does not parse.
func (r *Rover) Distance() (float64, bool) {
	resp, ok := r.motor.Query(cmdDistance, prefixDistance, r.cfg.Serial().QueryTimeout())
	if !ok {
		return 0, false
	}

	vals, err := parseFloats(strings.TrimPrefix(resp, prefixDistance), 1)
	if err != nil {
		log.Warn().Str("resp", resp).Err(err).Msg("bad distance response")
		return 0, false
	}
	return vals[0], true
}

// AllDistances sweeps front, left and right distances via the servo
// controller. When the servo controller is unavailable it falls back to
// the motor controller's forward sensor, leaving the sides at zero.
func (r *Rover) AllDistances() (Distances, bool) {
	resp, ok := r.servo.Query(cmdScan, prefixScan, r.cfg.Serial().QueryTimeout())
	if ok {
		vals, err := parseFloats(strings.TrimPrefix(resp, prefixScan), 3)
		if err != nil {
			log.Warn().Str("resp", resp).Err(err).Msg("bad scan response")
			return Distances{}, false
		}
		return Distances{Front: vals[0], Left: vals[1], Right: vals[2]}, true
	}

	front, ok := r.Distance()
	if !ok {
		return Distances{}, false
	}
	return Distances{Front: front}, true
}

// IMU samples orientation and acceleration from the servo controller.
func (r *Rover) IMU() (IMUReading, bool) {
	resp, ok := r.servo.Query(cmdIMU, prefixIMU, r.cfg.Serial().QueryTimeout())
	if !ok {
		return IMUReading{}, false
	}

	vals, err := parseFloats(strings.TrimPrefix(resp, prefixIMU), 6)
	if err != nil {
		log.Warn().Str("resp", resp).Err(err).Msg("bad IMU response")
		return IMUReading{}, false
	}
	return IMUReading{
		Pitch:  vals[0],
		Roll:   vals[1],
		Yaw:    vals[2],
		AccelX: vals[3],
		AccelY: vals[4],
		AccelZ: vals[5],
	}, true
}

// MotorStatus asks the motor controller for its status line.
func (r *Rover) MotorStatus() (string, bool) {
	return r.status(r.motor)
}

// ServoStatus asks the servo controller for its status line.
func (r *Rover) ServoStatus() (string, bool) {
	return r.status(r.servo)
}

func (r *Rover) status(l *link.Link) (string, bool) {
	resp, ok := l.Query(cmdStatus, prefixStatus, r.cfg.Serial().QueryTimeout())
	if !ok {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(resp, prefixStatus)), true
}

// parseFloats splits a comma-separated payload and requires exactly want
// values.
func parseFloats(payload string, want int) ([]float64, error) {
	parts := strings.Split(strings.TrimSpace(payload), ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d values, got %d", want, len(parts))
	}

	vals := make([]float64, 0, want)
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", p, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
