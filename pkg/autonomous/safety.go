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

package autonomous

import (
	"math"

	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/helpers/syncutil"
	"github.com/RoverlinkProject/roverlink-core/pkg/rover"
)

// Flags is the safety state derived from one IMU sample plus any
// externally reported conditions. Any true flag halts autonomous motion.
type Flags struct {
	Flipped       bool
	Collision     bool
	CriticalPower bool
}

// Any reports whether any safety condition is active.
func (f Flags) Any() bool {
	return f.Flipped || f.Collision || f.CriticalPower
}

// Monitor evaluates IMU samples against the configured safety thresholds.
// Collision detection compares vertical acceleration against the previous
// sample, so a jolt trips it exactly once and steady tilt does not.
type Monitor struct {
	flipThresholdDeg float64
	collisionDelta   float64
	baselineAZ       float64
	hasBaseline      bool
	criticalPower    bool
	mu               syncutil.Mutex
}

func NewMonitor(cfg config.Safety) *Monitor {
	return &Monitor{
		flipThresholdDeg: cfg.FlipThresholdDeg,
		collisionDelta:   cfg.CollisionDelta,
	}
}

// Check evaluates one IMU sample. Thresholds are exclusive: a reading
// exactly at the limit is still safe. The vertical acceleration baseline
// advances on every call.
func (m *Monitor) Check(imu rover.IMUReading) Flags {
	m.mu.Lock()
	defer m.mu.Unlock()

	flags := Flags{
		CriticalPower: m.criticalPower,
	}

	if math.Abs(imu.Pitch) > m.flipThresholdDeg || math.Abs(imu.Roll) > m.flipThresholdDeg {
		flags.Flipped = true
	}

	if m.hasBaseline && math.Abs(imu.AccelZ-m.baselineAZ) > m.collisionDelta {
		flags.Collision = true
	}
	m.baselineAZ = imu.AccelZ
	m.hasBaseline = true

	return flags
}

// SetCriticalPower records an externally reported power condition. While
// set, every Check reports it and motion stays halted.
func (m *Monitor) SetCriticalPower(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criticalPower = v
}

// CriticalPower returns the externally reported power condition.
func (m *Monitor) CriticalPower() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criticalPower
}
