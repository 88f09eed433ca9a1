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
	"testing"

	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/rover"
	"github.com/stretchr/testify/assert"
)

func newTestMonitor() *Monitor {
	return NewMonitor(config.Safety{
		FlipThresholdDeg: 60,
		CollisionDelta:   8,
	})
}

func TestCheck_FlipDetection(t *testing.T) {
	t.Parallel()

	m := newTestMonitor()

	flags := m.Check(rover.IMUReading{Pitch: 61})
	assert.True(t, flags.Flipped)

	flags = m.Check(rover.IMUReading{Roll: -61})
	assert.True(t, flags.Flipped)

	flags = m.Check(rover.IMUReading{Pitch: 30, Roll: -45})
	assert.False(t, flags.Flipped)
}

func TestCheck_FlipThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	m := newTestMonitor()

	flags := m.Check(rover.IMUReading{Pitch: 60, Roll: -60})
	assert.False(t, flags.Flipped, "a reading exactly at the threshold is still safe")
}

func TestCheck_CollisionTripsOnce(t *testing.T) {
	t.Parallel()

	m := newTestMonitor()

	// first sample only establishes the baseline
	flags := m.Check(rover.IMUReading{AccelZ: 9.8})
	assert.False(t, flags.Collision)

	// jolt against the previous sample
	flags = m.Check(rover.IMUReading{AccelZ: 20})
	assert.True(t, flags.Collision)

	// steady at the new level, the baseline has advanced
	flags = m.Check(rover.IMUReading{AccelZ: 20})
	assert.False(t, flags.Collision)
}

func TestCheck_CollisionDeltaIsExclusive(t *testing.T) {
	t.Parallel()

	m := newTestMonitor()

	m.Check(rover.IMUReading{AccelZ: 9.8})
	flags := m.Check(rover.IMUReading{AccelZ: 17.8})
	assert.False(t, flags.Collision)
}

func TestCriticalPower(t *testing.T) {
	t.Parallel()

	m := newTestMonitor()
	assert.False(t, m.CriticalPower())

	m.SetCriticalPower(true)
	assert.True(t, m.CriticalPower())

	flags := m.Check(rover.IMUReading{AccelZ: 9.8})
	assert.True(t, flags.CriticalPower)
	assert.True(t, flags.Any())

	m.SetCriticalPower(false)
	flags = m.Check(rover.IMUReading{AccelZ: 9.8})
	assert.False(t, flags.Any())
}
