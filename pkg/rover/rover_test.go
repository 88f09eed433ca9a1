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

package rover

import (
	"testing"

	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/link"
	"github.com/RoverlinkProject/roverlink-core/pkg/link/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func testConfig(t *testing.T) *config.Instance {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

func connectedLink(t *testing.T, name string, mock *testutils.MockSerialPort) *link.Link {
	t.Helper()
	l := link.NewLink(name, link.Options{
		Factory: func(_ string, _ *serial.Mode) (link.SerialPort, error) {
			return mock, nil
		},
	})
	require.NoError(t, l.Connect("/dev/tty-test"))
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// respondWith wires a canned response line to one outbound command.
func respondWith(mock *testutils.MockSerialPort, cmd, response string) {
	mock.WriteFunc = func(p []byte) (int, error) {
		if string(p) == cmd+"\n" {
			mock.FeedLine(response)
		}
		return len(p), nil
	}
}

func newTestRover(t *testing.T) (*Rover, *testutils.MockSerialPort, *testutils.MockSerialPort) {
	t.Helper()
	motorMock := testutils.NewMockSerialPort()
	servoMock := testutils.NewMockSerialPort()
	motor := connectedLink(t, "motor", motorMock)
	servo := connectedLink(t, "servo", servoMock)
	return New(motor, servo, testConfig(t)), motorMock, servoMock
}

func TestMotionCommands(t *testing.T) {
	t.Parallel()

	r, motorMock, _ := newTestRover(t)

	assert.True(t, r.Forward())
	assert.True(t, r.Backward())
	assert.True(t, r.Left())
	assert.True(t, r.Right())
	assert.True(t, r.Stop())

	assert.Equal(t, []string{"F", "B", "L", "R", "S"}, motorMock.Commands())
}

func TestSetSpeed_ClampsToConfiguredRange(t *testing.T) {
	t.Parallel()

	r, motorMock, _ := newTestRover(t)

	assert.True(t, r.SetSpeed(200))
	assert.True(t, r.SetSpeed(500))
	assert.True(t, r.SetSpeed(10))

	assert.Equal(t, []string{"SP200", "SP255", "SP50"}, motorMock.Commands())
}

func TestSetServo_FormatsAndClamps(t *testing.T) {
	t.Parallel()

	r, _, servoMock := newTestRover(t)

	assert.True(t, r.SetServo(1, 45))
	assert.True(t, r.SetServo(0, 300))
	assert.True(t, r.SetServo(2, -5))

	assert.Equal(t, []string{"S1045", "S0180", "S2000"}, servoMock.Commands())
}

func TestServoPresetAndCenter(t *testing.T) {
	t.Parallel()

	r, _, servoMock := newTestRover(t)

	assert.True(t, r.CenterServos())
	assert.True(t, r.ServoPreset(2))

	assert.Equal(t, []string{"C", "P2"}, servoMock.Commands())
}

func TestDistance_ParsesResponse(t *testing.T) {
	t.Parallel()

	r, motorMock, _ := newTestRover(t)
	respondWith(motorMock, "D", "DIST:42.5")

	dist, ok := r.Distance()
	require.True(t, ok)
	assert.InDelta(t, 42.5, dist, 0.001)
}

func TestDistance_MalformedResponse(t *testing.T) {
	t.Parallel()

	r, motorMock, _ := newTestRover(t)
	respondWith(motorMock, "D", "DIST:garbage")

	_, ok := r.Distance()
	assert.False(t, ok)
}

func TestAllDistances_Sweep(t *testing.T) {
	t.Parallel()

	r, _, servoMock := newTestRover(t)
	respondWith(servoMock, "SCAN", "DIST_ALL:55,80,60.5")

	dists, ok := r.AllDistances()
	require.True(t, ok)
	assert.InDelta(t, 55, dists.Front, 0.001)
	assert.InDelta(t, 80, dists.Left, 0.001)
	assert.InDelta(t, 60.5, dists.Right, 0.001)
}

func TestAllDistances_FallsBackToMotorFrontSensor(t *testing.T) {
	t.Parallel()

	motorMock := testutils.NewMockSerialPort()
	respondWith(motorMock, "D", "DIST:33")
	motor := connectedLink(t, "motor", motorMock)

	// servo controller never detected
	servo := link.NewLink("servo", link.Options{})

	r := New(motor, servo, testConfig(t))

	dists, ok := r.AllDistances()
	require.True(t, ok)
	assert.InDelta(t, 33, dists.Front, 0.001)
	assert.Zero(t, dists.Left)
	assert.Zero(t, dists.Right)
}

func TestIMU_ParsesSample(t *testing.T) {
	t.Parallel()

	r, _, servoMock := newTestRover(t)
	respondWith(servoMock, "I", "IMU:1.5,-2.0,90.0,0.1,0.2,9.8")

	imu, ok := r.IMU()
	require.True(t, ok)
	assert.InDelta(t, 1.5, imu.Pitch, 0.001)
	assert.InDelta(t, -2.0, imu.Roll, 0.001)
	assert.InDelta(t, 90.0, imu.Yaw, 0.001)
	assert.InDelta(t, 0.1, imu.AccelX, 0.001)
	assert.InDelta(t, 0.2, imu.AccelY, 0.001)
	assert.InDelta(t, 9.8, imu.AccelZ, 0.001)
}

func TestIMU_WrongFieldCount(t *testing.T) {
	t.Parallel()

	r, _, servoMock := newTestRover(t)
	respondWith(servoMock, "I", "IMU:1.5,-2.0,90.0")

	_, ok := r.IMU()
	assert.False(t, ok)
}

func TestStatus_StripsPrefix(t *testing.T) {
	t.Parallel()

	r, motorMock, servoMock := newTestRover(t)
	respondWith(motorMock, "?", "STATUS:MOTOR OK SPEED=200")
	respondWith(servoMock, "?", "STATUS:SERVO OK")

	status, ok := r.MotorStatus()
	require.True(t, ok)
	assert.Equal(t, "MOTOR OK SPEED=200", status)

	status, ok = r.ServoStatus()
	require.True(t, ok)
	assert.Equal(t, "SERVO OK", status)
}

func TestOfflineControllersReportFailure(t *testing.T) {
	t.Parallel()

	motor := link.NewLink("motor", link.Options{})
	servo := link.NewLink("servo", link.Options{})
	r := New(motor, servo, testConfig(t))

	assert.False(t, r.MotorConnected())
	assert.False(t, r.ServoConnected())
	assert.False(t, r.Forward())
	assert.False(t, r.Stop())
	assert.False(t, r.CenterServos())

	_, ok := r.Distance()
	assert.False(t, ok)
	_, ok = r.AllDistances()
	assert.False(t, ok)
	_, ok = r.IMU()
	assert.False(t, ok)
}
