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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CfgFile))
	require.NoError(t, err, "default config should be written to disk")

	assert.Equal(t, 115200, cfg.Serial().BaudRate)
	assert.Equal(t, 10, cfg.Serial().MaxReconnectTries)
	assert.Equal(t, 25, cfg.Navigation().ObstacleStopCM)
	assert.Equal(t, 40, cfg.Navigation().ObstacleWarnCM)
	assert.InDelta(t, 60.0, cfg.Safety().FlipThresholdDeg, 0.001)
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	cfg.SetDebugLogging(true)
	require.NoError(t, cfg.Save())

	cfg2, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.True(t, cfg2.DebugLogging())
	assert.Equal(t, cfg.Serial(), cfg2.Serial())
	assert.Equal(t, cfg.Navigation(), cfg2.Navigation())
}

func TestConfig_UserValuesOverrideDefaults(t *testing.T) {
	dir := t.TempDir()

	content := []byte("[serial]\nmotor_port = \"/dev/ttyUSB3\"\nmax_reconnect_tries = 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), content, 0o600))

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	serial := cfg.Serial()
	assert.Equal(t, "/dev/ttyUSB3", serial.MotorPort)
	assert.Equal(t, 3, serial.MaxReconnectTries)
	// untouched fields keep defaults
	assert.Equal(t, 115200, serial.BaudRate)
}

func TestConfig_EnvOverridesPath(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.toml")
	t.Setenv(CfgEnv, custom)

	cfg, err := NewConfig(filepath.Join(dir, "unused"), BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, custom, cfg.Path())

	_, err = os.Stat(custom)
	require.NoError(t, err)
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	s := BaseDefaults.Serial
	assert.Equal(t, 2*time.Second, s.Settle())
	assert.Equal(t, time.Second, s.QueryTimeout())
	assert.Equal(t, 5*time.Second, s.ReconnectInterval())

	n := BaseDefaults.Navigation
	assert.Equal(t, 150*time.Millisecond, n.ScanInterval())
	assert.Equal(t, 400*time.Millisecond, n.Reverse())
	assert.Equal(t, 3*time.Second, n.PatrolLeg())
	assert.Equal(t, 700*time.Millisecond, n.PatrolTurn())
}
