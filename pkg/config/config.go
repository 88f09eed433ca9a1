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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RoverlinkProject/roverlink-core/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const SchemaVersion = 1

// Serial holds link transport settings shared by both controllers.
type Serial struct {
	MotorPort           string `toml:"motor_port"`
	ServoPort           string `toml:"servo_port"`
	BaudRate            int    `toml:"baud_rate"`
	SettleMS            int    `toml:"settle_ms"`
	ReadTimeoutMS       int    `toml:"read_timeout_ms"`
	QueryTimeoutMS      int    `toml:"query_timeout_ms"`
	ReconnectIntervalMS int    `toml:"reconnect_interval_ms"`
	MaxReconnectTries   int    `toml:"max_reconnect_tries"`
}

type Motor struct {
	DefaultSpeed int `toml:"default_speed"`
	SlowSpeed    int `toml:"slow_speed"`
	MinSpeed     int `toml:"min_speed"`
	MaxSpeed     int `toml:"max_speed"`
}

type Servo struct {
	MinAngle    int `toml:"min_angle"`
	MaxAngle    int `toml:"max_angle"`
	CenterAngle int `toml:"center_angle"`
}

// Navigation holds the autonomous driving thresholds and timings.
type Navigation struct {
	ObstacleStopCM   int   `toml:"obstacle_stop_cm"`
	ObstacleWarnCM   int   `toml:"obstacle_warn_cm"`
	ScanIntervalMS   int   `toml:"scan_interval_ms"`
	ReverseMS        int   `toml:"reverse_ms"`
	SettlePauseMS    int   `toml:"settle_pause_ms"`
	SideTurnMS       int   `toml:"side_turn_ms"`
	ExploreTurnMinMS int   `toml:"explore_turn_min_ms"`
	ExploreTurnMaxMS int   `toml:"explore_turn_max_ms"`
	PatrolLegMS      int   `toml:"patrol_leg_ms"`
	PatrolTurnMS     int   `toml:"patrol_turn_ms"`
	RandomSeed       int64 `toml:"random_seed,omitempty"`
}

type Safety struct {
	FlipThresholdDeg float64 `toml:"flip_threshold_deg"`
	CollisionDelta   float64 `toml:"collision_delta"`
}

type Service struct {
	LogDir string `toml:"log_dir,omitempty"`
}

type Values struct {
	Service      Service    `toml:"service,omitempty"`
	Serial       Serial     `toml:"serial"`
	Motor        Motor      `toml:"motor"`
	Servo        Servo      `toml:"servo"`
	Navigation   Navigation `toml:"navigation"`
	Safety       Safety     `toml:"safety"`
	ConfigSchema int        `toml:"config_schema"`
	DebugLogging bool       `toml:"debug_logging"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Serial: Serial{
		BaudRate:            115200,
		SettleMS:            2000,
		ReadTimeoutMS:       100,
		QueryTimeoutMS:      1000,
		ReconnectIntervalMS: 5000,
		MaxReconnectTries:   10,
	},
	Motor: Motor{
		DefaultSpeed: 200,
		SlowSpeed:    120,
		MinSpeed:     50,
		MaxSpeed:     255,
	},
	Servo: Servo{
		MinAngle:    0,
		MaxAngle:    180,
		CenterAngle: 90,
	},
	Navigation: Navigation{
		ObstacleStopCM:   25,
		ObstacleWarnCM:   40,
		ScanIntervalMS:   150,
		ReverseMS:        400,
		SettlePauseMS:    200,
		SideTurnMS:       300,
		ExploreTurnMinMS: 500,
		ExploreTurnMaxMS: 1500,
		PatrolLegMS:      3000,
		PatrolTurnMS:     700,
	},
	Safety: Safety{
		FlipThresholdDeg: 60,
		CollisionDelta:   8,
	},
}

// Instance is a thread-safe view of the loaded configuration.
type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath != "" {
		log.Debug().Msgf("env config path: %s", cfgPath)
	}

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return fmt.Errorf("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	vals := c.defaults
	err = toml.Unmarshal(data, &vals)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	c.vals = vals

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return fmt.Errorf("config path not set")
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(c.cfgPath, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) Serial() Serial {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial
}

func (c *Instance) Motor() Motor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Motor
}

func (c *Instance) Servo() Servo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Servo
}

func (c *Instance) Navigation() Navigation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Navigation
}

func (c *Instance) Safety() Safety {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Safety
}

func (c *Instance) Service() Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = v
}

// Duration helpers keep millisecond fields in one place.

func (s Serial) Settle() time.Duration            { return time.Duration(s.SettleMS) * time.Millisecond }
func (s Serial) ReadTimeout() time.Duration       { return time.Duration(s.ReadTimeoutMS) * time.Millisecond }
func (s Serial) QueryTimeout() time.Duration      { return time.Duration(s.QueryTimeoutMS) * time.Millisecond }
func (s Serial) ReconnectInterval() time.Duration {
	return time.Duration(s.ReconnectIntervalMS) * time.Millisecond
}

func (n Navigation) ScanInterval() time.Duration { return time.Duration(n.ScanIntervalMS) * time.Millisecond }
func (n Navigation) Reverse() time.Duration      { return time.Duration(n.ReverseMS) * time.Millisecond }
func (n Navigation) SettlePause() time.Duration  { return time.Duration(n.SettlePauseMS) * time.Millisecond }
func (n Navigation) SideTurn() time.Duration     { return time.Duration(n.SideTurnMS) * time.Millisecond }
func (n Navigation) ExploreTurnMin() time.Duration {
	return time.Duration(n.ExploreTurnMinMS) * time.Millisecond
}
func (n Navigation) ExploreTurnMax() time.Duration {
	return time.Duration(n.ExploreTurnMaxMS) * time.Millisecond
}
func (n Navigation) PatrolLeg() time.Duration  { return time.Duration(n.PatrolLegMS) * time.Millisecond }
func (n Navigation) PatrolTurn() time.Duration { return time.Duration(n.PatrolTurnMS) * time.Millisecond }
