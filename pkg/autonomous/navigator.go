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

// Package autonomous drives the rover without an operator. A navigator
// runs one sense-decide-act cycle per scan interval, gated by the safety
// monitor: any active safety flag stops the motors before anything else
// happens that cycle.
package autonomous

import (
	"context"
	"math/rand"
	"time"

	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/helpers/syncutil"
	"github.com/RoverlinkProject/roverlink-core/pkg/rover"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Mode selects the driving behavior.
type Mode string

const (
	ModeIdle    Mode = "IDLE"
	ModeExplore Mode = "EXPLORE"
	ModePatrol  Mode = "PATROL"
)

// Action is the navigator's current activity, for status reporting.
type Action string

const (
	ActionStopped       Action = "STOPPED"
	ActionForward       Action = "FORWARD"
	ActionSlow          Action = "SLOW"
	ActionAvoiding      Action = "AVOIDING"
	ActionReversing     Action = "REVERSING"
	ActionTurning       Action = "TURNING"
	ActionHaltFlipped   Action = "HALT_FLIPPED"
	ActionHaltCollision Action = "HALT_COLLISION"
	ActionHaltPower     Action = "HALT_POWER"
)

// Vehicle is the drive surface the navigator needs. Command methods
// report delivery, not completion; a false return means the motor
// controller is offline.
type Vehicle interface {
	MotorConnected() bool
	Forward() bool
	Backward() bool
	Left() bool
	Right() bool
	Stop() bool
	SetSpeed(speed int) bool
	AllDistances() (rover.Distances, bool)
	IMU() (rover.IMUReading, bool)
}

// Config holds the navigation thresholds and timings.
type Config struct {
	Clock          clockwork.Clock
	StopDistanceCM float64
	WarnDistanceCM float64
	ScanInterval   time.Duration
	ReverseTime    time.Duration
	SettlePause    time.Duration
	SideTurn       time.Duration
	ExploreTurnMin time.Duration
	ExploreTurnMax time.Duration
	PatrolLeg      time.Duration
	PatrolTurn     time.Duration
	DefaultSpeed   int
	SlowSpeed      int
	Seed           int64
}

// ConfigFromInstance maps the loaded configuration onto a navigator
// config.
func ConfigFromInstance(c *config.Instance) Config {
	nav := c.Navigation()
	motor := c.Motor()
	return Config{
		StopDistanceCM: float64(nav.ObstacleStopCM),
		WarnDistanceCM: float64(nav.ObstacleWarnCM),
		ScanInterval:   nav.ScanInterval(),
		ReverseTime:    nav.Reverse(),
		SettlePause:    nav.SettlePause(),
		SideTurn:       nav.SideTurn(),
		ExploreTurnMin: nav.ExploreTurnMin(),
		ExploreTurnMax: nav.ExploreTurnMax(),
		PatrolLeg:      nav.PatrolLeg(),
		PatrolTurn:     nav.PatrolTurn(),
		DefaultSpeed:   motor.DefaultSpeed,
		SlowSpeed:      motor.SlowSpeed,
		Seed:           nav.RandomSeed,
	}
}

// Status is a point-in-time copy of the navigator's state. Distances is
// the most recent sensor sweep the loop obtained; zero values before the
// first poll.
type Status struct {
	Mode      Mode
	Action    Action
	Distances rover.Distances
	Running   bool
}

// Navigator runs the autonomous driving loop. At most one loop runs at a
// time; Start and Stop are safe to call from any goroutine.
type Navigator struct {
	vehicle Vehicle
	monitor *Monitor
	clock   clockwork.Clock
	cfg     Config
	rng     *rand.Rand

	cancel context.CancelFunc
	done   chan struct{}
	mu     syncutil.Mutex // lifecycle

	mode     Mode
	action   Action
	lastDist rover.Distances
	running  bool
	stateMu  syncutil.RWMutex
}

func NewNavigator(vehicle Vehicle, monitor *Monitor, cfg Config) *Navigator {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &Navigator{
		vehicle: vehicle,
		monitor: monitor,
		clock:   clock,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // turn jitter, not crypto
		mode:    ModeIdle,
		action:  ActionStopped,
	}
}

// Start begins autonomous driving in the given mode. It refuses to start
// while already running, in idle mode, or with the motor controller
// offline.
func (n *Navigator) Start(mode Mode) bool {
	if mode != ModeExplore && mode != ModePatrol {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isRunning() {
		log.Warn().Msg("navigator already running")
		return false
	}

	if !n.vehicle.MotorConnected() {
		log.Warn().Msg("cannot start navigation, motor controller offline")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})

	n.stateMu.Lock()
	n.running = true
	n.mode = mode
	n.action = ActionStopped
	n.stateMu.Unlock()

	go n.run(ctx)

	log.Info().Str("mode", string(mode)).Msg("autonomous navigation started")
	return true
}

// Stop halts autonomous driving. It waits for the loop to exit, then
// always issues a motor stop, even if no loop was running.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		n.cancel()
		<-n.done
		n.cancel = nil
		n.done = nil
		log.Info().Msg("autonomous navigation stopped")
	}

	n.stateMu.Lock()
	n.running = false
	n.mode = ModeIdle
	n.action = ActionStopped
	n.stateMu.Unlock()

	n.vehicle.Stop()
}

// Status returns a copy of the navigator's current state.
func (n *Navigator) Status() Status {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return Status{
		Running:   n.running,
		Mode:      n.mode,
		Action:    n.action,
		Distances: n.lastDist,
	}
}

func (n *Navigator) isRunning() bool {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.running
}

func (n *Navigator) setAction(a Action) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.action = a
}

func (n *Navigator) run(ctx context.Context) {
	defer close(n.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if !n.safetyOK() {
			n.vehicle.Stop()
			if !n.pause(ctx, n.cfg.ScanInterval) {
				return
			}
			continue
		}

		n.stateMu.RLock()
		mode := n.mode
		n.stateMu.RUnlock()

		switch mode {
		case ModeExplore:
			n.exploreCycle(ctx)
		case ModePatrol:
			n.patrolCycle(ctx)
		default:
			return
		}

		if !n.pause(ctx, n.cfg.ScanInterval) {
			return
		}
	}
}

// safetyOK samples the IMU and evaluates the safety flags. A missing IMU
// degrades to power-only checking rather than halting the loop.
func (n *Navigator) safetyOK() bool {
	var flags Flags
	if imu, ok := n.vehicle.IMU(); ok {
		flags = n.monitor.Check(imu)
	} else {
		flags = Flags{CriticalPower: n.monitor.CriticalPower()}
	}

	switch {
	case flags.CriticalPower:
		n.setAction(ActionHaltPower)
	case flags.Flipped:
		n.setAction(ActionHaltFlipped)
	case flags.Collision:
		n.setAction(ActionHaltCollision)
	default:
		return true
	}

	log.Warn().
		Bool("flipped", flags.Flipped).
		Bool("collision", flags.Collision).
		Bool("critical_power", flags.CriticalPower).
		Msg("safety halt")
	return false
}

// clear reports whether motion is currently allowed. Used for commands
// issued in the same cycle as the run loop's safety check.
func (n *Navigator) clear(ctx context.Context) bool {
	return ctx.Err() == nil && !n.monitor.CriticalPower()
}

// driveOK re-evaluates the full safety state mid-maneuver. Long motions
// (patrol legs, avoidance) re-check before every further motor command
// rather than trusting the check from the top of the cycle.
func (n *Navigator) driveOK(ctx context.Context) bool {
	return ctx.Err() == nil && n.safetyOK()
}

// snapshot polls the distance sensors and records the reading for status
// reporting.
func (n *Navigator) snapshot() (rover.Distances, bool) {
	dists, ok := n.vehicle.AllDistances()
	if ok {
		n.stateMu.Lock()
		n.lastDist = dists
		n.stateMu.Unlock()
	}
	return dists, ok
}

func (n *Navigator) exploreCycle(ctx context.Context) {
	dists, ok := n.snapshot()
	if !ok {
		n.vehicle.Stop()
		n.setAction(ActionStopped)
		return
	}

	// zero means the sensor gave nothing usable, not zero range
	front := dists.Front
	switch {
	case front > 0 && front < n.cfg.StopDistanceCM:
		n.avoid(ctx, dists)
	case n.sideBlocked(ctx, dists):
	case front > 0 && front < n.cfg.WarnDistanceCM:
		if n.clear(ctx) {
			n.vehicle.SetSpeed(n.cfg.SlowSpeed)
			n.setAction(ActionSlow)
			n.vehicle.Forward()
		}
	default:
		if n.clear(ctx) {
			n.vehicle.SetSpeed(n.cfg.DefaultSpeed)
			n.setAction(ActionForward)
			n.vehicle.Forward()
		}
	}
}

// sideBlocked veers away from a wall hugging either flank. Returns true
// if it handled the cycle.
func (n *Navigator) sideBlocked(ctx context.Context, dists rover.Distances) bool {
	veerRight := dists.Left > 0 && dists.Left < n.cfg.StopDistanceCM
	veerLeft := dists.Right > 0 && dists.Right < n.cfg.StopDistanceCM

	if !veerRight && !veerLeft {
		return false
	}
	if !n.clear(ctx) {
		return true
	}

	n.setAction(ActionTurning)
	if veerRight && !veerLeft {
		n.vehicle.Right()
	} else if veerLeft && !veerRight {
		n.vehicle.Left()
	} else {
		// boxed in on both sides, back out
		n.avoid(ctx, dists)
		return true
	}

	if n.pause(ctx, n.cfg.SideTurn) {
		n.vehicle.Stop()
	}
	return true
}

func (n *Navigator) patrolCycle(ctx context.Context) {
	if !n.clear(ctx) {
		return
	}

	n.vehicle.SetSpeed(n.cfg.DefaultSpeed)
	n.setAction(ActionForward)
	n.vehicle.Forward()

	start := n.clock.Now()
	for n.clock.Since(start) < n.cfg.PatrolLeg {
		if !n.pause(ctx, n.cfg.ScanInterval) {
			return
		}

		// the rover is in motion for the whole leg; a flip or collision
		// mid-leg has to stop it now, not at the next cycle
		if !n.safetyOK() {
			n.vehicle.Stop()
			return
		}

		dists, ok := n.snapshot()
		if !ok {
			continue
		}
		if dists.Front > 0 && dists.Front < n.cfg.StopDistanceCM {
			n.avoid(ctx, dists)
			return
		}
	}

	if !n.driveOK(ctx) {
		n.vehicle.Stop()
		return
	}

	// corner of the patrol rectangle
	n.vehicle.Stop()
	n.setAction(ActionTurning)
	n.vehicle.Right()
	if n.pause(ctx, n.cfg.PatrolTurn) {
		n.vehicle.Stop()
	}
}

// avoid backs away from an obstacle and turns toward the freer side.
// Ties break toward the left.
func (n *Navigator) avoid(ctx context.Context, dists rover.Distances) {
	n.setAction(ActionAvoiding)
	n.vehicle.Stop()
	if !n.pause(ctx, n.cfg.SettlePause) || !n.driveOK(ctx) {
		return
	}

	n.setAction(ActionReversing)
	n.vehicle.Backward()
	if !n.pause(ctx, n.cfg.ReverseTime) {
		return
	}
	n.vehicle.Stop()

	if !n.pause(ctx, n.cfg.SettlePause) || !n.driveOK(ctx) {
		return
	}

	n.setAction(ActionTurning)
	if dists.Right > dists.Left {
		n.vehicle.Right()
	} else {
		n.vehicle.Left()
	}
	if n.pause(ctx, n.turnDuration()) {
		n.vehicle.Stop()
	}
}

// turnDuration picks a randomized turn length so repeated avoidance does
// not loop the rover in place.
func (n *Navigator) turnDuration() time.Duration {
	minDur := n.cfg.ExploreTurnMin
	maxDur := n.cfg.ExploreTurnMax
	if maxDur <= minDur {
		return minDur
	}
	return minDur + time.Duration(n.rng.Int63n(int64(maxDur-minDur)))
}

// pause waits for d or cancellation, whichever comes first.
func (n *Navigator) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := n.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
