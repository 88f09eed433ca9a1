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

// roverlinkd is the rover's onboard daemon. It connects the motor and
// servo controllers over serial, keeps the links alive and optionally
// drives autonomously.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/RoverlinkProject/roverlink-core/pkg/autonomous"
	"github.com/RoverlinkProject/roverlink-core/pkg/config"
	"github.com/RoverlinkProject/roverlink-core/pkg/helpers"
	"github.com/RoverlinkProject/roverlink-core/pkg/link"
	"github.com/RoverlinkProject/roverlink-core/pkg/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, config.AppName)
}

func run() error {
	configDir := flag.String(
		"config",
		defaultConfigDir(),
		"path to config directory",
	)
	drive := flag.String(
		"drive",
		"",
		"start autonomous driving on boot (explore or patrol)",
	)
	console := flag.Bool(
		"console",
		false,
		"also log to stderr",
	)
	debug := flag.Bool(
		"debug",
		false,
		"enable debug logging",
	)
	flag.Parse()

	var mode autonomous.Mode
	switch *drive {
	case "":
		mode = autonomous.ModeIdle
	case "explore":
		mode = autonomous.ModeExplore
	case "patrol":
		mode = autonomous.ModePatrol
	default:
		return fmt.Errorf("unknown drive mode: %s", *drive)
	}

	cfg, err := config.NewConfig(*configDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logDir := cfg.Service().LogDir
	if logDir == "" {
		logDir = *configDir
	}

	var writers []io.Writer
	if *console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if err := helpers.InitLogging(logDir, writers); err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}

	if *debug {
		cfg.SetDebugLogging(true)
	}
	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := service.New(cfg, link.Options{})

	log.Info().Str("config", cfg.Path()).Msg("roverlink starting")

	if err := svc.Start(ctx, mode); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("service error: %w", err)
	}

	log.Info().Msg("roverlink stopped")
	return nil
}
