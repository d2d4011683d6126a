// ComicSync Core
// Copyright (c) 2025 The ComicSync Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ComicSync Core.
//
// ComicSync Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ComicSync Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ComicSync Core.  If not, see <http://www.gnu.org/licenses/>.

// comicsyncd drives the actuator from a CFS document without the viewer:
// it connects to the device, loads a document and steps pages from stdin.
// Mostly useful for testing hardware and documents.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ComicSyncProject/comicsync-core/pkg/config"
	"github.com/ComicSyncProject/comicsync-core/pkg/helpers"
	"github.com/ComicSyncProject/comicsync-core/pkg/link"
	"github.com/ComicSyncProject/comicsync-core/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config-dir", config.DefaultDir(), "configuration directory")
	port := flag.String("port", "", "serial port (overrides config)")
	baud := flag.Int("baud", 0, "baud rate (overrides config)")
	cfsPath := flag.String("cfs", "", "CFS document to load")
	listPorts := flag.Bool("list-ports", false, "list candidate serial ports and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.NewConfig(*configDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	if err := helpers.InitLogging(*configDir, *debug || cfg.DebugLogging(), console); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}

	lk := link.New(nil)

	if *listPorts {
		ports, err := helpers.GetSerialDeviceList()
		if err != nil {
			return err
		}
		for _, p := range ports {
			status := "unavailable"
			if lk.Probe(p) {
				status = "available"
			}
			fmt.Printf("%s\t%s\n", p, status)
		}
		return nil
	}

	sess := session.New(cfg, lk, nil)

	if err := sess.Connect(*port, *baud); err != nil {
		log.Warn().Err(err).Msg("device not connected, commands will be dropped")
	} else {
		// Center the actuator so the first page change starts from a known
		// position.
		if err := sess.Poke(50); err != nil {
			log.Warn().Err(err).Msg("failed to send initial position")
		}
	}

	if *cfsPath != "" {
		sess.LoadDocument(*cfsPath)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		sess.EmergencyStop()
		_ = sess.Disconnect()
		os.Exit(0)
	}()

	fmt.Println("enter a page id per line (empty line stops, ctrl-d quits):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		sess.NewPage(scanner.Text())
		if params, ok := sess.ActiveParams(); ok {
			log.Info().
				Float64("max", params.Max).
				Float64("min", params.Min).
				Float64("freq", params.Freq).
				Msg("oscillating")
		} else {
			log.Info().Msg("stopped")
		}
	}

	sess.EmergencyStop()
	if err := sess.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
