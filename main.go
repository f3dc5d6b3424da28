// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Radarstat - R60AFD1 Fall Detection Radar Bridge
//
// A CLI tool for decoding the R60AFD1 radar's serial protocol, keeping the
// device state, and bridging it to MQTT and a local websocket hub.

package main

import (
	"os"

	"github.com/Thermoquad/radarstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
