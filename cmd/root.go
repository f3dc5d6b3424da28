// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/internal/config"
	"github.com/Thermoquad/radarstat/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	logLevel   string

	// cfg is loaded before every command runs
	cfg *config.Config
)

// logFallbackAnnotation names the log level a command uses when neither the
// flag nor the environment sets one. Commands without it stay silent.
const logFallbackAnnotation = "log-fallback"

var rootCmd = &cobra.Command{
	Use:   "radarstat",
	Short: "R60AFD1 Fall-Detection Radar Bridge",
	Long: `Radarstat - A CLI tool and service for the R60AFD1 60 GHz fall-detection radar.

Decodes the radar's serial frame protocol, keeps the device state, applies
configuration changes and publishes snapshots over MQTT and a local websocket
hub. Diagnostic commands log, test and replay the raw frame stream.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Flags override the configuration file. For WebSocket authentication, the
password is read from the RADARSTAT_PASSWORD environment variable, or prompted
interactively if not set. The --password flag is intentionally not provided to
avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, default from config or 115200)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default $XDG_CONFIG_HOME/radarstat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from "+logging.LogLevelEnvVar+")")
}

// setup loads the configuration, applies the connection flags over it and
// initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel, cmd.Annotations[logFallbackAnnotation]); err != nil {
		return err
	}

	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded

	t := &cfg.Transport
	if portName != "" {
		t.Port = portName
		t.URL = ""
	}
	if wsURL != "" {
		t.URL = wsURL
		t.Port = ""
	}
	if baudRate != 0 {
		t.Baud = baudRate
	}
	if wsUsername != "" {
		t.Username = wsUsername
	}
	if wsNoSSLVerify {
		t.NoSSLVerify = true
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	defer logging.Sync()
	return rootCmd.Execute()
}
