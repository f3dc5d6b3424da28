// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads and saves the radarstat bridge configuration.
//
// The configuration lives in $XDG_CONFIG_HOME/radarstat/config.yaml (or
// $HOME/.config/radarstat/config.yaml). Passwords are never stored; they come
// from RADARSTAT_PASSWORD and RADARSTAT_MQTT_PASSWORD or an interactive prompt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName        = "radarstat"
	configFile     = "config.yaml"
	storeFile      = "settings.yaml"
	CurrentVersion = 1
)

// Mutex for file operations
var fileMutex sync.Mutex

// Config is the bridge configuration file
type Config struct {
	Version   int       `yaml:"version"`
	DeviceID  string    `yaml:"device_id,omitempty"`
	Transport Transport `yaml:"transport"`
	MQTT      MQTT      `yaml:"mqtt"`
	Hub       Hub       `yaml:"hub"`
	Schedule  Schedule  `yaml:"schedule"`
	StorePath string    `yaml:"store_path,omitempty"`
	Capture   string    `yaml:"capture,omitempty"`
}

// Transport selects the serial port or serial-over-websocket bridge
type Transport struct {
	Port         string        `yaml:"port,omitempty"`
	Baud         int           `yaml:"baud"`
	URL          string        `yaml:"url,omitempty"`
	Username     string        `yaml:"username,omitempty"`
	NoSSLVerify  bool          `yaml:"no_ssl_verify,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleLimit   int           `yaml:"stale_limit"`
}

// MQTT configures the broker connection
type MQTT struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	QoS      byte   `yaml:"qos"`
}

// Hub configures the local websocket server
type Hub struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Advertise bool   `yaml:"advertise"`
}

// Schedule holds the query and publish periods
type Schedule struct {
	WorkingStatus   time.Duration `yaml:"working_status"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	Height          time.Duration `yaml:"height"`
	OperatingTime   time.Duration `yaml:"operating_time"`
	ProductInfo     time.Duration `yaml:"product_info"`
	ProductInfoGap  time.Duration `yaml:"product_info_gap"`
	LivePublish     time.Duration `yaml:"live_publish"`
	SettingsPublish time.Duration `yaml:"settings_publish"`
	CommandSpacing  time.Duration `yaml:"command_spacing"`
	RestartDelay    time.Duration `yaml:"restart_delay"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Transport: Transport{
			Baud:         115200,
			PollInterval: 100 * time.Millisecond,
			StaleLimit:   10,
		},
		MQTT: MQTT{
			Broker: "tcp://localhost:1883",
			QoS:    1,
		},
		Hub: Hub{
			Enabled:   true,
			Listen:    ":8765",
			Advertise: true,
		},
		Schedule: Schedule{
			WorkingStatus:   5 * time.Second,
			Heartbeat:       10 * time.Second,
			Height:          5 * time.Second,
			OperatingTime:   60 * time.Second,
			ProductInfo:     10 * time.Minute,
			ProductInfoGap:  2 * time.Second,
			LivePublish:     60 * time.Second,
			SettingsPublish: 5 * time.Minute,
			CommandSpacing:  200 * time.Millisecond,
			RestartDelay:    3 * time.Second,
		},
	}
}

// fillDefaults replaces every zero field with its default
func (c *Config) fillDefaults() {
	d := Default()
	if c.Transport.Baud == 0 {
		c.Transport.Baud = d.Transport.Baud
	}
	if c.Transport.PollInterval == 0 {
		c.Transport.PollInterval = d.Transport.PollInterval
	}
	if c.Transport.StaleLimit == 0 {
		c.Transport.StaleLimit = d.Transport.StaleLimit
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = d.MQTT.Broker
	}
	if c.Hub.Listen == "" {
		c.Hub.Listen = d.Hub.Listen
	}

	c.Schedule = c.Schedule.Filled()
}

// Filled returns s with every non-positive period replaced by its default
func (s Schedule) Filled() Schedule {
	ds := Default().Schedule
	for _, f := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&s.WorkingStatus, ds.WorkingStatus},
		{&s.Heartbeat, ds.Heartbeat},
		{&s.Height, ds.Height},
		{&s.OperatingTime, ds.OperatingTime},
		{&s.ProductInfo, ds.ProductInfo},
		{&s.ProductInfoGap, ds.ProductInfoGap},
		{&s.LivePublish, ds.LivePublish},
		{&s.SettingsPublish, ds.SettingsPublish},
		{&s.CommandSpacing, ds.CommandSpacing},
		{&s.RestartDelay, ds.RestartDelay},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
	return s
}

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/radarstat or $HOME/.config/radarstat
//   - macOS: $HOME/.config/radarstat
//   - Windows: %LOCALAPPDATA%\radarstat
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// DefaultPath returns the full path of the configuration file
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// ResolveStorePath returns the settings store path, next to the configuration
// file unless configured explicitly.
func (c *Config) ResolveStorePath() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storeFile), nil
}

// Load reads the configuration at path, or the default path when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// Save writes the configuration to path atomically
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte("# radarstat bridge configuration\n" +
		"# Passwords are never stored here. Set RADARSTAT_PASSWORD and\n" +
		"# RADARSTAT_MQTT_PASSWORD or enter them when prompted.\n\n")
	data = append(header, data...)

	return WriteFileAtomic(path, data, 0600)
}

// WriteFileAtomic writes data to a temporary file and renames it over path
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
