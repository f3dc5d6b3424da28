// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport.Baud != 115200 {
		t.Errorf("expected baud 115200, got %d", cfg.Transport.Baud)
	}
	if cfg.Schedule.LivePublish != time.Minute {
		t.Errorf("expected live publish every minute, got %s", cfg.Schedule.LivePublish)
	}
}

func TestLoad_FillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "version: 1\n" +
		"transport:\n  port: /dev/ttyUSB0\n" +
		"schedule:\n  heartbeat: 30s\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport.Port != "/dev/ttyUSB0" {
		t.Errorf("expected port from file, got %q", cfg.Transport.Port)
	}
	if cfg.Schedule.Heartbeat != 30*time.Second {
		t.Errorf("expected heartbeat 30s, got %s", cfg.Schedule.Heartbeat)
	}
	if cfg.Schedule.WorkingStatus != 5*time.Second {
		t.Errorf("expected default working status period, got %s", cfg.Schedule.WorkingStatus)
	}
	if cfg.Transport.PollInterval != 100*time.Millisecond {
		t.Errorf("expected default poll interval, got %s", cfg.Transport.PollInterval)
	}
}

func TestLoad_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.DeviceID = "hallway"
	cfg.MQTT.Enabled = true
	cfg.Schedule.SettingsPublish = 2 * time.Minute

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DeviceID != "hallway" || !loaded.MQTT.Enabled || loaded.Schedule.SettingsPublish != 2*time.Minute {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only consulted on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(dir, "radarstat") {
		t.Errorf("unexpected config dir %s", got)
	}
}

func TestResolveStorePath(t *testing.T) {
	cfg := Default()
	cfg.StorePath = "/tmp/custom.yaml"
	if p, _ := cfg.ResolveStorePath(); p != "/tmp/custom.yaml" {
		t.Errorf("expected explicit store path, got %s", p)
	}
}
