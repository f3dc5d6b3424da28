// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

func TestFileStore_MissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetInt("fall_dur"); !errors.Is(err, r60afd1.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestFileStore_CommitAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.yaml")
	s, _ := Open(path)
	s.SetInt("fall_dur", 30)
	s.SetInt("angle_x", -12)
	s.SetBool("fall_switch", true)
	s.SetString("device_id", "porch")
	if err := s.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if v, err := reopened.GetInt("fall_dur"); err != nil || v != 30 {
		t.Errorf("expected 30, got %d (%v)", v, err)
	}
	if v, err := reopened.GetInt("angle_x"); err != nil || v != -12 {
		t.Errorf("expected -12, got %d (%v)", v, err)
	}
	if v, err := reopened.GetBool("fall_switch"); err != nil || !v {
		t.Errorf("expected true, got %v (%v)", v, err)
	}
	if v, err := reopened.GetString("device_id"); err != nil || v != "porch" {
		t.Errorf("expected porch, got %q (%v)", v, err)
	}
}

func TestFileStore_WrongType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("fall_dur: fast\nfall_switch: 3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetInt("fall_dur"); !errors.Is(err, ErrWrongType) {
		t.Errorf("expected ErrWrongType, got %v", err)
	}
	if _, err := s.GetBool("fall_switch"); !errors.Is(err, ErrWrongType) {
		t.Errorf("expected ErrWrongType, got %v", err)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(": : :\n\t-"), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err == nil {
		t.Error("expected a parse error")
	}
	if s == nil {
		t.Fatal("expected a usable empty store")
	}
	if _, err := s.GetInt("fall_dur"); !errors.Is(err, r60afd1.ErrKeyNotFound) {
		t.Errorf("expected empty store, got %v", err)
	}
}

func TestFileStore_BacksPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, _ := Open(path)
	p := r60afd1.NewPersistence(s, nil)

	want := r60afd1.DefaultSettings()
	want.FallDuration = 90
	want.Angles.Y = -7
	if err := p.SaveSettings(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reopened, _ := Open(path)
	got, err := r60afd1.NewPersistence(reopened, nil).LoadSettings()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\nexpected %+v\ngot      %+v", want, got)
	}
}
