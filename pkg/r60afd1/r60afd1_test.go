// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"bytes"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// feedAll writes data and drains every frame and error it produces
func feedAll(s *Synchronizer, data []byte) ([]*Frame, []error) {
	var errs []error
	frames := s.Feed(data, func(err error) { errs = append(errs, err) })
	return frames, errs
}

// dispatchBytes runs a wire stream through a fresh synchronizer into state
func dispatchBytes(t *testing.T, state *State, data []byte) []Rule {
	t.Helper()
	frames, errs := feedAll(NewSynchronizer(), data)
	if len(errs) > 0 {
		t.Fatalf("unexpected sync errors: %v", errs)
	}
	d := NewDispatcher(state, nil)
	var rules []Rule
	for _, f := range frames {
		rule, err := d.Dispatch(f)
		if err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		rules = append(rules, rule)
	}
	return rules
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	if cs := Checksum(nil); cs != 0 {
		t.Errorf("checksum of empty data should be 0, got 0x%02X", cs)
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"presence report", []byte{0x53, 0x59, 0x80, 0x01, 0x00, 0x01, 0x01}, 0x2F},
		{"fall sensitivity set", []byte{0x53, 0x59, 0x83, 0x0D, 0x00, 0x01, 0x03}, 0x40},
		{"wraps modulo 256", []byte{0xFF, 0x02}, 0x01},
		{"single byte", []byte{0x42}, 0x42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if cs := Checksum(tt.data); cs != tt.expected {
				t.Errorf("checksum mismatch: expected 0x%02X, got 0x%02X", tt.expected, cs)
			}
		})
	}
}

// ============================================================
// Frame Tests
// ============================================================

func TestEncodeFrame_PresenceReport(t *testing.T) {
	expected := []byte{0x53, 0x59, 0x80, 0x01, 0x00, 0x01, 0x01, 0x2F, 0x54, 0x43}
	got := EncodeFrame(CtrlHumanPresence, CmdPresence, []byte{0x01})
	if !bytes.Equal(got, expected) {
		t.Errorf("expected % X, got % X", expected, got)
	}
}

func TestEncodeFrame_LengthIsBigEndian(t *testing.T) {
	payload := make([]byte, 0x0102)
	wire := EncodeFrame(0x02, 0xA1, payload)
	if wire[4] != 0x01 || wire[5] != 0x02 {
		t.Errorf("expected length bytes 01 02, got %02X %02X", wire[4], wire[5])
	}
	if len(wire) != len(payload)+FrameOverhead {
		t.Errorf("expected %d bytes, got %d", len(payload)+FrameOverhead, len(wire))
	}
}

func TestNewFrame_Accessors(t *testing.T) {
	f := NewFrame(CtrlFallDetection, CmdFallAlarm, []byte{0x01})
	if f.Control() != CtrlFallDetection {
		t.Errorf("expected control 0x83, got 0x%02X", f.Control())
	}
	if f.Command() != CmdFallAlarm {
		t.Errorf("expected command 0x01, got 0x%02X", f.Command())
	}
	if f.Length() != 1 {
		t.Errorf("expected length 1, got %d", f.Length())
	}
	wire := f.Bytes()
	if f.Checksum() != wire[len(wire)-3] {
		t.Errorf("checksum 0x%02X does not match wire 0x%02X", f.Checksum(), wire[len(wire)-3])
	}
	if f.Key() != (Key{CtrlFallDetection, CmdFallAlarm, 1}) {
		t.Errorf("unexpected key %+v", f.Key())
	}
}

// ============================================================
// End-to-end Scenarios
// ============================================================

func TestScenario_PresenceBytes(t *testing.T) {
	state := NewState("")
	dispatchBytes(t, state, []byte{0x53, 0x59, 0x80, 0x01, 0x00, 0x01, 0x01, 0x2F, 0x54, 0x43})
	if !state.Live().Presence {
		t.Error("expected presence to be true")
	}
}

func TestScenario_StreamOfReports(t *testing.T) {
	var stream []byte
	stream = append(stream, EncodeFrame(CtrlHumanPresence, CmdPresence, []byte{0x01})...)
	stream = append(stream, EncodeFrame(CtrlHumanPresence, CmdMovementState, []byte{0x02})...)
	stream = append(stream, EncodeFrame(CtrlFallDetection, CmdFallAlarm, []byte{0x01})...)
	stream = append(stream, EncodeFrame(CtrlProductInfo, CmdFirmwareVersion, []byte("G60FD1_1.0.4"))...)

	state := NewState("")
	rules := dispatchBytes(t, state, stream)

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	expected := "PRESENCE,MOVEMENT_STATE,FALL_ALARM,FIRMWARE_VERSION"
	if got := strings.Join(names, ","); got != expected {
		t.Errorf("expected rules %s, got %s", expected, got)
	}

	live := state.Live()
	if !live.Presence || !live.FallAlarm || live.MovementState != MovementActive {
		t.Errorf("unexpected live state %+v", live)
	}
	if fw := state.Product().FirmwareVersion; fw != "G60FD1_1.0.4" {
		t.Errorf("expected firmware G60FD1_1.0.4, got %q", fw)
	}
}
