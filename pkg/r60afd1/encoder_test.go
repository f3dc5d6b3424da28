// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"bytes"
	"testing"
)

// ============================================================
// Query Tests
// ============================================================

func TestQueries_CarryQueryPayload(t *testing.T) {
	for name, build := range Queries {
		cmd := build()
		if !bytes.Equal(cmd.Payload, []byte{QueryPayload}) {
			t.Errorf("%s: expected payload 0F, got % X", name, cmd.Payload)
		}
	}
}

func TestQueryWorkingStatus_Wire(t *testing.T) {
	expected := []byte{0x53, 0x59, 0x05, 0x81, 0x00, 0x01, 0x0F, 0x42, 0x54, 0x43}
	if got := QueryWorkingStatus().Bytes(); !bytes.Equal(got, expected) {
		t.Errorf("expected % X, got % X", expected, got)
	}
}

func TestProductInfoQueries_Order(t *testing.T) {
	cmds := ProductInfoQueries()
	expected := []uint8{CmdProductModel, CmdProductID, CmdHardwareModel, CmdFirmwareVersion}
	if len(cmds) != len(expected) {
		t.Fatalf("expected %d queries, got %d", len(expected), len(cmds))
	}
	for i, cmd := range cmds {
		if cmd.Control != CtrlProductInfo || cmd.Command != expected[i] {
			t.Errorf("query %d: expected 0x02/0x%02X, got 0x%02X/0x%02X", i, expected[i], cmd.Control, cmd.Command)
		}
	}
}

// ============================================================
// Clamp Tests
// ============================================================

func TestSetters_Clamp(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (Command, int64)
		applied int64
		payload []byte
	}{
		{
			name:    "fall duration below range",
			build:   func() (Command, int64) { c, v := SetFallDuration(0); return c, int64(v) },
			applied: 5,
			payload: []byte{0x00, 0x00, 0x00, 0x05},
		},
		{
			name:    "fall duration above range",
			build:   func() (Command, int64) { c, v := SetFallDuration(500); return c, int64(v) },
			applied: 180,
			payload: []byte{0x00, 0x00, 0x00, 0xB4},
		},
		{
			name:    "fall sensitivity above range",
			build:   func() (Command, int64) { c, v := SetFallSensitivity(9); return c, int64(v) },
			applied: 3,
			payload: []byte{0x03},
		},
		{
			name:    "fall sensitivity negative",
			build:   func() (Command, int64) { c, v := SetFallSensitivity(-4); return c, int64(v) },
			applied: 0,
			payload: []byte{0x00},
		},
		{
			name:    "sitting still distance above range",
			build:   func() (Command, int64) { c, v := SetSittingStillDistance(9999); return c, int64(v) },
			applied: 300,
			payload: []byte{0x01, 0x2C},
		},
		{
			name:    "moving distance in range",
			build:   func() (Command, int64) { c, v := SetMovingDistance(45); return c, int64(v) },
			applied: 45,
			payload: []byte{0x00, 0x2D},
		},
		{
			name:    "breaking height above range",
			build:   func() (Command, int64) { c, v := SetBreakingHeight(151); return c, int64(v) },
			applied: 150,
			payload: []byte{0x00, 0x96},
		},
		{
			name:    "stay still duration below range",
			build:   func() (Command, int64) { c, v := SetStayStillDuration(10); return c, int64(v) },
			applied: 60,
			payload: []byte{0x00, 0x00, 0x00, 0x3C},
		},
		{
			name:    "installation height negative",
			build:   func() (Command, int64) { c, v := SetInstallationHeight(-1); return c, int64(v) },
			applied: 0,
			payload: []byte{0x00, 0x00},
		},
		{
			name:    "non-presence time is little-endian",
			build:   func() (Command, int64) { c, v := SetNonPresenceTime(300); return c, int64(v) },
			applied: 300,
			payload: []byte{0x2C, 0x01, 0x00, 0x00},
		},
		{
			name:    "height accumulation time",
			build:   func() (Command, int64) { c, v := SetHeightAccumulationTime(120); return c, int64(v) },
			applied: 120,
			payload: []byte{0x00, 0x00, 0x00, 0x78},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, applied := tt.build()
			if applied != tt.applied {
				t.Errorf("expected applied %d, got %d", tt.applied, applied)
			}
			if !bytes.Equal(cmd.Payload, tt.payload) {
				t.Errorf("expected payload % X, got % X", tt.payload, cmd.Payload)
			}
		})
	}
}

func TestSetFallSensitivity_Wire(t *testing.T) {
	cmd, _ := SetFallSensitivity(9)
	expected := []byte{0x53, 0x59, 0x83, 0x0D, 0x00, 0x01, 0x03, 0x40, 0x54, 0x43}
	if got := cmd.Bytes(); !bytes.Equal(got, expected) {
		t.Errorf("expected % X, got % X", expected, got)
	}
}

func TestSetInstallationAngles_ClampsToInt16(t *testing.T) {
	cmd, applied := SetInstallationAngles(40000, -40000, -5)
	if applied != (InstallationAngles{X: 32767, Y: -32768, Z: -5}) {
		t.Errorf("unexpected applied angles %+v", applied)
	}
	expected := []byte{0x7F, 0xFF, 0x80, 0x00, 0xFF, 0xFB}
	if !bytes.Equal(cmd.Payload, expected) {
		t.Errorf("expected payload % X, got % X", expected, cmd.Payload)
	}
}

func TestSwitches_Payload(t *testing.T) {
	if p := SetStayStillSwitch(true).Payload; !bytes.Equal(p, []byte{0x01}) {
		t.Errorf("stay still on: got % X", p)
	}
	if p := SetFallDetectionSwitch(false).Payload; !bytes.Equal(p, []byte{0x00}) {
		t.Errorf("fall switch off: got % X", p)
	}
	cmd := SetHumanPresence(true)
	if cmd.Control != CtrlHumanPresence || cmd.Command != CmdPresenceSwitch {
		t.Errorf("unexpected presence switch address 0x%02X/0x%02X", cmd.Control, cmd.Command)
	}
}

// ============================================================
// Round Trip Tests
// ============================================================

// The radar echoes a set command in the same shape as its report, so every
// set frame except the fall-detection switch decodes back into the setting.
func TestSetters_DecodeBack(t *testing.T) {
	angles, _ := SetInstallationAngles(15, -20, 3)
	height, _ := SetInstallationHeight(275)
	sens, _ := SetFallSensitivity(2)
	dur, _ := SetFallDuration(42)
	brk, _ := SetBreakingHeight(99)
	still, _ := SetSittingStillDistance(123)
	moving, _ := SetMovingDistance(77)
	stayDur, _ := SetStayStillDuration(900)
	acc, _ := SetHeightAccumulationTime(33)
	nonPresence, _ := SetNonPresenceTime(600)

	want := Settings{
		Angles:                 InstallationAngles{X: 15, Y: -20, Z: 3},
		InstallationHeight:     275,
		FallSensitivity:        2,
		FallDuration:           42,
		BreakingHeight:         99,
		SittingStillDistance:   123,
		MovingDistance:         77,
		StayStillSwitch:        true,
		StayStillDuration:      900,
		HeightAccumulationTime: 33,
		FallDetectionSwitch:    DefaultSettings().FallDetectionSwitch,
		NonPresenceTime:        600,
	}

	var stream []byte
	for _, cmd := range []Command{angles, height, sens, dur, brk, still, moving, SetStayStillSwitch(true), stayDur, acc, nonPresence} {
		stream = append(stream, cmd.Bytes()...)
	}

	state := NewState("")
	dispatchBytes(t, state, stream)
	if got := state.Settings(); got != want {
		t.Errorf("decoded settings mismatch:\nexpected %+v\ngot      %+v", want, got)
	}
}

func TestSettingsCommands_Order(t *testing.T) {
	cmds := SettingsCommands(DefaultSettings())
	expected := []string{
		"SET_INSTALLATION_ANGLES",
		"SET_INSTALLATION_HEIGHT",
		"SET_FALL_SENSITIVITY",
		"SET_FALL_DURATION",
		"SET_BREAKING_HEIGHT",
		"SET_SITTING_STILL_DISTANCE",
		"SET_MOVING_DISTANCE",
		"SET_STAY_STILL_SWITCH",
		"SET_STAY_STILL_DURATION",
		"SET_FALL_DETECTION_SWITCH",
		"SET_HEIGHT_ACCUMULATION_TIME",
		"SET_NON_PRESENCE_TIME",
	}
	if len(cmds) != len(expected) {
		t.Fatalf("expected %d commands, got %d", len(expected), len(cmds))
	}
	for i, cmd := range cmds {
		if cmd.Name != expected[i] {
			t.Errorf("command %d: expected %s, got %s", i, expected[i], cmd.Name)
		}
	}
}
