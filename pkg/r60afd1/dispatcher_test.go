// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Decode Table Tests
// ============================================================

func TestDispatch_DecodeTable(t *testing.T) {
	tests := []struct {
		name    string
		control uint8
		command uint8
		payload []byte
		rule    string
		check   func(t *testing.T, s *State)
	}{
		{
			name: "presence", control: 0x80, command: 0x01, payload: []byte{0x01}, rule: "PRESENCE",
			check: func(t *testing.T, s *State) {
				if !s.Live().Presence {
					t.Error("expected presence")
				}
			},
		},
		{
			name: "movement state", control: 0x80, command: 0x02, payload: []byte{0x01}, rule: "MOVEMENT_STATE",
			check: func(t *testing.T, s *State) {
				if s.Live().MovementState != MovementStationary {
					t.Errorf("expected stationary, got %d", s.Live().MovementState)
				}
			},
		},
		{
			name: "body movement", control: 0x80, command: 0x03, payload: []byte{0x42}, rule: "BODY_MOVEMENT",
			check: func(t *testing.T, s *State) {
				if s.Live().BodyMovement != 0x42 {
					t.Errorf("expected 66, got %d", s.Live().BodyMovement)
				}
			},
		},
		{
			name: "presence heartbeat", control: 0x80, command: 0x04, payload: []byte{0x07}, rule: "HEARTBEAT",
			check: func(t *testing.T, s *State) {
				if s.Live().Heartbeat != 7 {
					t.Errorf("expected 7, got %d", s.Live().Heartbeat)
				}
			},
		},
		{
			name: "system heartbeat", control: 0x01, command: 0x01, payload: []byte{0x09}, rule: "HEARTBEAT",
			check: func(t *testing.T, s *State) {
				if s.Live().Heartbeat != 9 {
					t.Errorf("expected 9, got %d", s.Live().Heartbeat)
				}
			},
		},
		{
			name: "non-presence duration little-endian", control: 0x80, command: 0x0A, payload: []byte{0x2C, 0x01, 0x00, 0x00}, rule: "NON_PRESENCE_DURATION",
			check: func(t *testing.T, s *State) {
				if s.Live().NonPresenceDuration != 300 {
					t.Errorf("expected 300, got %d", s.Live().NonPresenceDuration)
				}
			},
		},
		{
			name: "non-presence duration big-endian", control: 0x80, command: 0x12, payload: []byte{0x00, 0x00, 0x01, 0x2C}, rule: "NON_PRESENCE_DURATION",
			check: func(t *testing.T, s *State) {
				if s.Live().NonPresenceDuration != 300 {
					t.Errorf("expected 300, got %d", s.Live().NonPresenceDuration)
				}
			},
		},
		{
			name: "trajectory little-endian", control: 0x80, command: 0x10, payload: []byte{0x64, 0x00, 0x9C, 0xFF}, rule: "TRAJECTORY",
			check: func(t *testing.T, s *State) {
				if got := s.Trajectory(); got != (Trajectory{X: 100, Y: -100}) {
					t.Errorf("expected {100 -100}, got %+v", got)
				}
			},
		},
		{
			name: "trajectory big-endian", control: 0x83, command: 0x12, payload: []byte{0x00, 0x64, 0xFF, 0x9C}, rule: "TRAJECTORY",
			check: func(t *testing.T, s *State) {
				if got := s.Trajectory(); got != (Trajectory{X: 100, Y: -100}) {
					t.Errorf("expected {100 -100}, got %+v", got)
				}
			},
		},
		{
			name: "sitting still distance", control: 0x80, command: 0x0D, payload: []byte{0x00, 0x96}, rule: "SITTING_STILL_DISTANCE",
			check: func(t *testing.T, s *State) {
				if s.Settings().SittingStillDistance != 150 {
					t.Errorf("expected 150, got %d", s.Settings().SittingStillDistance)
				}
			},
		},
		{
			name: "moving distance", control: 0x80, command: 0x0E, payload: []byte{0x01, 0x2C}, rule: "MOVING_DISTANCE",
			check: func(t *testing.T, s *State) {
				if s.Settings().MovingDistance != 300 {
					t.Errorf("expected 300, got %d", s.Settings().MovingDistance)
				}
			},
		},
		{
			name: "fall alarm", control: 0x83, command: 0x01, payload: []byte{0x01}, rule: "FALL_ALARM",
			check: func(t *testing.T, s *State) {
				if !s.Live().FallAlarm {
					t.Error("expected fall alarm")
				}
			},
		},
		{
			name: "stay still alarm", control: 0x83, command: 0x05, payload: []byte{0x01}, rule: "STAY_STILL_ALARM",
			check: func(t *testing.T, s *State) {
				if !s.Live().StayStillAlarm {
					t.Error("expected stay still alarm")
				}
			},
		},
		{
			name: "fall parameters", control: 0x83, command: 0x02, payload: []byte{0x02, 0x00, 0x00, 0x00, 0x0A, 0x00, 0x32}, rule: "FALL_PARAMETERS",
			check: func(t *testing.T, s *State) {
				st := s.Settings()
				if st.FallSensitivity != 2 || st.FallDuration != 10 || st.BreakingHeight != 50 {
					t.Errorf("expected 2/10/50, got %d/%d/%d", st.FallSensitivity, st.FallDuration, st.BreakingHeight)
				}
			},
		},
		{
			name: "fall sensitivity", control: 0x83, command: 0x0D, payload: []byte{0x01}, rule: "FALL_SENSITIVITY",
			check: func(t *testing.T, s *State) {
				if s.Settings().FallSensitivity != 1 {
					t.Errorf("expected 1, got %d", s.Settings().FallSensitivity)
				}
			},
		},
		{
			name: "fall duration", control: 0x83, command: 0x0C, payload: []byte{0x00, 0x00, 0x00, 0x1E}, rule: "FALL_DURATION",
			check: func(t *testing.T, s *State) {
				if s.Settings().FallDuration != 30 {
					t.Errorf("expected 30, got %d", s.Settings().FallDuration)
				}
			},
		},
		{
			name: "breaking height", control: 0x83, command: 0x11, payload: []byte{0x00, 0x50}, rule: "BREAKING_HEIGHT",
			check: func(t *testing.T, s *State) {
				if s.Settings().BreakingHeight != 80 {
					t.Errorf("expected 80, got %d", s.Settings().BreakingHeight)
				}
			},
		},
		{
			name: "stay still switch", control: 0x83, command: 0x0B, payload: []byte{0x01}, rule: "STAY_STILL_SWITCH",
			check: func(t *testing.T, s *State) {
				if !s.Settings().StayStillSwitch {
					t.Error("expected stay still switch on")
				}
			},
		},
		{
			name: "non-presence time", control: 0x83, command: 0x0B, payload: []byte{0x3C, 0x00, 0x00, 0x00}, rule: "NON_PRESENCE_TIME",
			check: func(t *testing.T, s *State) {
				if s.Settings().NonPresenceTime != 60 {
					t.Errorf("expected 60, got %d", s.Settings().NonPresenceTime)
				}
			},
		},
		{
			name: "stay still duration", control: 0x83, command: 0x0A, payload: []byte{0x00, 0x00, 0x0E, 0x10}, rule: "STAY_STILL_DURATION",
			check: func(t *testing.T, s *State) {
				if s.Settings().StayStillDuration != 3600 {
					t.Errorf("expected 3600, got %d", s.Settings().StayStillDuration)
				}
			},
		},
		{
			name: "height accumulation time", control: 0x83, command: 0x8F, payload: []byte{0x00, 0x00, 0x00, 0x78}, rule: "HEIGHT_ACCUMULATION_TIME",
			check: func(t *testing.T, s *State) {
				if s.Settings().HeightAccumulationTime != 120 {
					t.Errorf("expected 120, got %d", s.Settings().HeightAccumulationTime)
				}
			},
		},
		{
			name: "height distribution", control: 0x83, command: 0x0E, payload: []byte{0x00, 0x64, 10, 20, 30, 40}, rule: "HEIGHT_DISTRIBUTION",
			check: func(t *testing.T, s *State) {
				want := HeightDistribution{Total: 100, Proportions: [4]uint8{10, 20, 30, 40}}
				if got := s.HeightDistribution(); got != want {
					t.Errorf("expected %+v, got %+v", want, got)
				}
			},
		},
		{
			name: "working status report", control: 0x05, command: 0x01, payload: []byte{0x01}, rule: "WORKING_STATUS",
			check: func(t *testing.T, s *State) {
				if s.Live().WorkingStatus != 1 {
					t.Errorf("expected 1, got %d", s.Live().WorkingStatus)
				}
			},
		},
		{
			name: "working status query reply", control: 0x05, command: 0x81, payload: []byte{0x02}, rule: "WORKING_STATUS",
			check: func(t *testing.T, s *State) {
				if s.Live().WorkingStatus != 2 {
					t.Errorf("expected 2, got %d", s.Live().WorkingStatus)
				}
			},
		},
		{
			name: "scenario", control: 0x05, command: 0x07, payload: []byte{0x03}, rule: "SCENARIO",
			check: func(t *testing.T, s *State) {
				if s.Live().Scenario != 3 {
					t.Errorf("expected 3, got %d", s.Live().Scenario)
				}
			},
		},
		{
			name: "installation angles", control: 0x06, command: 0x01, payload: []byte{0x00, 0x0A, 0xFF, 0xF6, 0x00, 0x00}, rule: "INSTALLATION_ANGLES",
			check: func(t *testing.T, s *State) {
				want := InstallationAngles{X: 10, Y: -10, Z: 0}
				if got := s.InstallationAngles(); got != want {
					t.Errorf("expected %+v, got %+v", want, got)
				}
			},
		},
		{
			name: "installation height", control: 0x06, command: 0x02, payload: []byte{0x00, 0xFA}, rule: "INSTALLATION_HEIGHT",
			check: func(t *testing.T, s *State) {
				if s.Settings().InstallationHeight != 250 {
					t.Errorf("expected 250, got %d", s.Settings().InstallationHeight)
				}
			},
		},
		{
			name: "operating time", control: 0x03, command: 0xB0, payload: []byte{0x00, 0x01, 0x51, 0x80}, rule: "OPERATING_TIME",
			check: func(t *testing.T, s *State) {
				if s.Live().OperatingTime != 86400 {
					t.Errorf("expected 86400, got %d", s.Live().OperatingTime)
				}
			},
		},
		{
			name: "product model", control: 0x02, command: 0xA1, payload: []byte("R60AFD1"), rule: "PRODUCT_MODEL",
			check: func(t *testing.T, s *State) {
				if s.Product().Model != "R60AFD1" {
					t.Errorf("expected R60AFD1, got %q", s.Product().Model)
				}
			},
		},
		{
			name: "product id", control: 0x02, command: 0xA2, payload: []byte("ID-1\x00\x00"), rule: "PRODUCT_ID",
			check: func(t *testing.T, s *State) {
				if s.Product().ID != "ID-1" {
					t.Errorf("expected ID-1, got %q", s.Product().ID)
				}
			},
		},
		{
			name: "hardware model", control: 0x02, command: 0xA3, payload: []byte("G60SM1SYv010009"), rule: "HARDWARE_MODEL",
			check: func(t *testing.T, s *State) {
				if s.Product().HardwareModel != "G60SM1SYv010009" {
					t.Errorf("unexpected hardware model %q", s.Product().HardwareModel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState("")
			rule, err := NewDispatcher(state, nil).Dispatch(NewFrame(tt.control, tt.command, tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rule.Name != tt.rule {
				t.Errorf("expected rule %s, got %s", tt.rule, rule.Name)
			}
			tt.check(t, state)
		})
	}
}

// ============================================================
// Precedence Tests
// ============================================================

func TestDispatch_HeightFallback(t *testing.T) {
	state := NewState("")
	rule, err := NewDispatcher(state, nil).Dispatch(NewFrame(0x83, 0x8E, []byte{0x00, 0x0A, 1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.Name != "HEIGHT_DISTRIBUTION_FALLBACK" {
		t.Errorf("expected fallback rule, got %s", rule.Name)
	}
	want := HeightDistribution{Total: 10, Proportions: [4]uint8{1, 2, 3, 4}}
	if got := state.HeightDistribution(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestDispatch_ExactEntryBeatsFallback(t *testing.T) {
	state := NewState("")
	before := state.HeightDistribution()
	rule, err := NewDispatcher(state, nil).Dispatch(NewFrame(0x06, 0x01, []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x03}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.Name != "INSTALLATION_ANGLES" {
		t.Errorf("expected INSTALLATION_ANGLES, got %s", rule.Name)
	}
	if state.HeightDistribution() != before {
		t.Error("6-byte angles frame was also decoded as a height distribution")
	}
}

func TestDispatch_WrongLengthIsUnknown(t *testing.T) {
	state := NewState("")
	version := state.Version()
	_, err := NewDispatcher(state, nil).Dispatch(NewFrame(0x80, 0x01, []byte{0x01, 0x00}))

	var unknown *UnknownFrameError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFrameError, got %v", err)
	}
	if unknown.Frame.Length() != 2 {
		t.Errorf("expected the frame to be carried, got length %d", unknown.Frame.Length())
	}
	if state.Version() != version {
		t.Error("unknown frame mutated the state")
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	_, err := NewDispatcher(NewState(""), nil).Dispatch(NewFrame(0x80, 0x55, []byte{0x01}))
	var unknown *UnknownFrameError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFrameError, got %v", err)
	}
	if !strings.Contains(err.Error(), "ctrl=0x80 cmd=0x55") {
		t.Errorf("error should name the frame, got %q", err.Error())
	}
}

func TestDispatch_EmptyProductStringIsUnknown(t *testing.T) {
	_, err := NewDispatcher(NewState(""), nil).Dispatch(NewFrame(0x02, 0xA1, nil))
	var unknown *UnknownFrameError
	if !errors.As(err, &unknown) {
		t.Errorf("expected empty product frame to be unknown, got %v", err)
	}
}

func TestDispatch_ProductStringTruncated(t *testing.T) {
	state := NewState("")
	long := strings.Repeat("A", 40)
	if _, err := NewDispatcher(state, nil).Dispatch(NewFrame(0x02, 0xA4, []byte(long))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := state.Product().FirmwareVersion; len(got) != MaxProductStringLen {
		t.Errorf("expected %d characters, got %d (%q)", MaxProductStringLen, len(got), got)
	}
}

func TestDispatch_StoresValuesAsReported(t *testing.T) {
	state := NewState("")
	if _, err := NewDispatcher(state, nil).Dispatch(NewFrame(0x83, 0x0D, []byte{0x09})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Settings().FallSensitivity != 9 {
		t.Errorf("expected the reported 9 to be kept, got %d", state.Settings().FallSensitivity)
	}
}

func TestDispatch_BumpsVersion(t *testing.T) {
	state := NewState("")
	v := state.Version()
	NewDispatcher(state, nil).Dispatch(NewFrame(0x80, 0x01, []byte{0x00}))
	if state.Version() != v+1 {
		t.Errorf("expected version %d, got %d", v+1, state.Version())
	}
}
