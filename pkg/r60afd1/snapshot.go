// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

// LiveSnapshot is the published view of live telemetry
type LiveSnapshot struct {
	DeviceID         string `json:"device_id"`
	DeviceType       string `json:"device_type"`
	Presence         bool   `json:"presence"`
	FallAlarm        bool   `json:"fall_alarm"`
	StayStillAlarm   bool   `json:"stay_still_alarm"`
	MovementState    uint8  `json:"movement_state"`
	BodyMovement     uint8  `json:"body_movement_param"`
	Heartbeat        uint8  `json:"heartbeat"`
	TrajectoryX      int16  `json:"trajectory_x"`
	TrajectoryY      int16  `json:"trajectory_y"`
	TotalHeightCount uint16 `json:"total_height_count"`
	HeightProp0To05  uint8  `json:"height_prop_0_0_5"`
	HeightProp05To1  uint8  `json:"height_prop_0_5_1"`
	HeightProp1To15  uint8  `json:"height_prop_1_1_5"`
	HeightProp15To2  uint8  `json:"height_prop_1_5_2"`
	NonPresenceTime  uint32 `json:"non_presence_time"`
	WorkingStatus    uint8  `json:"working_status"`
	Scenario         uint8  `json:"scenario"`
	OperatingTime    uint32 `json:"operating_time"`
}

// SettingsSnapshot is the published view of the settings
type SettingsSnapshot struct {
	DeviceID                 string `json:"device_id"`
	DeviceType               string `json:"device_type"`
	WorkingStatus            uint8  `json:"working_status"`
	Scenario                 uint8  `json:"scenario"`
	InstallationAngleX       int16  `json:"installation_angle_x"`
	InstallationAngleY       int16  `json:"installation_angle_y"`
	InstallationAngleZ       int16  `json:"installation_angle_z"`
	InstallationHeight       uint16 `json:"installation_height"`
	FallDetectionSensitivity uint8  `json:"fall_detection_sensitivity"`
	FallDuration             uint32 `json:"fall_duration"`
	FallBreakingHeight       uint16 `json:"fall_breaking_height"`
	SittingStillDistance     uint16 `json:"sitting_still_distance"`
	MovingDistance           uint16 `json:"moving_distance"`
	StayStillSwitch          bool   `json:"stay_still_switch"`
	StayStillDuration        uint32 `json:"stay_still_duration"`
	HeightAccumulationTime   uint32 `json:"height_accumulation_time"`
	FallDetectionSwitch      bool   `json:"fall_detection_switch"`
	NonPresenceTime          uint32 `json:"non_presence_time"`
}

// ProductSnapshot is the published view of the product identity
type ProductSnapshot struct {
	DeviceID        string `json:"device_id"`
	DeviceType      string `json:"device_type"`
	ProductModel    string `json:"product_model"`
	ProductID       string `json:"product_id"`
	HardwareModel   string `json:"hardware_model"`
	FirmwareVersion string `json:"firmware_version"`
	OperatingTime   uint32 `json:"operating_time"`
}

// LiveSnapshot returns a consistent copy of the live telemetry
func (s *State) LiveSnapshot() LiveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.live
	return LiveSnapshot{
		DeviceID:         s.deviceID,
		DeviceType:       DeviceType,
		Presence:         l.Presence,
		FallAlarm:        l.FallAlarm,
		StayStillAlarm:   l.StayStillAlarm,
		MovementState:    l.MovementState,
		BodyMovement:     l.BodyMovement,
		Heartbeat:        l.Heartbeat,
		TrajectoryX:      l.Trajectory.X,
		TrajectoryY:      l.Trajectory.Y,
		TotalHeightCount: l.Height.Total,
		HeightProp0To05:  l.Height.Proportions[0],
		HeightProp05To1:  l.Height.Proportions[1],
		HeightProp1To15:  l.Height.Proportions[2],
		HeightProp15To2:  l.Height.Proportions[3],
		NonPresenceTime:  l.NonPresenceDuration,
		WorkingStatus:    l.WorkingStatus,
		Scenario:         l.Scenario,
		OperatingTime:    l.OperatingTime,
	}
}

// SettingsSnapshot returns a consistent copy of the settings
func (s *State) SettingsSnapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.settings
	return SettingsSnapshot{
		DeviceID:                 s.deviceID,
		DeviceType:               DeviceType,
		WorkingStatus:            s.live.WorkingStatus,
		Scenario:                 s.live.Scenario,
		InstallationAngleX:       st.Angles.X,
		InstallationAngleY:       st.Angles.Y,
		InstallationAngleZ:       st.Angles.Z,
		InstallationHeight:       st.InstallationHeight,
		FallDetectionSensitivity: st.FallSensitivity,
		FallDuration:             st.FallDuration,
		FallBreakingHeight:       st.BreakingHeight,
		SittingStillDistance:     st.SittingStillDistance,
		MovingDistance:           st.MovingDistance,
		StayStillSwitch:          st.StayStillSwitch,
		StayStillDuration:        st.StayStillDuration,
		HeightAccumulationTime:   st.HeightAccumulationTime,
		FallDetectionSwitch:      st.FallDetectionSwitch,
		NonPresenceTime:          st.NonPresenceTime,
	}
}

// ProductSnapshot returns a consistent copy of the product identity
func (s *State) ProductSnapshot() ProductSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ProductSnapshot{
		DeviceID:        s.deviceID,
		DeviceType:      DeviceType,
		ProductModel:    s.product.Model,
		ProductID:       s.product.ID,
		HardwareModel:   s.product.HardwareModel,
		FirmwareVersion: s.product.FirmwareVersion,
		OperatingTime:   s.live.OperatingTime,
	}
}
