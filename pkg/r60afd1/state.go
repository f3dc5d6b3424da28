// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"sync"
	"time"
)

// Trajectory is the target position reported by the radar
type Trajectory struct {
	X int16
	Y int16
}

// HeightDistribution is the height histogram of detected targets. The four
// proportion buckets cover 0-0.5 m, 0.5-1 m, 1-1.5 m and 1.5-2 m.
type HeightDistribution struct {
	Total       uint16
	Proportions [4]uint8
}

// InstallationAngles is the mounting orientation of the radar
type InstallationAngles struct {
	X int16
	Y int16
	Z int16
}

// Live holds telemetry fields
type Live struct {
	Presence            bool
	FallAlarm           bool
	StayStillAlarm      bool
	MovementState       uint8
	BodyMovement        uint8
	Heartbeat           uint8
	Trajectory          Trajectory
	Height              HeightDistribution
	NonPresenceDuration uint32
	WorkingStatus       uint8
	Scenario            uint8
	OperatingTime       uint32
}

// Settings holds the slow-changing configuration of the radar
type Settings struct {
	Angles                 InstallationAngles
	InstallationHeight     uint16
	FallSensitivity        uint8
	FallDuration           uint32
	BreakingHeight         uint16
	SittingStillDistance   uint16
	MovingDistance         uint16
	StayStillSwitch        bool
	StayStillDuration      uint32
	HeightAccumulationTime uint32
	FallDetectionSwitch    bool
	NonPresenceTime        uint32
}

// DefaultSettings returns the settings used before anything is loaded
func DefaultSettings() Settings {
	return Settings{
		InstallationHeight:     200,
		FallSensitivity:        3,
		FallDuration:           5,
		BreakingHeight:         20,
		SittingStillDistance:   300,
		MovingDistance:         30,
		StayStillSwitch:        false,
		StayStillDuration:      60,
		HeightAccumulationTime: 60,
		FallDetectionSwitch:    true,
		NonPresenceTime:        5,
	}
}

// Clamped returns a copy with every ranged field forced into its valid range
func (s Settings) Clamped() Settings {
	s.FallSensitivity = uint8(clamp(int64(s.FallSensitivity), MinFallSensitivity, MaxFallSensitivity))
	s.FallDuration = uint32(clamp(int64(s.FallDuration), MinFallDuration, MaxFallDuration))
	s.BreakingHeight = uint16(clamp(int64(s.BreakingHeight), MinBreakingHeight, MaxBreakingHeight))
	s.SittingStillDistance = uint16(clamp(int64(s.SittingStillDistance), MinDistance, MaxDistance))
	s.MovingDistance = uint16(clamp(int64(s.MovingDistance), MinDistance, MaxDistance))
	s.StayStillDuration = uint32(clamp(int64(s.StayStillDuration), MinStayStillDuration, MaxStayStillDuration))
	return s
}

// ProductInfo holds the identity strings returned by product queries
type ProductInfo struct {
	Model           string
	ID              string
	HardwareModel   string
	FirmwareVersion string
}

// State is the canonical record of the radar's last known telemetry and
// settings. It is safe for concurrent use; composite fields are always
// read and written as a whole.
type State struct {
	mu       sync.RWMutex
	deviceID string
	live     Live
	settings Settings
	product  ProductInfo
	version  uint64
	updated  time.Time
}

// NewState creates a state holding default settings
func NewState(deviceID string) *State {
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}
	return &State{
		deviceID: deviceID,
		settings: DefaultSettings(),
	}
}

func (s *State) updateLive(fn func(*Live)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.live)
	s.touch()
}

func (s *State) updateSettings(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
	s.touch()
}

func (s *State) touch() {
	s.version++
	s.updated = time.Now()
}

// UpdateSettings applies fn to the settings under the write lock
func (s *State) UpdateSettings(fn func(*Settings)) {
	s.updateSettings(fn)
}

// ReplaceSettings overwrites every setting
func (s *State) ReplaceSettings(settings Settings) {
	s.updateSettings(func(cur *Settings) { *cur = settings })
}

// Version increases on every mutation
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// LastUpdate returns the time of the last mutation
func (s *State) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// DeviceID returns the identity used in published snapshots
func (s *State) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// SetDeviceID changes the published identity
func (s *State) SetDeviceID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = id
	s.touch()
}

// Live returns a copy of the telemetry fields
func (s *State) Live() Live {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Settings returns a copy of the settings
func (s *State) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Product returns a copy of the product identity strings
func (s *State) Product() ProductInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.product
}

// Trajectory returns the last reported target position
func (s *State) Trajectory() Trajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Trajectory
}

// HeightDistribution returns the last reported height histogram
func (s *State) HeightDistribution() HeightDistribution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Height
}

// InstallationAngles returns the configured mounting angles
func (s *State) InstallationAngles() InstallationAngles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Angles
}

// Live telemetry setters

func (s *State) SetPresence(v bool)       { s.updateLive(func(l *Live) { l.Presence = v }) }
func (s *State) SetFallAlarm(v bool)      { s.updateLive(func(l *Live) { l.FallAlarm = v }) }
func (s *State) SetStayStillAlarm(v bool) { s.updateLive(func(l *Live) { l.StayStillAlarm = v }) }
func (s *State) SetMovementState(v uint8) { s.updateLive(func(l *Live) { l.MovementState = v }) }
func (s *State) SetBodyMovement(v uint8)  { s.updateLive(func(l *Live) { l.BodyMovement = v }) }
func (s *State) SetHeartbeat(v uint8)     { s.updateLive(func(l *Live) { l.Heartbeat = v }) }
func (s *State) SetWorkingStatus(v uint8) { s.updateLive(func(l *Live) { l.WorkingStatus = v }) }
func (s *State) SetScenario(v uint8)      { s.updateLive(func(l *Live) { l.Scenario = v }) }
func (s *State) SetOperatingTime(v uint32) {
	s.updateLive(func(l *Live) { l.OperatingTime = v })
}
func (s *State) SetNonPresenceDuration(v uint32) {
	s.updateLive(func(l *Live) { l.NonPresenceDuration = v })
}
func (s *State) SetTrajectory(v Trajectory) {
	s.updateLive(func(l *Live) { l.Trajectory = v })
}
func (s *State) SetHeightDistribution(v HeightDistribution) {
	s.updateLive(func(l *Live) { l.Height = v })
}

// Settings setters

func (s *State) SetInstallationAngles(v InstallationAngles) {
	s.updateSettings(func(st *Settings) { st.Angles = v })
}
func (s *State) SetInstallationHeight(v uint16) {
	s.updateSettings(func(st *Settings) { st.InstallationHeight = v })
}
func (s *State) SetFallSensitivity(v uint8) {
	s.updateSettings(func(st *Settings) { st.FallSensitivity = v })
}
func (s *State) SetFallDuration(v uint32) {
	s.updateSettings(func(st *Settings) { st.FallDuration = v })
}
func (s *State) SetBreakingHeight(v uint16) {
	s.updateSettings(func(st *Settings) { st.BreakingHeight = v })
}

// SetFallParameters updates sensitivity, duration and breaking height together
func (s *State) SetFallParameters(sensitivity uint8, duration uint32, breakingHeight uint16) {
	s.updateSettings(func(st *Settings) {
		st.FallSensitivity = sensitivity
		st.FallDuration = duration
		st.BreakingHeight = breakingHeight
	})
}
func (s *State) SetSittingStillDistance(v uint16) {
	s.updateSettings(func(st *Settings) { st.SittingStillDistance = v })
}
func (s *State) SetMovingDistance(v uint16) {
	s.updateSettings(func(st *Settings) { st.MovingDistance = v })
}
func (s *State) SetStayStillSwitch(v bool) {
	s.updateSettings(func(st *Settings) { st.StayStillSwitch = v })
}
func (s *State) SetStayStillDuration(v uint32) {
	s.updateSettings(func(st *Settings) { st.StayStillDuration = v })
}
func (s *State) SetHeightAccumulationTime(v uint32) {
	s.updateSettings(func(st *Settings) { st.HeightAccumulationTime = v })
}
func (s *State) SetFallDetectionSwitch(v bool) {
	s.updateSettings(func(st *Settings) { st.FallDetectionSwitch = v })
}
func (s *State) SetNonPresenceTime(v uint32) {
	s.updateSettings(func(st *Settings) { st.NonPresenceTime = v })
}

// Product info setters

func (s *State) SetProductModel(v string) {
	s.updateProduct(func(p *ProductInfo) { p.Model = v })
}
func (s *State) SetProductID(v string) {
	s.updateProduct(func(p *ProductInfo) { p.ID = v })
}
func (s *State) SetHardwareModel(v string) {
	s.updateProduct(func(p *ProductInfo) { p.HardwareModel = v })
}
func (s *State) SetFirmwareVersion(v string) {
	s.updateProduct(func(p *ProductInfo) { p.FirmwareVersion = v })
}

func (s *State) updateProduct(fn func(*ProductInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.product)
	s.touch()
}
