// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"bytes"
	"encoding/binary"

	"go.uber.org/zap"
)

// AnyLength matches a rule against every non-empty payload length
const AnyLength = -1

// Key selects a decode rule
type Key struct {
	Control uint8
	Command uint8
	Length  int
}

// Rule decodes one frame shape into a State mutation
type Rule struct {
	Name  string
	apply func(s *State, p []byte)
}

// Apply decodes payload into s
func (r Rule) Apply(s *State, payload []byte) {
	r.apply(s, payload)
}

// heightFallback decodes any otherwise unmatched 6-byte payload as a height
// distribution report. It is consulted only after every exact rule misses.
var heightFallback = Rule{Name: "HEIGHT_DISTRIBUTION_FALLBACK", apply: decodeHeightDistribution}

var decodeTable = map[Key]Rule{
	// Human presence
	{CtrlHumanPresence, CmdPresence, 1}:              {"PRESENCE", flag((*State).SetPresence)},
	{CtrlHumanPresence, CmdMovementState, 1}:         {"MOVEMENT_STATE", raw((*State).SetMovementState)},
	{CtrlHumanPresence, CmdBodyMovement, 1}:          {"BODY_MOVEMENT", raw((*State).SetBodyMovement)},
	{CtrlHumanPresence, CmdPresenceHeartbeat, 1}:     {"HEARTBEAT", raw((*State).SetHeartbeat)},
	{CtrlHumanPresence, CmdNonPresenceDuration, 4}:   {"NON_PRESENCE_DURATION", u32le((*State).SetNonPresenceDuration)},
	{CtrlHumanPresence, CmdNonPresenceDurationBE, 4}: {"NON_PRESENCE_DURATION", u32be((*State).SetNonPresenceDuration)},
	{CtrlHumanPresence, CmdTrajectory, 4}:            {"TRAJECTORY", decodeTrajectory(binary.LittleEndian)},
	{CtrlHumanPresence, CmdSittingStillDistance, 2}:  {"SITTING_STILL_DISTANCE", u16be((*State).SetSittingStillDistance)},
	{CtrlHumanPresence, CmdMovingDistance, 2}:        {"MOVING_DISTANCE", u16be((*State).SetMovingDistance)},

	// Fall detection
	{CtrlFallDetection, CmdFallAlarm, 1}:          {"FALL_ALARM", flag((*State).SetFallAlarm)},
	{CtrlFallDetection, CmdStayStillAlarm, 1}:     {"STAY_STILL_ALARM", flag((*State).SetStayStillAlarm)},
	{CtrlFallDetection, CmdFallParameters, 7}:     {"FALL_PARAMETERS", decodeFallParameters},
	{CtrlFallDetection, CmdFallSensitivity, 1}:    {"FALL_SENSITIVITY", raw((*State).SetFallSensitivity)},
	{CtrlFallDetection, CmdFallDuration, 4}:       {"FALL_DURATION", u32be((*State).SetFallDuration)},
	{CtrlFallDetection, CmdBreakingHeight, 2}:     {"BREAKING_HEIGHT", u16be((*State).SetBreakingHeight)},
	{CtrlFallDetection, CmdStayStillSwitch, 1}:    {"STAY_STILL_SWITCH", flag((*State).SetStayStillSwitch)},
	{CtrlFallDetection, CmdStayStillSwitch, 4}:    {"NON_PRESENCE_TIME", u32le((*State).SetNonPresenceTime)},
	{CtrlFallDetection, CmdStayStillDuration, 4}:  {"STAY_STILL_DURATION", u32be((*State).SetStayStillDuration)},
	{CtrlFallDetection, CmdHeightAccumulation, 4}: {"HEIGHT_ACCUMULATION_TIME", u32be((*State).SetHeightAccumulationTime)},
	{CtrlFallDetection, CmdHeightDistribution, 6}: {"HEIGHT_DISTRIBUTION", decodeHeightDistribution},
	{CtrlFallDetection, CmdTrajectoryAlt, 4}:      {"TRAJECTORY", decodeTrajectory(binary.BigEndian)},

	// System
	{CtrlHeartbeat, CmdHeartbeat, 1}:                 {"HEARTBEAT", raw((*State).SetHeartbeat)},
	{CtrlWorkStatus, CmdWorkingStatus, 1}:            {"WORKING_STATUS", raw((*State).SetWorkingStatus)},
	{CtrlWorkStatus, CmdWorkingStatusQuery, 1}:       {"WORKING_STATUS", raw((*State).SetWorkingStatus)},
	{CtrlWorkStatus, CmdScenario, 1}:                 {"SCENARIO", raw((*State).SetScenario)},
	{CtrlInstallation, CmdInstallationAngles, 6}:     {"INSTALLATION_ANGLES", decodeInstallationAngles},
	{CtrlInstallation, CmdInstallationHeight, 2}:     {"INSTALLATION_HEIGHT", u16be((*State).SetInstallationHeight)},
	{CtrlOperation, CmdOperatingTime, 4}:             {"OPERATING_TIME", u32be((*State).SetOperatingTime)},
	{CtrlProductInfo, CmdProductModel, AnyLength}:    {"PRODUCT_MODEL", text((*State).SetProductModel)},
	{CtrlProductInfo, CmdProductID, AnyLength}:       {"PRODUCT_ID", text((*State).SetProductID)},
	{CtrlProductInfo, CmdHardwareModel, AnyLength}:   {"HARDWARE_MODEL", text((*State).SetHardwareModel)},
	{CtrlProductInfo, CmdFirmwareVersion, AnyLength}: {"FIRMWARE_VERSION", text((*State).SetFirmwareVersion)},
}

// Lookup returns the decode rule for a frame shape. Exact (control, command,
// length) entries win, then variable-length entries, then the 6-byte height
// distribution fallback.
func Lookup(control, command uint8, length int) (Rule, bool) {
	if rule, ok := decodeTable[Key{control, command, length}]; ok {
		return rule, true
	}
	if length > 0 {
		if rule, ok := decodeTable[Key{control, command, AnyLength}]; ok {
			return rule, true
		}
	}
	if length == 6 {
		return heightFallback, true
	}
	return Rule{}, false
}

// Dispatcher applies validated frames to a State
type Dispatcher struct {
	state  *State
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher that mutates state. A nil logger disables logging.
func NewDispatcher(state *State, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{state: state, logger: logger}
}

// State returns the state the dispatcher mutates
func (d *Dispatcher) State() *State {
	return d.state
}

// Dispatch decodes frame into the state and returns the rule it matched.
// Frames without a rule leave the state untouched and yield an
// *UnknownFrameError carrying the frame.
func (d *Dispatcher) Dispatch(frame *Frame) (Rule, error) {
	rule, ok := Lookup(frame.Control(), frame.Command(), frame.Length())
	if !ok {
		d.logger.Debug("unknown frame",
			zap.Uint8("control", frame.Control()),
			zap.Uint8("command", frame.Command()),
			zap.Int("length", frame.Length()),
			zap.Binary("payload", frame.Payload()),
		)
		return Rule{}, &UnknownFrameError{Frame: frame}
	}
	rule.Apply(d.state, frame.Payload())
	return rule, nil
}

// ============================================================
// Field decoders
// ============================================================

func flag(set func(*State, bool)) func(*State, []byte) {
	return func(s *State, p []byte) { set(s, p[0] == 1) }
}

func raw(set func(*State, uint8)) func(*State, []byte) {
	return func(s *State, p []byte) { set(s, p[0]) }
}

func u16be(set func(*State, uint16)) func(*State, []byte) {
	return func(s *State, p []byte) { set(s, binary.BigEndian.Uint16(p)) }
}

func u32be(set func(*State, uint32)) func(*State, []byte) {
	return func(s *State, p []byte) { set(s, binary.BigEndian.Uint32(p)) }
}

func u32le(set func(*State, uint32)) func(*State, []byte) {
	return func(s *State, p []byte) { set(s, binary.LittleEndian.Uint32(p)) }
}

func text(set func(*State, string)) func(*State, []byte) {
	return func(s *State, p []byte) { set(s, productString(p)) }
}

// productString cuts a product text field at its first NUL and at the field capacity
func productString(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	if len(p) > MaxProductStringLen {
		p = p[:MaxProductStringLen]
	}
	return string(p)
}

func decodeTrajectory(order binary.ByteOrder) func(*State, []byte) {
	return func(s *State, p []byte) {
		s.SetTrajectory(Trajectory{
			X: int16(order.Uint16(p[0:2])),
			Y: int16(order.Uint16(p[2:4])),
		})
	}
}

func decodeFallParameters(s *State, p []byte) {
	s.SetFallParameters(p[0], binary.BigEndian.Uint32(p[1:5]), binary.BigEndian.Uint16(p[5:7]))
}

func decodeHeightDistribution(s *State, p []byte) {
	s.SetHeightDistribution(HeightDistribution{
		Total:       binary.BigEndian.Uint16(p[0:2]),
		Proportions: [4]uint8{p[2], p[3], p[4], p[5]},
	})
}

func decodeInstallationAngles(s *State, p []byte) {
	s.SetInstallationAngles(InstallationAngles{
		X: int16(binary.BigEndian.Uint16(p[0:2])),
		Y: int16(binary.BigEndian.Uint16(p[2:4])),
		Z: int16(binary.BigEndian.Uint16(p[4:6])),
	})
}
