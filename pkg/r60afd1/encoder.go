// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command is an outgoing query or set frame
type Command struct {
	Name    string
	Control uint8
	Command uint8
	Payload []byte
}

// Bytes returns the wire encoding of the command
func (c Command) Bytes() []byte {
	return EncodeFrame(c.Control, c.Command, c.Payload)
}

func (c Command) String() string {
	return fmt.Sprintf("%s (0x%02X/0x%02X) payload=% X", c.Name, c.Control, c.Command, c.Payload)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func be16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func be32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func boolByte(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// ============================================================
// Queries
// ============================================================

// NewQuery builds a query frame for a control/command pair
func NewQuery(name string, control, command uint8) Command {
	return Command{Name: name, Control: control, Command: command, Payload: []byte{QueryPayload}}
}

func QueryWorkingStatus() Command {
	return NewQuery("QUERY_WORKING_STATUS", CtrlWorkStatus, CmdWorkingStatusQuery)
}

func QueryHeartbeat() Command {
	return NewQuery("QUERY_HEARTBEAT", CtrlHeartbeat, CmdHeartbeat)
}

func QueryHeightDistribution() Command {
	return NewQuery("QUERY_HEIGHT_DISTRIBUTION", CtrlFallDetection, CmdHeightDistribution)
}

func QueryHeightProportion() Command {
	return NewQuery("QUERY_HEIGHT_PROPORTION", CtrlFallDetection, CmdHeightProportion)
}

func QueryOperatingTime() Command {
	return NewQuery("QUERY_OPERATING_TIME", CtrlOperation, CmdOperatingTime)
}

// ProductInfoQueries returns the four product identity queries in the order
// the radar expects them.
func ProductInfoQueries() []Command {
	return []Command{
		NewQuery("QUERY_PRODUCT_MODEL", CtrlProductInfo, CmdProductModel),
		NewQuery("QUERY_PRODUCT_ID", CtrlProductInfo, CmdProductID),
		NewQuery("QUERY_HARDWARE_MODEL", CtrlProductInfo, CmdHardwareModel),
		NewQuery("QUERY_FIRMWARE_VERSION", CtrlProductInfo, CmdFirmwareVersion),
	}
}

// Queries maps query names accepted on the command line to their builders
var Queries = map[string]func() Command{
	"working_status":      QueryWorkingStatus,
	"heartbeat":           QueryHeartbeat,
	"height_distribution": QueryHeightDistribution,
	"height_proportion":   QueryHeightProportion,
	"operating_time":      QueryOperatingTime,
	"product_model":       func() Command { return ProductInfoQueries()[0] },
	"product_id":          func() Command { return ProductInfoQueries()[1] },
	"hardware_model":      func() Command { return ProductInfoQueries()[2] },
	"firmware_version":    func() Command { return ProductInfoQueries()[3] },
}

// ============================================================
// Settings
//
// Each builder clamps its input and returns the value actually encoded.
// ============================================================

func SetInstallationAngles(x, y, z int64) (Command, InstallationAngles) {
	a := InstallationAngles{
		X: int16(clamp(x, math.MinInt16, math.MaxInt16)),
		Y: int16(clamp(y, math.MinInt16, math.MaxInt16)),
		Z: int16(clamp(z, math.MinInt16, math.MaxInt16)),
	}
	payload := make([]byte, 0, 6)
	payload = binary.BigEndian.AppendUint16(payload, uint16(a.X))
	payload = binary.BigEndian.AppendUint16(payload, uint16(a.Y))
	payload = binary.BigEndian.AppendUint16(payload, uint16(a.Z))
	return Command{Name: "SET_INSTALLATION_ANGLES", Control: CtrlInstallation, Command: CmdInstallationAngles, Payload: payload}, a
}

func SetInstallationHeight(cm int64) (Command, uint16) {
	v := uint16(clamp(cm, 0, math.MaxUint16))
	return Command{Name: "SET_INSTALLATION_HEIGHT", Control: CtrlInstallation, Command: CmdInstallationHeight, Payload: be16(v)}, v
}

func SetFallSensitivity(level int64) (Command, uint8) {
	v := uint8(clamp(level, MinFallSensitivity, MaxFallSensitivity))
	return Command{Name: "SET_FALL_SENSITIVITY", Control: CtrlFallDetection, Command: CmdFallSensitivity, Payload: []byte{v}}, v
}

func SetFallDuration(seconds int64) (Command, uint32) {
	v := uint32(clamp(seconds, MinFallDuration, MaxFallDuration))
	return Command{Name: "SET_FALL_DURATION", Control: CtrlFallDetection, Command: CmdFallDuration, Payload: be32(v)}, v
}

func SetBreakingHeight(cm int64) (Command, uint16) {
	v := uint16(clamp(cm, MinBreakingHeight, MaxBreakingHeight))
	return Command{Name: "SET_BREAKING_HEIGHT", Control: CtrlFallDetection, Command: CmdBreakingHeight, Payload: be16(v)}, v
}

func SetSittingStillDistance(cm int64) (Command, uint16) {
	v := uint16(clamp(cm, MinDistance, MaxDistance))
	return Command{Name: "SET_SITTING_STILL_DISTANCE", Control: CtrlHumanPresence, Command: CmdSittingStillDistance, Payload: be16(v)}, v
}

func SetMovingDistance(cm int64) (Command, uint16) {
	v := uint16(clamp(cm, MinDistance, MaxDistance))
	return Command{Name: "SET_MOVING_DISTANCE", Control: CtrlHumanPresence, Command: CmdMovingDistance, Payload: be16(v)}, v
}

func SetStayStillSwitch(on bool) Command {
	return Command{Name: "SET_STAY_STILL_SWITCH", Control: CtrlFallDetection, Command: CmdStayStillSwitch, Payload: boolByte(on)}
}

func SetStayStillDuration(seconds int64) (Command, uint32) {
	v := uint32(clamp(seconds, MinStayStillDuration, MaxStayStillDuration))
	return Command{Name: "SET_STAY_STILL_DURATION", Control: CtrlFallDetection, Command: CmdStayStillDuration, Payload: be32(v)}, v
}

func SetFallDetectionSwitch(on bool) Command {
	return Command{Name: "SET_FALL_DETECTION_SWITCH", Control: CtrlFallDetection, Command: CmdFallAlarm, Payload: boolByte(on)}
}

func SetHeightAccumulationTime(seconds int64) (Command, uint32) {
	v := uint32(clamp(seconds, 0, math.MaxUint32))
	return Command{Name: "SET_HEIGHT_ACCUMULATION_TIME", Control: CtrlFallDetection, Command: CmdHeightAccumulation, Payload: be32(v)}, v
}

// SetNonPresenceTime is the one setting the radar takes little-endian.
func SetNonPresenceTime(seconds int64) (Command, uint32) {
	v := uint32(clamp(seconds, 0, math.MaxUint32))
	return Command{Name: "SET_NON_PRESENCE_TIME", Control: CtrlFallDetection, Command: CmdStayStillSwitch, Payload: binary.LittleEndian.AppendUint32(nil, v)}, v
}

func SetHumanPresence(on bool) Command {
	return Command{Name: "SET_HUMAN_PRESENCE", Control: CtrlHumanPresence, Command: CmdPresenceSwitch, Payload: boolByte(on)}
}

// SettingsCommands returns the commands that push every setting in s to the
// radar, in the order the Reconciler applies them.
func SettingsCommands(s Settings) []Command {
	angles, _ := SetInstallationAngles(int64(s.Angles.X), int64(s.Angles.Y), int64(s.Angles.Z))
	height, _ := SetInstallationHeight(int64(s.InstallationHeight))
	sens, _ := SetFallSensitivity(int64(s.FallSensitivity))
	dur, _ := SetFallDuration(int64(s.FallDuration))
	brk, _ := SetBreakingHeight(int64(s.BreakingHeight))
	still, _ := SetSittingStillDistance(int64(s.SittingStillDistance))
	moving, _ := SetMovingDistance(int64(s.MovingDistance))
	stayDur, _ := SetStayStillDuration(int64(s.StayStillDuration))
	acc, _ := SetHeightAccumulationTime(int64(s.HeightAccumulationTime))
	nonPresence, _ := SetNonPresenceTime(int64(s.NonPresenceTime))
	return []Command{
		angles,
		height,
		sens,
		dur,
		brk,
		still,
		moving,
		SetStayStillSwitch(s.StayStillSwitch),
		stayDur,
		SetFallDetectionSwitch(s.FallDetectionSwitch),
		acc,
		nonPresence,
	}
}
