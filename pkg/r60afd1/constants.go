// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package r60afd1 implements the serial frame protocol of the R60AFD1 60 GHz
// fall-detection radar.
//
// The package provides stream synchronization, frame validation, a
// table-driven decoder that folds reports into a shared device State, the
// command encoder for queries and settings, and the settings Reconciler that
// applies configuration deltas. It performs no network I/O.
package r60afd1

// Protocol framing bytes
const (
	HeaderByte1 = 0x53
	HeaderByte2 = 0x59
	TailByte1   = 0x54
	TailByte2   = 0x43
)

// Frame size limits
const (
	HeaderSize     = 6 // marker + control + command + 2-byte length
	FrameOverhead  = 9 // header + checksum + 2-byte tail
	MaxFrameSize   = 1024
	MaxPayloadSize = MaxFrameSize - FrameOverhead
)

// QueryPayload is the single payload byte carried by every query frame.
const QueryPayload = 0x0F

// Text field capacities
const (
	MaxProductStringLen = 31
	MaxDeviceIDLen      = 31
)

// Identity defaults
const (
	DeviceType      = "R60AFD1"
	DefaultDeviceID = "falldetector"
)

// Control words
const (
	CtrlHeartbeat     = 0x01
	CtrlProductInfo   = 0x02
	CtrlOperation     = 0x03
	CtrlWorkStatus    = 0x05
	CtrlInstallation  = 0x06
	CtrlHumanPresence = 0x80
	CtrlFallDetection = 0x83
)

// Command words - human presence (control 0x80)
const (
	CmdPresenceSwitch        = 0x00
	CmdPresence              = 0x01
	CmdMovementState         = 0x02
	CmdBodyMovement          = 0x03
	CmdPresenceHeartbeat     = 0x04
	CmdNonPresenceDuration   = 0x0A
	CmdSittingStillDistance  = 0x0D
	CmdMovingDistance        = 0x0E
	CmdTrajectory            = 0x10
	CmdNonPresenceDurationBE = 0x12
)

// Command words - fall detection (control 0x83)
const (
	CmdFallAlarm          = 0x01 // also the fall-detection switch
	CmdFallParameters     = 0x02
	CmdStayStillAlarm     = 0x05
	CmdStayStillDuration  = 0x0A
	CmdStayStillSwitch    = 0x0B // 4-byte payload carries the non-presence time
	CmdFallDuration       = 0x0C
	CmdFallSensitivity    = 0x0D
	CmdHeightDistribution = 0x0E
	CmdBreakingHeight     = 0x11
	CmdTrajectoryAlt      = 0x12
	CmdHeightProportion   = 0x8E
	CmdHeightAccumulation = 0x8F
)

// Command words - system controls
const (
	CmdHeartbeat          = 0x01
	CmdWorkingStatus      = 0x01
	CmdWorkingStatusQuery = 0x81
	CmdScenario           = 0x07
	CmdInstallationAngles = 0x01
	CmdInstallationHeight = 0x02
	CmdProductModel       = 0xA1
	CmdProductID          = 0xA2
	CmdHardwareModel      = 0xA3
	CmdFirmwareVersion    = 0xA4
	CmdOperatingTime      = 0xB0
)

// Setting ranges
const (
	MinFallSensitivity   = 0
	MaxFallSensitivity   = 3
	MinFallDuration      = 5
	MaxFallDuration      = 180
	MinBreakingHeight    = 0
	MaxBreakingHeight    = 150
	MinDistance          = 0
	MaxDistance          = 300
	MinStayStillDuration = 60
	MaxStayStillDuration = 3600
)

// Movement states reported by CmdMovementState
const (
	MovementNone       = 0
	MovementStationary = 1
	MovementActive     = 2
)
