// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	name := FrameName(f)

	result := fmt.Sprintf("[%s] %s (0x%02X/0x%02X) len=%d\n", timestamp, name, f.Control(), f.Command(), f.Length())
	if value := FormatValue(f); value != "" {
		result += "  " + value + "\n"
	}
	if f.Length() > 0 {
		result += fmt.Sprintf("  Payload: % X\n", f.Payload())
	}
	return result
}

// FrameName returns the decode rule name of a frame, or UNKNOWN
func FrameName(f *Frame) string {
	rule, ok := Lookup(f.Control(), f.Command(), f.Length())
	if !ok {
		return "UNKNOWN"
	}
	return rule.Name
}

// FormatValue renders the decoded content of a known frame
func FormatValue(f *Frame) string {
	rule, ok := Lookup(f.Control(), f.Command(), f.Length())
	if !ok {
		return ""
	}
	p := f.Payload()

	switch rule.Name {
	case "PRESENCE":
		return "Presence: " + yesNo(p[0] == 1)
	case "FALL_ALARM", "STAY_STILL_ALARM":
		return "Alarm: " + yesNo(p[0] == 1)
	case "STAY_STILL_SWITCH":
		return "Switch: " + onOff(p[0] == 1)
	case "MOVEMENT_STATE":
		return fmt.Sprintf("Movement: %s (%d)", FormatMovementState(p[0]), p[0])
	case "BODY_MOVEMENT", "HEARTBEAT", "WORKING_STATUS", "SCENARIO", "FALL_SENSITIVITY":
		return fmt.Sprintf("Value: %d", p[0])
	case "NON_PRESENCE_DURATION", "NON_PRESENCE_TIME":
		if rule.Name == "NON_PRESENCE_TIME" || f.Command() == CmdNonPresenceDuration {
			return fmt.Sprintf("Seconds: %d", binary.LittleEndian.Uint32(p))
		}
		return fmt.Sprintf("Seconds: %d", binary.BigEndian.Uint32(p))
	case "FALL_DURATION", "STAY_STILL_DURATION", "HEIGHT_ACCUMULATION_TIME":
		return fmt.Sprintf("Seconds: %d", binary.BigEndian.Uint32(p))
	case "OPERATING_TIME":
		return "Operating time: " + FormatSeconds(binary.BigEndian.Uint32(p))
	case "SITTING_STILL_DISTANCE", "MOVING_DISTANCE", "BREAKING_HEIGHT", "INSTALLATION_HEIGHT":
		return fmt.Sprintf("Centimetres: %d", binary.BigEndian.Uint16(p))
	case "TRAJECTORY":
		order := binary.ByteOrder(binary.BigEndian)
		if f.Control() == CtrlHumanPresence {
			order = binary.LittleEndian
		}
		return fmt.Sprintf("X: %d, Y: %d", int16(order.Uint16(p[0:2])), int16(order.Uint16(p[2:4])))
	case "FALL_PARAMETERS":
		return fmt.Sprintf("Sensitivity: %d, Duration: %d s, Breaking height: %d cm",
			p[0], binary.BigEndian.Uint32(p[1:5]), binary.BigEndian.Uint16(p[5:7]))
	case "HEIGHT_DISTRIBUTION", "HEIGHT_DISTRIBUTION_FALLBACK":
		return fmt.Sprintf("Total: %d, 0-0.5m: %d, 0.5-1m: %d, 1-1.5m: %d, 1.5-2m: %d",
			binary.BigEndian.Uint16(p[0:2]), p[2], p[3], p[4], p[5])
	case "INSTALLATION_ANGLES":
		return fmt.Sprintf("X: %d, Y: %d, Z: %d",
			int16(binary.BigEndian.Uint16(p[0:2])), int16(binary.BigEndian.Uint16(p[2:4])), int16(binary.BigEndian.Uint16(p[4:6])))
	case "PRODUCT_MODEL", "PRODUCT_ID", "HARDWARE_MODEL", "FIRMWARE_VERSION":
		return fmt.Sprintf("Text: %q", productString(p))
	}
	return ""
}

// FormatMovementState returns the name of a movement state
func FormatMovementState(v uint8) string {
	switch v {
	case MovementNone:
		return "NONE"
	case MovementStationary:
		return "STATIONARY"
	case MovementActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// FormatSeconds formats a second count as days, hours, minutes and seconds
func FormatSeconds(total uint32) string {
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if days > 0 || hours > 0 || minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))
	return strings.Join(parts, " ")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func onOff(v bool) string {
	if v {
		return "On"
	}
	return "Off"
}
