// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"encoding/binary"
	"fmt"
)

// AnomalyType represents different types of report anomalies
type AnomalyType int

const (
	AnomalyInvalidFlag AnomalyType = iota
	AnomalyInvalidMovement
	AnomalyHeightSum
	AnomalyOutOfRange
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyInvalidFlag:
		return "INVALID_FLAG"
	case AnomalyInvalidMovement:
		return "INVALID_MOVEMENT"
	case AnomalyHeightSum:
		return "HEIGHT_SUM"
	case AnomalyOutOfRange:
		return "OUT_OF_RANGE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError describes a well-formed frame whose content looks wrong.
// Anomalies are informational; the frame is still dispatched.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a frame's content against the ranges of the field it
// reports. Frames without a decode rule are not validated.
func ValidateFrame(f *Frame) []ValidationError {
	rule, ok := Lookup(f.Control(), f.Command(), f.Length())
	if !ok {
		return nil
	}
	p := f.Payload()

	switch rule.Name {
	case "PRESENCE", "FALL_ALARM", "STAY_STILL_ALARM", "STAY_STILL_SWITCH":
		if p[0] > 1 {
			return []ValidationError{{
				Type:    AnomalyInvalidFlag,
				Message: fmt.Sprintf("%s flag byte 0x%02X is neither 0 nor 1", rule.Name, p[0]),
				Details: map[string]interface{}{"field": rule.Name, "value": p[0]},
			}}
		}

	case "MOVEMENT_STATE":
		if p[0] > MovementActive {
			return []ValidationError{{
				Type:    AnomalyInvalidMovement,
				Message: fmt.Sprintf("movement state %d out of range (0-2)", p[0]),
				Details: map[string]interface{}{"value": p[0]},
			}}
		}

	case "HEIGHT_DISTRIBUTION", "HEIGHT_DISTRIBUTION_FALLBACK":
		total := binary.BigEndian.Uint16(p[0:2])
		sum := uint16(p[2]) + uint16(p[3]) + uint16(p[4]) + uint16(p[5])
		if sum != total {
			return []ValidationError{{
				Type:    AnomalyHeightSum,
				Message: fmt.Sprintf("height proportions sum to %d, total is %d", sum, total),
				Details: map[string]interface{}{"sum": sum, "total": total},
			}}
		}

	case "FALL_SENSITIVITY":
		return checkRange(rule.Name, int64(p[0]), MinFallSensitivity, MaxFallSensitivity)
	case "FALL_DURATION":
		return checkRange(rule.Name, int64(binary.BigEndian.Uint32(p)), MinFallDuration, MaxFallDuration)
	case "BREAKING_HEIGHT":
		return checkRange(rule.Name, int64(binary.BigEndian.Uint16(p)), MinBreakingHeight, MaxBreakingHeight)
	case "SITTING_STILL_DISTANCE", "MOVING_DISTANCE":
		return checkRange(rule.Name, int64(binary.BigEndian.Uint16(p)), MinDistance, MaxDistance)
	case "STAY_STILL_DURATION":
		return checkRange(rule.Name, int64(binary.BigEndian.Uint32(p)), MinStayStillDuration, MaxStayStillDuration)

	case "FALL_PARAMETERS":
		var errs []ValidationError
		errs = append(errs, checkRange("FALL_SENSITIVITY", int64(p[0]), MinFallSensitivity, MaxFallSensitivity)...)
		errs = append(errs, checkRange("FALL_DURATION", int64(binary.BigEndian.Uint32(p[1:5])), MinFallDuration, MaxFallDuration)...)
		errs = append(errs, checkRange("BREAKING_HEIGHT", int64(binary.BigEndian.Uint16(p[5:7])), MinBreakingHeight, MaxBreakingHeight)...)
		return errs
	}

	return nil
}

func checkRange(field string, v, lo, hi int64) []ValidationError {
	if v >= lo && v <= hi {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyOutOfRange,
		Message: fmt.Sprintf("%s value %d out of range (%d-%d)", field, v, lo, hi),
		Details: map[string]interface{}{"field": field, "value": v, "min": lo, "max": hi},
	}}
}
