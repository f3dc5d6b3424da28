// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"errors"
	"fmt"
)

// Synchronizer rejection reasons
var (
	ErrTrailerMismatch  = errors.New("trailer mismatch")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrStalePartial     = errors.New("partial frame abandoned")
)

// FrameError describes a candidate frame rejected by the Synchronizer
type FrameError struct {
	Err      error
	Control  uint8
	Command  uint8
	Length   int
	Expected uint8 // checksum only
	Got      uint8 // checksum only
	Dropped  int   // bytes discarded to resynchronize
}

func (e *FrameError) Error() string {
	switch {
	case errors.Is(e.Err, ErrChecksumMismatch):
		return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X (ctrl=0x%02X cmd=0x%02X len=%d)",
			e.Expected, e.Got, e.Control, e.Command, e.Length)
	case errors.Is(e.Err, ErrPayloadTooLarge):
		return fmt.Sprintf("payload too large: %d (max %d)", e.Length, MaxPayloadSize)
	default:
		return fmt.Sprintf("%v (ctrl=0x%02X cmd=0x%02X len=%d)", e.Err, e.Control, e.Command, e.Length)
	}
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// UnknownFrameError is returned by the Dispatcher for frames with no decode rule
type UnknownFrameError struct {
	Frame *Frame
}

func (e *UnknownFrameError) Error() string {
	return fmt.Sprintf("unknown frame: ctrl=0x%02X cmd=0x%02X len=%d payload=% X",
		e.Frame.Control(), e.Frame.Command(), e.Frame.Length(), e.Frame.Payload())
}
