// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"encoding/binary"
	"time"
)

// Frame represents one validated protocol frame
type Frame struct {
	control   uint8
	command   uint8
	payload   []byte
	checksum  uint8
	timestamp time.Time
}

// NewFrame creates a frame and computes its checksum
func NewFrame(control, command uint8, payload []byte) *Frame {
	f := &Frame{
		control:   control,
		command:   command,
		payload:   payload,
		timestamp: time.Now(),
	}
	wire := f.Bytes()
	f.checksum = wire[len(wire)-3]
	return f
}

// NewFrameAt creates a frame with an explicit receive timestamp, used when
// replaying captured traffic.
func NewFrameAt(control, command uint8, payload []byte, at time.Time) *Frame {
	f := NewFrame(control, command, payload)
	f.timestamp = at
	return f
}

// Control returns the control word
func (f *Frame) Control() uint8 {
	return f.control
}

// Command returns the command word
func (f *Frame) Command() uint8 {
	return f.command
}

// Length returns the payload length
func (f *Frame) Length() int {
	return len(f.payload)
}

// Payload returns the raw payload bytes
func (f *Frame) Payload() []byte {
	return f.payload
}

// Checksum returns the frame's checksum byte
func (f *Frame) Checksum() uint8 {
	return f.checksum
}

// Timestamp returns when the frame was received
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Key returns the dispatch key of the frame
func (f *Frame) Key() Key {
	return Key{Control: f.control, Command: f.command, Length: len(f.payload)}
}

// Bytes returns the complete wire encoding of the frame
func (f *Frame) Bytes() []byte {
	return EncodeFrame(f.control, f.command, f.payload)
}

// EncodeFrame builds a wire frame: marker, control, command, big-endian
// length, payload, checksum and trailer.
func EncodeFrame(control, command uint8, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+FrameOverhead)
	out = append(out, HeaderByte1, HeaderByte2, control, command)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	out = append(out, Checksum(out))
	out = append(out, TailByte1, TailByte2)
	return out
}
