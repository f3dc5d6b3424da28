// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"bytes"
	"encoding/binary"
	"time"
)

// DefaultStaleLimit is the number of poll cycles a partial frame may wait
// for its remaining bytes before it is abandoned.
const DefaultStaleLimit = 10

var startMarker = []byte{HeaderByte1, HeaderByte2}

// Synchronizer extracts validated frames from a raw byte stream. Bytes that
// do not yet form a complete frame are retained across writes.
type Synchronizer struct {
	buf        []byte
	maxPayload int
	staleLimit int
	staleTicks int

	skipped   uint64
	abandoned uint64
}

// SyncOption configures a Synchronizer
type SyncOption func(*Synchronizer)

// WithStaleLimit sets how many Tick calls a partial frame survives
func WithStaleLimit(cycles int) SyncOption {
	return func(s *Synchronizer) {
		if cycles > 0 {
			s.staleLimit = cycles
		}
	}
}

// WithMaxPayload caps the declared payload length accepted from the stream
func WithMaxPayload(n int) SyncOption {
	return func(s *Synchronizer) {
		if n >= 0 && n <= 0xFFFF {
			s.maxPayload = n
		}
	}
}

// NewSynchronizer creates a new stream synchronizer
func NewSynchronizer(opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		buf:        make([]byte, 0, MaxFrameSize),
		maxPayload: MaxPayloadSize,
		staleLimit: DefaultStaleLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write appends received bytes. It never fails.
func (s *Synchronizer) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes waiting to be synchronized
func (s *Synchronizer) Buffered() int {
	return len(s.buf)
}

// Skipped returns the number of bytes discarded while searching for a start marker
func (s *Synchronizer) Skipped() uint64 {
	return s.skipped
}

// Abandoned returns the number of partial frames dropped by Tick
func (s *Synchronizer) Abandoned() uint64 {
	return s.abandoned
}

// Reset discards all buffered bytes
func (s *Synchronizer) Reset() {
	s.buf = s.buf[:0]
	s.staleTicks = 0
}

// Next returns the next validated frame.
//
// It returns (nil, nil) when more bytes are needed. A rejected candidate is
// reported as a *FrameError after the synchronizer has already stepped past
// it, so callers keep calling Next until it returns (nil, nil).
func (s *Synchronizer) Next() (*Frame, error) {
	start := bytes.Index(s.buf, startMarker)
	if start < 0 {
		// A trailing first marker byte may pair with the next write.
		keep := 0
		if n := len(s.buf); n > 0 && s.buf[n-1] == HeaderByte1 {
			keep = 1
		}
		s.skip(len(s.buf) - keep)
		return nil, nil
	}
	s.skip(start)

	if len(s.buf) < HeaderSize {
		return nil, nil
	}

	control, command := s.buf[2], s.buf[3]
	length := int(binary.BigEndian.Uint16(s.buf[4:6]))
	if length > s.maxPayload {
		s.consume(1)
		return nil, &FrameError{Err: ErrPayloadTooLarge, Control: control, Command: command, Length: length, Dropped: 1}
	}

	total := length + FrameOverhead
	if len(s.buf) < total {
		return nil, nil
	}

	if s.buf[total-2] != TailByte1 || s.buf[total-1] != TailByte2 {
		s.consume(1)
		return nil, &FrameError{Err: ErrTrailerMismatch, Control: control, Command: command, Length: length, Dropped: 1}
	}

	expected := Checksum(s.buf[:HeaderSize+length])
	got := s.buf[HeaderSize+length]
	if expected != got {
		s.consume(total)
		return nil, &FrameError{
			Err:      ErrChecksumMismatch,
			Control:  control,
			Command:  command,
			Length:   length,
			Expected: expected,
			Got:      got,
			Dropped:  total,
		}
	}

	payload := make([]byte, length)
	copy(payload, s.buf[HeaderSize:HeaderSize+length])
	frame := &Frame{
		control:   control,
		command:   command,
		payload:   payload,
		checksum:  got,
		timestamp: time.Now(),
	}
	s.consume(total)
	return frame, nil
}

// Tick marks the end of one poll cycle. When a partial frame has been
// buffered for the configured number of cycles it is abandoned by stepping
// one byte past its start marker. Tick returns ErrStalePartial wrapped in a
// *FrameError when that happens.
func (s *Synchronizer) Tick() error {
	if len(s.buf) == 0 {
		s.staleTicks = 0
		return nil
	}
	s.staleTicks++
	if s.staleTicks < s.staleLimit {
		return nil
	}

	err := &FrameError{Err: ErrStalePartial, Dropped: 1}
	if len(s.buf) >= HeaderSize {
		err.Control = s.buf[2]
		err.Command = s.buf[3]
		err.Length = int(binary.BigEndian.Uint16(s.buf[4:6]))
	}
	s.consume(1)
	s.abandoned++
	return err
}

// Feed writes data and drains every frame it completes. Rejections are
// passed to onError, which may be nil.
func (s *Synchronizer) Feed(data []byte, onError func(error)) []*Frame {
	s.Write(data)
	var frames []*Frame
	for {
		frame, err := s.Next()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if frame == nil {
			return frames
		}
		frames = append(frames, frame)
	}
}

func (s *Synchronizer) skip(n int) {
	if n <= 0 {
		return
	}
	s.skipped += uint64(n)
	s.consume(n)
}

func (s *Synchronizer) consume(n int) {
	s.buf = s.buf[n:]
	s.staleTicks = 0
}
