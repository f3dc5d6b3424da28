// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"bytes"
	"errors"
	"testing"
)

var presenceFrame = []byte{0x53, 0x59, 0x80, 0x01, 0x00, 0x01, 0x01, 0x2F, 0x54, 0x43}

func TestSynchronizer_SingleFrame(t *testing.T) {
	frames, errs := feedAll(NewSynchronizer(), presenceFrame)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Control() != 0x80 || f.Command() != 0x01 || !bytes.Equal(f.Payload(), []byte{0x01}) {
		t.Errorf("unexpected frame ctrl=0x%02X cmd=0x%02X payload=% X", f.Control(), f.Command(), f.Payload())
	}
	if f.Checksum() != 0x2F {
		t.Errorf("checksum mismatch: expected 0x2F, got 0x%02X", f.Checksum())
	}
}

func TestSynchronizer_CarriesPartialFrameAcrossWrites(t *testing.T) {
	for split := 1; split < len(presenceFrame); split++ {
		s := NewSynchronizer()
		frames, _ := feedAll(s, presenceFrame[:split])
		if len(frames) != 0 {
			t.Fatalf("split %d: frame delivered before it was complete", split)
		}
		frames, errs := feedAll(s, presenceFrame[split:])
		if len(errs) != 0 {
			t.Fatalf("split %d: unexpected errors %v", split, errs)
		}
		if len(frames) != 1 {
			t.Fatalf("split %d: expected 1 frame, got %d", split, len(frames))
		}
	}
}

func TestSynchronizer_ByteAtATime(t *testing.T) {
	s := NewSynchronizer()
	var frames []*Frame
	stream := append(append([]byte{}, presenceFrame...), presenceFrame...)
	for _, b := range stream {
		got, errs := feedAll(s, []byte{b})
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		frames = append(frames, got...)
	}
	if len(frames) != 2 {
		t.Errorf("expected 2 frames, got %d", len(frames))
	}
}

func TestSynchronizer_SkipsGarbage(t *testing.T) {
	s := NewSynchronizer()
	stream := append([]byte{0x00, 0xFF, 0x12}, presenceFrame...)
	frames, errs := feedAll(s, stream)
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("expected 1 frame and no errors, got %d frames, errors %v", len(frames), errs)
	}
	if s.Skipped() != 3 {
		t.Errorf("expected 3 skipped bytes, got %d", s.Skipped())
	}
	if s.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", s.Buffered())
	}
}

func TestSynchronizer_KeepsTrailingMarkerByte(t *testing.T) {
	s := NewSynchronizer()
	frames, _ := feedAll(s, []byte{0x00, 0x53})
	if len(frames) != 0 {
		t.Fatal("unexpected frame")
	}
	if s.Buffered() != 1 {
		t.Fatalf("expected the 0x53 byte to be kept, buffered %d", s.Buffered())
	}
	frames, errs := feedAll(s, presenceFrame[1:])
	if len(errs) != 0 || len(frames) != 1 {
		t.Errorf("expected 1 frame, got %d frames, errors %v", len(frames), errs)
	}
}

func TestSynchronizer_ChecksumMismatchDropsWholeFrame(t *testing.T) {
	bad := append([]byte{}, presenceFrame...)
	bad[7] = 0x00
	s := NewSynchronizer()
	frames, errs := feedAll(s, append(bad, presenceFrame...))

	if len(frames) != 1 {
		t.Fatalf("expected only the good frame, got %d", len(frames))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var fe *FrameError
	if !errors.As(errs[0], &fe) || !errors.Is(errs[0], ErrChecksumMismatch) {
		t.Fatalf("expected checksum FrameError, got %v", errs[0])
	}
	if fe.Expected != 0x2F || fe.Got != 0x00 {
		t.Errorf("checksum mismatch: expected 0x2F/0x00, got 0x%02X/0x%02X", fe.Expected, fe.Got)
	}
	if fe.Dropped != len(presenceFrame) {
		t.Errorf("expected whole frame dropped (%d), got %d", len(presenceFrame), fe.Dropped)
	}
}

func TestSynchronizer_TrailerMismatchAdvancesOneByte(t *testing.T) {
	bad := append([]byte{}, presenceFrame...)
	bad[9] = 0x00
	s := NewSynchronizer()
	s.Write(bad)

	frame, err := s.Next()
	if frame != nil || !errors.Is(err, ErrTrailerMismatch) {
		t.Fatalf("expected trailer mismatch, got frame=%v err=%v", frame, err)
	}
	if s.Buffered() != len(bad)-1 {
		t.Errorf("expected %d bytes left after advancing one, got %d", len(bad)-1, s.Buffered())
	}

	frames, _ := feedAll(s, presenceFrame)
	if len(frames) != 1 {
		t.Errorf("expected the following frame to decode, got %d", len(frames))
	}
}

func TestSynchronizer_EveryCorruptedPayloadByteIsRejected(t *testing.T) {
	good := EncodeFrame(CtrlHumanPresence, CmdTrajectory, []byte{0x10, 0x00, 0xF0, 0xFF})
	for i := HeaderSize; i < HeaderSize+4; i++ {
		corrupt := append([]byte{}, good...)
		corrupt[i] ^= 0x5A
		frames, errs := feedAll(NewSynchronizer(), corrupt)
		if len(frames) != 0 {
			t.Errorf("byte %d: corrupted frame was delivered", i)
		}
		if len(errs) == 0 || !errors.Is(errs[0], ErrChecksumMismatch) {
			t.Errorf("byte %d: expected checksum mismatch, got %v", i, errs)
		}
	}
}

func TestSynchronizer_SpuriousMarkerInsideTruncatedPayload(t *testing.T) {
	// A trajectory frame cut short right after a payload that looks like a
	// start marker, followed by a real presence report.
	stream := []byte{0x53, 0x59, 0x80, 0x10, 0x00, 0x04, 0x53, 0x59}
	stream = append(stream, presenceFrame...)

	frames, errs := feedAll(NewSynchronizer(), stream)
	if len(frames) != 1 {
		t.Fatalf("expected the real frame to be found, got %d frames (errors %v)", len(frames), errs)
	}
	if frames[0].Control() != 0x80 || frames[0].Command() != 0x01 {
		t.Errorf("wrong frame decoded: ctrl=0x%02X cmd=0x%02X", frames[0].Control(), frames[0].Command())
	}
	if len(errs) == 0 {
		t.Error("expected the truncated candidate to be reported")
	}
}

func TestSynchronizer_MarkerInsideValidPayload(t *testing.T) {
	stream := EncodeFrame(CtrlProductInfo, CmdProductModel, []byte{0x53, 0x59, 0x54, 0x43})
	stream = append(stream, presenceFrame...)
	frames, errs := feedAll(NewSynchronizer(), stream)
	if len(errs) != 0 || len(frames) != 2 {
		t.Errorf("expected 2 frames and no errors, got %d frames, errors %v", len(frames), errs)
	}
}

func TestSynchronizer_PayloadTooLarge(t *testing.T) {
	s := NewSynchronizer(WithMaxPayload(4))
	frames, errs := feedAll(s, EncodeFrame(0x02, 0xA1, []byte("12345")))
	if len(frames) != 0 {
		t.Error("oversized frame was delivered")
	}
	if len(errs) == 0 || !errors.Is(errs[0], ErrPayloadTooLarge) {
		t.Errorf("expected payload too large, got %v", errs)
	}
}

func TestSynchronizer_StalePartialIsAbandoned(t *testing.T) {
	s := NewSynchronizer(WithStaleLimit(3))
	feedAll(s, presenceFrame[:6])

	for i := 0; i < 2; i++ {
		if err := s.Tick(); err != nil {
			t.Fatalf("tick %d: abandoned too early: %v", i, err)
		}
	}
	err := s.Tick()
	if !errors.Is(err, ErrStalePartial) {
		t.Fatalf("expected stale partial, got %v", err)
	}
	if s.Abandoned() != 1 {
		t.Errorf("expected 1 abandoned partial, got %d", s.Abandoned())
	}

	frames, _ := feedAll(s, presenceFrame)
	if len(frames) != 1 {
		t.Errorf("expected to resynchronize on the next frame, got %d frames", len(frames))
	}
}

func TestSynchronizer_TickResetsOnProgress(t *testing.T) {
	s := NewSynchronizer(WithStaleLimit(2))
	feedAll(s, presenceFrame[:4])
	if err := s.Tick(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feedAll(s, presenceFrame[4:])
	if err := s.Tick(); err != nil {
		t.Errorf("empty buffer should never be abandoned: %v", err)
	}
}

func TestSynchronizer_Reset(t *testing.T) {
	s := NewSynchronizer()
	s.Write(presenceFrame[:5])
	s.Reset()
	if s.Buffered() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", s.Buffered())
	}
}
