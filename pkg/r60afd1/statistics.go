// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of frame statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	TotalFrames       uint64
	ValidFrames       uint64
	ChecksumErrors    uint64
	TrailerErrors     uint64
	OversizeErrors    uint64
	AbandonedPartials uint64
	UnknownFrames     uint64
	AnomalousFrames   uint64
	SkippedBytes      uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Statistics tracks frame statistics and error rates. It is safe for
// concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

// Update records one synchronizer or dispatcher outcome: a frame with its
// anomalies, or an error.
func (s *Statistics) Update(frame *Frame, err error, anomalies []ValidationError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.c
	c.LastUpdateTime = time.Now()

	if err != nil {
		var unknown *UnknownFrameError
		switch {
		case errors.Is(err, ErrChecksumMismatch):
			c.TotalFrames++
			c.ChecksumErrors++
		case errors.Is(err, ErrTrailerMismatch):
			c.TrailerErrors++
		case errors.Is(err, ErrPayloadTooLarge):
			c.OversizeErrors++
		case errors.Is(err, ErrStalePartial):
			c.AbandonedPartials++
		case errors.As(err, &unknown):
			c.TotalFrames++
			c.UnknownFrames++
		}
		return
	}

	if frame == nil {
		return
	}
	c.TotalFrames++
	if len(anomalies) > 0 {
		c.AnomalousFrames++
	} else {
		c.ValidFrames++
	}
}

// SetSkippedBytes records the synchronizer's skipped byte count
func (s *Statistics) SetSkippedBytes(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.SkippedBytes = n
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.c
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.FrameRate = float64(c.TotalFrames) / elapsed
		c.ErrorRate = float64(c.Errors()) / elapsed
	}
	return c
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// Errors returns the number of transport corruption events
func (c Counters) Errors() uint64 {
	return c.ChecksumErrors + c.TrailerErrors + c.OversizeErrors + c.AbandonedPartials
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	var validPercent, checksumPercent, unknownPercent, anomalousPercent float64
	if c.TotalFrames > 0 {
		validPercent = float64(c.ValidFrames) * 100.0 / float64(c.TotalFrames)
		checksumPercent = float64(c.ChecksumErrors) * 100.0 / float64(c.TotalFrames)
		unknownPercent = float64(c.UnknownFrames) * 100.0 / float64(c.TotalFrames)
		anomalousPercent = float64(c.AnomalousFrames) * 100.0 / float64(c.TotalFrames)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", c.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", c.ValidFrames, validPercent)

	if c.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", c.ChecksumErrors, checksumPercent)
	}
	if c.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Frames:  %8d (%.1f%%)\n", c.UnknownFrames, unknownPercent)
	}
	if c.AnomalousFrames > 0 {
		result += fmt.Sprintf("Anomalous:       %8d (%.1f%%)\n", c.AnomalousFrames, anomalousPercent)
	}
	if c.TrailerErrors > 0 {
		result += fmt.Sprintf("Trailer Errors:  %8d\n", c.TrailerErrors)
	}
	if c.OversizeErrors > 0 {
		result += fmt.Sprintf("Oversize Length: %8d\n", c.OversizeErrors)
	}
	if c.AbandonedPartials > 0 {
		result += fmt.Sprintf("Stale Partials:  %8d\n", c.AbandonedPartials)
	}
	if c.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", c.SkippedBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}
