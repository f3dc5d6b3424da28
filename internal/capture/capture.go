// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records validated frames to a CBOR stream and plays them
// back.
//
// A capture file is a sequence of CBOR arrays
// [unix_nanos, control, command, payload], one per frame.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
	"github.com/fxamacker/cbor/v2"
)

// Record is one captured frame
type Record struct {
	_         struct{} `cbor:",toarray"`
	UnixNanos int64
	Control   uint8
	Command   uint8
	Payload   []byte
}

// NewRecord captures frame
func NewRecord(f *r60afd1.Frame) Record {
	return Record{
		UnixNanos: f.Timestamp().UnixNano(),
		Control:   f.Control(),
		Command:   f.Command(),
		Payload:   f.Payload(),
	}
}

// Frame rebuilds the captured frame
func (r Record) Frame() *r60afd1.Frame {
	return r60afd1.NewFrameAt(r.Control, r.Command, r.Payload, time.Unix(0, r.UnixNanos))
}

// Writer appends frames to a capture stream. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	enc    *cbor.Encoder
	closer io.Closer
	count  uint64
}

// NewWriter writes records to w
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{enc: cbor.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Create opens path for appending and returns a writer on it
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Write records one frame
func (w *Writer) Write(f *r60afd1.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(NewRecord(f)); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of frames written
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file, if any
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Reader reads frames back from a capture stream
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads records from r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next captured frame, or io.EOF at the end of the stream
func (r *Reader) Next() (*r60afd1.Frame, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec.Frame(), nil
}

// ReadAll returns every frame in r
func ReadAll(r io.Reader) ([]*r60afd1.Frame, error) {
	reader := NewReader(r)
	var frames []*r60afd1.Frame
	for {
		f, err := reader.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
