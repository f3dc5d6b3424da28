// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// ErrNoTransport is returned when sending while no writer is attached
var ErrNoTransport = errors.New("no transport attached")

// Sender writes commands to the radar
type Sender interface {
	Send(cmd Command) error
}

// Transmitter serializes outgoing frames onto one transport so the bytes of
// two frames never interleave. The writer may be swapped on reconnect.
type Transmitter struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
	sent   uint64
	failed uint64
}

// NewTransmitter creates a transmitter writing to w, which may be nil until a
// transport is attached. A nil logger disables logging.
func NewTransmitter(w io.Writer, logger *zap.Logger) *Transmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transmitter{w: w, logger: logger}
}

// SetWriter attaches a new transport
func (t *Transmitter) SetWriter(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w = w
}

// Send writes the whole frame for cmd. Delivery is not acknowledged.
func (t *Transmitter) Send(cmd Command) error {
	wire := cmd.Bytes()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.w == nil {
		t.failed++
		return ErrNoTransport
	}
	n, err := t.w.Write(wire)
	if err == nil && n != len(wire) {
		err = io.ErrShortWrite
	}
	if err != nil {
		t.failed++
		return fmt.Errorf("send %s: %w", cmd.Name, err)
	}
	t.sent++
	t.logger.Debug("command sent", zap.String("command", cmd.Name), zap.Binary("frame", wire))
	return nil
}

// Counts returns the number of commands sent and failed
func (t *Transmitter) Counts() (sent, failed uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent, t.failed
}
