// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

const (
	readBufferSize = 256
	chunkQueue     = 64
)

// ingest keeps a transport open and runs the receive pipeline on it,
// reconnecting with exponential backoff whenever it is lost.
func (b *Bridge) ingest(ctx context.Context) {
	backoff := b.minBackoff
	for {
		conn, info, err := b.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("transport unavailable", zap.Error(err), zap.Duration("retry", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, b.maxBackoff)
			continue
		}
		backoff = b.minBackoff

		b.logger.Info("transport connected", zap.String("connection", info))
		b.connMu.Lock()
		b.conn = conn
		b.connMu.Unlock()
		b.tx.SetWriter(conn)
		if b.observer != nil {
			b.observer.TransportUp(info)
		}
		notify(b.syncReq)

		err = b.pump(ctx, conn)
		b.Close()
		b.sync.Reset()
		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("transport lost", zap.Error(err), zap.Duration("retry", backoff))
		if b.observer != nil {
			b.observer.TransportDown(err)
		}
		if !sleep(ctx, backoff) {
			return
		}
	}
}

// pump reads conn on its own goroutine and processes what arrived once per
// poll cycle until the transport fails or ctx is done.
func (b *Bridge) pump(ctx context.Context, conn io.Reader) error {
	chunks := make(chan []byte, chunkQueue)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, readBufferSize)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				select {
				case chunks <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			b.pollOnce(chunks)
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return err
		case <-ticker.C:
			b.pollOnce(chunks)
		}
	}
}

// pollOnce drains the pending chunks through the pipeline and ends the
// synchronizer's poll cycle.
func (b *Bridge) pollOnce(chunks <-chan []byte) {
	var data []byte
drain:
	for {
		select {
		case chunk := <-chunks:
			data = append(data, chunk...)
		default:
			break drain
		}
	}

	for _, frame := range b.sync.Feed(data, b.syncError) {
		b.handleFrame(frame)
	}
	if err := b.sync.Tick(); err != nil {
		b.syncError(err)
	}
	b.stats.SetSkippedBytes(b.sync.Skipped())
}

func (b *Bridge) syncError(err error) {
	b.stats.Update(nil, err, nil)
	b.logger.Debug("frame rejected", zap.Error(err))
}

// handleFrame validates, dispatches, counts and records one frame
func (b *Bridge) handleFrame(frame *r60afd1.Frame) {
	anomalies := r60afd1.ValidateFrame(frame)
	for _, a := range anomalies {
		b.logger.Warn("report anomaly",
			zap.String("type", a.Type.String()),
			zap.String("frame", r60afd1.FrameName(frame)),
			zap.String("detail", a.Message),
		)
	}

	if _, err := b.dispatcher.Dispatch(frame); err != nil {
		b.stats.Update(frame, err, nil)
	} else {
		b.stats.Update(frame, nil, anomalies)
	}

	if b.recorder != nil {
		if err := b.recorder.Write(frame); err != nil {
			b.logger.Warn("capture write failed", zap.Error(err))
		}
	}
}
