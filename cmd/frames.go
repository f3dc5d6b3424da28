// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"time"

	"github.com/Thermoquad/radarstat/internal/logging"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

// streamFrames reads conn until it fails, passing every validated frame to
// onFrame and every rejection to onError. The synchronizer's poll cycle
// advances at most once per configured poll interval.
func streamFrames(conn io.Reader, onFrame func(*r60afd1.Frame), onError func(error)) error {
	sync := r60afd1.NewSynchronizer(r60afd1.WithStaleLimit(cfg.Transport.StaleLimit))
	buf := make([]byte, 256)
	lastTick := time.Now()

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			logging.LogRawBytes("rx", buf[:n])
			for _, f := range sync.Feed(buf[:n], onError) {
				onFrame(f)
			}
		}
		if time.Since(lastTick) >= cfg.Transport.PollInterval {
			lastTick = time.Now()
			if tickErr := sync.Tick(); tickErr != nil && onError != nil {
				onError(tickErr)
			}
		}
		if err != nil {
			return err
		}
	}
}
