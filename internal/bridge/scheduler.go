// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"time"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

// scheduler sends the periodic queries and publishes the periodic snapshots.
// Product info is queried through the command task so its four queries keep
// their spacing.
func (b *Bridge) scheduler(ctx context.Context) {
	s := b.schedule
	type job struct {
		every time.Duration
		run   func()
	}
	jobs := []job{
		{s.WorkingStatus, func() { b.send(r60afd1.QueryWorkingStatus()) }},
		{s.Heartbeat, func() { b.send(r60afd1.QueryHeartbeat()) }},
		{s.Height, func() {
			b.send(r60afd1.QueryHeightDistribution())
			b.send(r60afd1.QueryHeightProportion())
		}},
		{s.OperatingTime, func() { b.send(r60afd1.QueryOperatingTime()) }},
		{s.ProductInfo, func() { notify(b.productReq) }},
		{s.LivePublish, func() { b.out.PublishLive(b.state.LiveSnapshot()) }},
		{s.SettingsPublish, func() { b.out.PublishSettings(b.state.SettingsSnapshot()) }},
	}

	tickers := make([]*time.Ticker, len(jobs))
	for i, j := range jobs {
		tickers[i] = time.NewTicker(j.every)
		defer tickers[i].Stop()
	}

	// Fan the tickers into one channel of job indexes
	due := make(chan int)
	for i, t := range tickers {
		go func(i int, t *time.Ticker) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					select {
					case due <- i:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i, t)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case i := <-due:
			jobs[i].run()
		case <-b.infoReq:
			b.out.PublishInfo(b.state.ProductSnapshot())
		case <-b.settingsReq:
			b.out.PublishSettings(b.state.SettingsSnapshot())
		}
	}
}
