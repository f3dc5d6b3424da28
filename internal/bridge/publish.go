// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

// Publisher is an outlet for snapshots: the MQTT client or the local hub
type Publisher interface {
	PublishLive(r60afd1.LiveSnapshot) error
	PublishSettings(r60afd1.SettingsSnapshot) error
	PublishInfo(r60afd1.ProductSnapshot) error
}

// fanout publishes each snapshot to every outlet. A failing outlet is logged
// and does not affect the others.
type fanout struct {
	outlets []Publisher
	logger  *zap.Logger
}

var _ r60afd1.SettingsPublisher = (*fanout)(nil)

func (f *fanout) each(kind string, fn func(Publisher) error) {
	for _, p := range f.outlets {
		if err := fn(p); err != nil {
			f.logger.Warn("publish failed", zap.String("snapshot", kind), zap.Error(err))
		}
	}
}

func (f *fanout) PublishLive(s r60afd1.LiveSnapshot) {
	f.each("live", func(p Publisher) error { return p.PublishLive(s) })
}

func (f *fanout) PublishSettings(s r60afd1.SettingsSnapshot) {
	f.each("settings", func(p Publisher) error { return p.PublishSettings(s) })
}

func (f *fanout) PublishInfo(s r60afd1.ProductSnapshot) {
	f.each("info", func(p Publisher) error { return p.PublishInfo(s) })
}
