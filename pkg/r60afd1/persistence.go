// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// ErrKeyNotFound is returned by a Store for keys that were never written
var ErrKeyNotFound = errors.New("key not found")

// Store is a flat typed key/value store
type Store interface {
	GetInt(key string) (int64, error)
	GetBool(key string) (bool, error)
	GetString(key string) (string, error)
	SetInt(key string, v int64) error
	SetBool(key string, v bool) error
	SetString(key string, v string) error
	Commit() error
}

// Persisted keys
const (
	KeyAngleX             = "angle_x"
	KeyAngleY             = "angle_y"
	KeyAngleZ             = "angle_z"
	KeyInstallationHeight = "inst_height"
	KeyFallSensitivity    = "fall_sens"
	KeyFallDuration       = "fall_dur"
	KeyBreakingHeight     = "fall_height"
	KeySittingStillDist   = "still_dist"
	KeyMovingDistance     = "move_dist"
	KeyStayStillSwitch    = "still_switch"
	KeyStayStillDuration  = "still_dur"
	KeyFallSwitch         = "fall_switch"
	KeyNonPresenceTime    = "non_p_time"
	KeyHeightAccumulation = "h_acc_t"
	KeyDeviceID           = "device_id"
)

type persistedField struct {
	key  string
	load func(Store, *Settings) error
	save func(Store, Settings) error
}

func intField(key string, lo, hi int64, get func(Settings) int64, set func(*Settings, int64)) persistedField {
	return persistedField{
		key: key,
		load: func(st Store, s *Settings) error {
			v, err := st.GetInt(key)
			if err != nil {
				return err
			}
			if v < lo || v > hi {
				return fmt.Errorf("value %d out of range [%d, %d]", v, lo, hi)
			}
			set(s, v)
			return nil
		},
		save: func(st Store, s Settings) error { return st.SetInt(key, get(s)) },
	}
}

func boolField(key string, get func(Settings) bool, set func(*Settings, bool)) persistedField {
	return persistedField{
		key: key,
		load: func(st Store, s *Settings) error {
			v, err := st.GetBool(key)
			if err != nil {
				return err
			}
			set(s, v)
			return nil
		},
		save: func(st Store, s Settings) error { return st.SetBool(key, get(s)) },
	}
}

var persistedFields = []persistedField{
	intField(KeyAngleX, math.MinInt16, math.MaxInt16,
		func(s Settings) int64 { return int64(s.Angles.X) }, func(s *Settings, v int64) { s.Angles.X = int16(v) }),
	intField(KeyAngleY, math.MinInt16, math.MaxInt16,
		func(s Settings) int64 { return int64(s.Angles.Y) }, func(s *Settings, v int64) { s.Angles.Y = int16(v) }),
	intField(KeyAngleZ, math.MinInt16, math.MaxInt16,
		func(s Settings) int64 { return int64(s.Angles.Z) }, func(s *Settings, v int64) { s.Angles.Z = int16(v) }),
	intField(KeyInstallationHeight, 0, math.MaxUint16,
		func(s Settings) int64 { return int64(s.InstallationHeight) }, func(s *Settings, v int64) { s.InstallationHeight = uint16(v) }),
	intField(KeyFallSensitivity, MinFallSensitivity, MaxFallSensitivity,
		func(s Settings) int64 { return int64(s.FallSensitivity) }, func(s *Settings, v int64) { s.FallSensitivity = uint8(v) }),
	intField(KeyFallDuration, MinFallDuration, MaxFallDuration,
		func(s Settings) int64 { return int64(s.FallDuration) }, func(s *Settings, v int64) { s.FallDuration = uint32(v) }),
	intField(KeyBreakingHeight, MinBreakingHeight, MaxBreakingHeight,
		func(s Settings) int64 { return int64(s.BreakingHeight) }, func(s *Settings, v int64) { s.BreakingHeight = uint16(v) }),
	intField(KeySittingStillDist, MinDistance, MaxDistance,
		func(s Settings) int64 { return int64(s.SittingStillDistance) }, func(s *Settings, v int64) { s.SittingStillDistance = uint16(v) }),
	intField(KeyMovingDistance, MinDistance, MaxDistance,
		func(s Settings) int64 { return int64(s.MovingDistance) }, func(s *Settings, v int64) { s.MovingDistance = uint16(v) }),
	boolField(KeyStayStillSwitch,
		func(s Settings) bool { return s.StayStillSwitch }, func(s *Settings, v bool) { s.StayStillSwitch = v }),
	intField(KeyStayStillDuration, MinStayStillDuration, MaxStayStillDuration,
		func(s Settings) int64 { return int64(s.StayStillDuration) }, func(s *Settings, v int64) { s.StayStillDuration = uint32(v) }),
	boolField(KeyFallSwitch,
		func(s Settings) bool { return s.FallDetectionSwitch }, func(s *Settings, v bool) { s.FallDetectionSwitch = v }),
	intField(KeyNonPresenceTime, 0, math.MaxUint32,
		func(s Settings) int64 { return int64(s.NonPresenceTime) }, func(s *Settings, v int64) { s.NonPresenceTime = uint32(v) }),
	intField(KeyHeightAccumulation, 0, math.MaxUint32,
		func(s Settings) int64 { return int64(s.HeightAccumulationTime) }, func(s *Settings, v int64) { s.HeightAccumulationTime = uint32(v) }),
}

// Persistence maps Settings and the device identity onto a Store
type Persistence struct {
	store  Store
	logger *zap.Logger
}

// NewPersistence wraps store. A nil logger disables logging.
func NewPersistence(store Store, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{store: store, logger: logger}
}

// LoadSettings reads every setting. A key that is missing or unreadable keeps
// its default; the returned error joins the failures of unreadable keys and
// never means the returned settings are unusable.
func (p *Persistence) LoadSettings() (Settings, error) {
	settings := DefaultSettings()
	var errs []error
	for _, f := range persistedFields {
		err := f.load(p.store, &settings)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrKeyNotFound) {
			p.logger.Debug("setting not stored, using default", zap.String("key", f.key))
			continue
		}
		p.logger.Warn("failed to load setting, using default", zap.String("key", f.key), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", f.key, err))
	}
	return settings, errors.Join(errs...)
}

// SaveSettings writes every setting and commits. Keys that fail to write do
// not prevent the others from being saved.
func (p *Persistence) SaveSettings(s Settings) error {
	var errs []error
	for _, f := range persistedFields {
		if err := f.save(p.store, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.key, err))
		}
	}
	if err := p.store.Commit(); err != nil {
		errs = append(errs, fmt.Errorf("commit: %w", err))
	}
	return errors.Join(errs...)
}

// LoadDeviceID returns the stored identity, or fallback when none is stored
// or it cannot be read.
func (p *Persistence) LoadDeviceID(fallback string) (string, error) {
	id, err := p.store.GetString(KeyDeviceID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return fallback, nil
		}
		return fallback, fmt.Errorf("%s: %w", KeyDeviceID, err)
	}
	if id == "" || len(id) > MaxDeviceIDLen {
		return fallback, fmt.Errorf("%s: invalid stored value %q", KeyDeviceID, id)
	}
	return id, nil
}

// SaveDeviceID writes the identity and commits
func (p *Persistence) SaveDeviceID(id string) error {
	if err := p.store.SetString(KeyDeviceID, id); err != nil {
		return fmt.Errorf("%s: %w", KeyDeviceID, err)
	}
	return p.store.Commit()
}
