// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Configuration intake keys that are not settings
const (
	DeltaSetDeviceID = "set_device_id"
	DeltaReboot      = "reboot"
)

// Reconciler defaults
const (
	DefaultCommandSpacing = 200 * time.Millisecond
	DefaultRestartDelay   = 3 * time.Second
)

// Persister saves settings and the device identity
type Persister interface {
	SaveSettings(Settings) error
	SaveDeviceID(id string) error
}

// SettingsPublisher republishes settings after a batch is applied
type SettingsPublisher interface {
	PublishSettings(SettingsSnapshot)
}

// Restarter restarts the process
type Restarter interface {
	Restart(reason string)
}

// Phase is the Reconciler's position in a batch
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseApplying
	PhaseDone
	PhaseRestarting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseApplying:
		return "APPLYING"
	case PhaseDone:
		return "DONE"
	case PhaseRestarting:
		return "RESTARTING"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

// Result reports what a batch did
type Result struct {
	Applied    []string          // keys whose command reached the transport
	Clamped    map[string]string // key -> applied value, when it differs from the request
	Ignored    []string          // unrecognized keys or values of the wrong type
	Failed     map[string]error  // keys whose command could not be sent
	Restarting bool
}

// settingApplier turns a raw JSON value into a command and the matching
// optimistic state update. ok is false when the value has the wrong type.
type settingApplier func(raw json.RawMessage) (cmd Command, commit func(*Settings), applied string, requested string, ok bool)

type settingKey struct {
	key   string
	apply settingApplier
}

func numberSetting[T any](encode func(int64) (Command, T), store func(*Settings, T)) settingApplier {
	return func(raw json.RawMessage) (Command, func(*Settings), string, string, bool) {
		v, ok := parseNumber(raw)
		if !ok {
			return Command{}, nil, "", "", false
		}
		cmd, applied := encode(v)
		return cmd, func(s *Settings) { store(s, applied) }, fmt.Sprint(applied), fmt.Sprint(v), true
	}
}

func switchSetting(encode func(bool) Command, store func(*Settings, bool)) settingApplier {
	return func(raw json.RawMessage) (Command, func(*Settings), string, string, bool) {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return Command{}, nil, "", "", false
		}
		v, ok := decoded.(bool)
		if !ok {
			return Command{}, nil, "", "", false
		}
		s := fmt.Sprint(v)
		return encode(v), func(st *Settings) { store(st, v) }, s, s, true
	}
}

// settingOrder is the fixed order in which a batch is applied. The
// installation angles are handled ahead of it as one command.
var settingOrder = []settingKey{
	{"installation_height", numberSetting(SetInstallationHeight, func(s *Settings, v uint16) { s.InstallationHeight = v })},
	{"fall_detection_sensitivity", numberSetting(SetFallSensitivity, func(s *Settings, v uint8) { s.FallSensitivity = v })},
	{"fall_duration", numberSetting(SetFallDuration, func(s *Settings, v uint32) { s.FallDuration = v })},
	{"fall_breaking_height", numberSetting(SetBreakingHeight, func(s *Settings, v uint16) { s.BreakingHeight = v })},
	{"sitting_still_distance", numberSetting(SetSittingStillDistance, func(s *Settings, v uint16) { s.SittingStillDistance = v })},
	{"moving_distance", numberSetting(SetMovingDistance, func(s *Settings, v uint16) { s.MovingDistance = v })},
	{"stay_still_switch", switchSetting(SetStayStillSwitch, func(s *Settings, v bool) { s.StayStillSwitch = v })},
	{"stay_still_duration", numberSetting(SetStayStillDuration, func(s *Settings, v uint32) { s.StayStillDuration = v })},
	{"fall_detection_switch", switchSetting(SetFallDetectionSwitch, func(s *Settings, v bool) { s.FallDetectionSwitch = v })},
	{"height_accumulation_time", numberSetting(SetHeightAccumulationTime, func(s *Settings, v uint32) { s.HeightAccumulationTime = v })},
	{"non_presence_time", numberSetting(SetNonPresenceTime, func(s *Settings, v uint32) { s.NonPresenceTime = v })},
}

var angleKeys = [3]string{"installation_angle_x", "installation_angle_y", "installation_angle_z"}

// SettingKeys lists every recognized setting key in application order
func SettingKeys() []string {
	keys := append([]string{}, angleKeys[:]...)
	for _, s := range settingOrder {
		keys = append(keys, s.key)
	}
	return keys
}

// parseNumber accepts a JSON number and truncates it toward zero,
// saturating at the int64 range. null and every other type are rejected.
func parseNumber(raw json.RawMessage) (int64, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, false
	}
	f, ok := decoded.(float64)
	if !ok {
		return 0, false
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithCommandSpacing sets the delay inserted between two commands
func WithCommandSpacing(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.spacing = d }
}

// WithRestartDelay sets the wait between persisting a new identity and restarting
func WithRestartDelay(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.restartDelay = d }
}

// WithPersister sets the persistence collaborator
func WithPersister(p Persister) ReconcilerOption {
	return func(r *Reconciler) { r.persister = p }
}

// WithPublisher sets the collaborator notified after each batch
func WithPublisher(p SettingsPublisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = p }
}

// WithRestarter sets the collaborator that restarts the process
func WithRestarter(rs Restarter) ReconcilerOption {
	return func(r *Reconciler) { r.restarter = rs }
}

// WithReconcilerLogger sets the logger
func WithReconcilerLogger(l *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reconciler applies configuration deltas to the radar and the State
type Reconciler struct {
	state        *State
	sender       Sender
	persister    Persister
	publisher    SettingsPublisher
	restarter    Restarter
	spacing      time.Duration
	restartDelay time.Duration
	logger       *zap.Logger

	batch sync.Mutex // one batch at a time
	mu    sync.Mutex
	phase Phase
	field string
}

// NewReconciler creates a reconciler sending through sender
func NewReconciler(state *State, sender Sender, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		state:        state,
		sender:       sender,
		spacing:      DefaultCommandSpacing,
		restartDelay: DefaultRestartDelay,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Phase returns the current phase and, while applying, the key in flight
func (r *Reconciler) Phase() (Phase, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase, r.field
}

func (r *Reconciler) setPhase(p Phase, field string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
	r.field = field
}

// ApplyJSON decodes a JSON object and applies it as one batch
func (r *Reconciler) ApplyJSON(ctx context.Context, data []byte) (Result, error) {
	var delta map[string]json.RawMessage
	if err := json.Unmarshal(data, &delta); err != nil {
		return Result{}, fmt.Errorf("invalid configuration delta: %w", err)
	}
	return r.Apply(ctx, delta)
}

// Apply applies one batch of configuration deltas.
//
// An identity change or restart request ends the batch before any setting is
// sent. Otherwise every recognized key is sent in a fixed order with the
// command spacing between sends, the State is updated after each successful
// send, and the settings are persisted and republished once at the end.
func (r *Reconciler) Apply(ctx context.Context, delta map[string]json.RawMessage) (Result, error) {
	r.batch.Lock()
	defer r.batch.Unlock()

	result := Result{Clamped: map[string]string{}, Failed: map[string]error{}}
	recognized := map[string]bool{DeltaSetDeviceID: true, DeltaReboot: true}
	for _, k := range SettingKeys() {
		recognized[k] = true
	}
	for k := range delta {
		if !recognized[k] {
			result.Ignored = append(result.Ignored, k)
		}
	}

	if restarted, err := r.handleRestartKeys(ctx, delta, &result); restarted || err != nil {
		return result, err
	}

	sent := 0
	send := func(key string, cmd Command, commit func(*Settings)) error {
		if sent > 0 {
			if err := sleepCtx(ctx, r.spacing); err != nil {
				return err
			}
		}
		sent++
		r.setPhase(PhaseApplying, key)
		if err := r.sender.Send(cmd); err != nil {
			r.logger.Warn("failed to send setting", zap.String("key", key), zap.Error(err))
			result.Failed[key] = err
			return nil
		}
		r.state.UpdateSettings(commit)
		result.Applied = append(result.Applied, key)
		return nil
	}

	var ctxErr error
	if cmd, commit, ok := r.anglesCommand(delta, &result); ok {
		ctxErr = send("installation_angles", cmd, commit)
	}
	for _, s := range settingOrder {
		if ctxErr != nil {
			break
		}
		raw, present := delta[s.key]
		if !present {
			continue
		}
		cmd, commit, applied, requested, ok := s.apply(raw)
		if !ok {
			r.logger.Debug("ignoring setting with wrong value type", zap.String("key", s.key), zap.ByteString("value", raw))
			result.Ignored = append(result.Ignored, s.key)
			continue
		}
		if applied != requested {
			r.logger.Debug("setting clamped", zap.String("key", s.key), zap.String("requested", requested), zap.String("applied", applied))
			result.Clamped[s.key] = applied
		}
		ctxErr = send(s.key, cmd, commit)
	}

	if sent > 0 {
		r.finish()
	}
	r.setPhase(PhaseDone, "")
	return result, ctxErr
}

// anglesCommand merges any installation angle keys with the current angles
// into one command.
func (r *Reconciler) anglesCommand(delta map[string]json.RawMessage, result *Result) (Command, func(*Settings), bool) {
	current := r.state.InstallationAngles()
	values := [3]int64{int64(current.X), int64(current.Y), int64(current.Z)}
	requested := [3]int64{}
	found := false
	for i, key := range angleKeys {
		raw, present := delta[key]
		if !present {
			continue
		}
		v, ok := parseNumber(raw)
		if !ok {
			result.Ignored = append(result.Ignored, key)
			continue
		}
		values[i] = v
		requested[i] = v
		found = true
	}
	if !found {
		return Command{}, nil, false
	}
	cmd, applied := SetInstallationAngles(values[0], values[1], values[2])
	got := [3]int64{int64(applied.X), int64(applied.Y), int64(applied.Z)}
	for i, key := range angleKeys {
		if _, present := delta[key]; present && got[i] != requested[i] {
			result.Clamped[key] = fmt.Sprint(got[i])
		}
	}
	return cmd, func(s *Settings) { s.Angles = applied }, true
}

// handleRestartKeys processes the identity and restart keys. It reports
// whether the batch ends in a restart.
func (r *Reconciler) handleRestartKeys(ctx context.Context, delta map[string]json.RawMessage, result *Result) (bool, error) {
	if raw, ok := delta[DeltaSetDeviceID]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id == "" {
			result.Ignored = append(result.Ignored, DeltaSetDeviceID)
		} else {
			id = truncateDeviceID(id)
			r.setPhase(PhaseRestarting, DeltaSetDeviceID)
			r.state.SetDeviceID(id)
			if r.persister != nil {
				if err := r.persister.SaveDeviceID(id); err != nil {
					r.logger.Error("failed to persist device id", zap.String("device_id", id), zap.Error(err))
				}
			}
			r.logger.Info("device id changed, restarting", zap.String("device_id", id), zap.Duration("delay", r.restartDelay))
			result.Applied = append(result.Applied, DeltaSetDeviceID)
			result.Restarting = true
			if err := sleepCtx(ctx, r.restartDelay); err != nil {
				return true, err
			}
			r.restart("device id changed")
			return true, nil
		}
	}

	if raw, ok := delta[DeltaReboot]; ok {
		var decoded any
		_ = json.Unmarshal(raw, &decoded)
		reboot, ok := decoded.(bool)
		if !ok {
			result.Ignored = append(result.Ignored, DeltaReboot)
		} else if reboot {
			r.setPhase(PhaseRestarting, DeltaReboot)
			r.logger.Info("restart requested")
			result.Applied = append(result.Applied, DeltaReboot)
			result.Restarting = true
			r.restart("restart requested")
			return true, nil
		}
	}
	return false, nil
}

// truncateDeviceID shortens id to MaxDeviceIDLen bytes without splitting a rune
func truncateDeviceID(id string) string {
	if len(id) <= MaxDeviceIDLen {
		return id
	}
	cut := MaxDeviceIDLen
	for cut > 0 && !utf8.RuneStart(id[cut]) {
		cut--
	}
	return id[:cut]
}

func (r *Reconciler) restart(reason string) {
	if r.restarter != nil {
		r.restarter.Restart(reason)
	}
}

// finish persists and republishes the settings after a batch
func (r *Reconciler) finish() {
	settings := r.state.Settings()
	if r.persister != nil {
		if err := r.persister.SaveSettings(settings); err != nil {
			r.logger.Error("failed to persist settings", zap.Error(err))
		}
	}
	if r.publisher != nil {
		r.publisher.PublishSettings(r.state.SettingsSnapshot())
	}
}

// ApplySettings enables presence reporting and pushes every setting in s to
// the radar, clamped. It is used at startup to bring the radar in line with
// the persisted settings already loaded into the State.
func (r *Reconciler) ApplySettings(ctx context.Context, s Settings) error {
	r.batch.Lock()
	defer r.batch.Unlock()
	defer r.setPhase(PhaseDone, "")

	s = s.Clamped()
	cmds := append([]Command{SetHumanPresence(true)}, SettingsCommands(s)...)

	var errs []error
	for i, cmd := range cmds {
		if i > 0 {
			if err := sleepCtx(ctx, r.spacing); err != nil {
				return err
			}
		}
		r.setPhase(PhaseApplying, cmd.Name)
		if err := r.sender.Send(cmd); err != nil {
			r.logger.Warn("failed to send setting", zap.String("command", cmd.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
