// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge runs the radar service: it ingests frames from the
// transport into the State, polls the radar on a schedule, publishes
// snapshots and routes configuration deltas to the Reconciler.
package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/internal/config"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	intakeQueue    = 8
)

// DialFunc opens the transport to the radar and describes it
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, string, error)

// FrameRecorder records validated frames, e.g. a capture.Writer
type FrameRecorder interface {
	Write(*r60afd1.Frame) error
}

// TransportObserver is told when the transport comes up or is lost
type TransportObserver interface {
	TransportUp(info string)
	TransportDown(err error)
}

// Options configures a Bridge
type Options struct {
	Dial         DialFunc
	State        *r60afd1.State
	Persistence  *r60afd1.Persistence
	Schedule     config.Schedule
	PollInterval time.Duration
	StaleLimit   int
	Publishers   []Publisher
	Recorder     FrameRecorder
	Observer     TransportObserver
	Restarter    r60afd1.Restarter
	Logger       *zap.Logger
}

// Bridge owns the pipeline between one radar and its outlets
type Bridge struct {
	dial       DialFunc
	state      *r60afd1.State
	persist    *r60afd1.Persistence
	schedule   config.Schedule
	poll       time.Duration
	recorder   FrameRecorder
	observer   TransportObserver
	logger     *zap.Logger
	sync       *r60afd1.Synchronizer
	dispatcher *r60afd1.Dispatcher
	tx         *r60afd1.Transmitter
	reconciler *r60afd1.Reconciler
	stats      *r60afd1.Statistics
	out        *fanout

	connMu sync.Mutex
	conn   io.ReadWriteCloser

	intake      chan []byte
	syncReq     chan struct{}
	productReq  chan struct{}
	infoReq     chan struct{}
	settingsReq chan struct{}

	minBackoff time.Duration
	maxBackoff time.Duration
}

// New creates a bridge. Zero schedule fields take the configuration defaults.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule := opts.Schedule.Filled()
	poll := opts.PollInterval
	if poll <= 0 {
		poll = config.Default().Transport.PollInterval
	}
	staleLimit := opts.StaleLimit
	if staleLimit <= 0 {
		staleLimit = r60afd1.DefaultStaleLimit
	}

	b := &Bridge{
		dial:        opts.Dial,
		state:       opts.State,
		persist:     opts.Persistence,
		schedule:    schedule,
		poll:        poll,
		recorder:    opts.Recorder,
		observer:    opts.Observer,
		logger:      logger,
		sync:        r60afd1.NewSynchronizer(r60afd1.WithStaleLimit(staleLimit)),
		dispatcher:  r60afd1.NewDispatcher(opts.State, logger.Named("dispatch")),
		tx:          r60afd1.NewTransmitter(nil, logger.Named("tx")),
		stats:       r60afd1.NewStatistics(),
		out:         &fanout{outlets: opts.Publishers, logger: logger},
		intake:      make(chan []byte, intakeQueue),
		syncReq:     make(chan struct{}, 1),
		productReq:  make(chan struct{}, 1),
		infoReq:     make(chan struct{}, 1),
		settingsReq: make(chan struct{}, 1),
		minBackoff:  initialBackoff,
		maxBackoff:  maxBackoff,
	}

	ropts := []r60afd1.ReconcilerOption{
		r60afd1.WithCommandSpacing(schedule.CommandSpacing),
		r60afd1.WithRestartDelay(schedule.RestartDelay),
		r60afd1.WithPublisher(b.out),
		r60afd1.WithReconcilerLogger(logger.Named("reconcile")),
	}
	if opts.Persistence != nil {
		ropts = append(ropts, r60afd1.WithPersister(opts.Persistence))
	}
	if opts.Restarter != nil {
		ropts = append(ropts, r60afd1.WithRestarter(opts.Restarter))
	}
	b.reconciler = r60afd1.NewReconciler(opts.State, b.tx, ropts...)
	return b
}

// AddPublisher adds a snapshot outlet. It must be called before Run.
func (b *Bridge) AddPublisher(p Publisher) {
	b.out.outlets = append(b.out.outlets, p)
}

// State returns the device state the bridge maintains
func (b *Bridge) State() *r60afd1.State {
	return b.state
}

// Reconciler returns the bridge's settings reconciler
func (b *Bridge) Reconciler() *r60afd1.Reconciler {
	return b.reconciler
}

// Statistics returns the current frame counters
func (b *Bridge) Statistics() r60afd1.Counters {
	return b.stats.Snapshot()
}

// Close detaches and closes the current transport. The ingest task
// reconnects unless its context is done.
func (b *Bridge) Close() error {
	b.connMu.Lock()
	conn := b.conn
	b.conn = nil
	b.connMu.Unlock()

	b.tx.SetWriter(nil)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Intake queues a JSON configuration delta for the Reconciler. It never
// blocks; a delta arriving while the queue is full is dropped.
func (b *Bridge) Intake(payload []byte) bool {
	data := append([]byte(nil), payload...)
	select {
	case b.intake <- data:
		return true
	default:
		b.logger.Warn("configuration intake queue full, dropping delta", zap.ByteString("delta", data))
		return false
	}
}

// HandleSettingsUpdate queues a delta received from the broker
func (b *Bridge) HandleSettingsUpdate(payload []byte) {
	b.Intake(payload)
}

// HandleInfoRequest publishes the product identity on request
func (b *Bridge) HandleInfoRequest() {
	notify(b.infoReq)
}

// HandleSettingsRequest publishes the settings on request
func (b *Bridge) HandleSettingsRequest() {
	notify(b.settingsReq)
}

// Run loads the persisted settings and runs the bridge until ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	b.loadSettings()

	var wg sync.WaitGroup
	for _, task := range []func(context.Context){b.ingest, b.commands, b.scheduler} {
		wg.Add(1)
		go func(task func(context.Context)) {
			defer wg.Done()
			task(ctx)
		}(task)
	}
	wg.Wait()
	return nil
}

func (b *Bridge) loadSettings() {
	if b.persist == nil {
		return
	}
	settings, err := b.persist.LoadSettings()
	if err != nil {
		b.logger.Warn("some settings could not be loaded, using defaults for them", zap.Error(err))
	}
	b.state.ReplaceSettings(settings)
}

// commands executes every multi-frame command sequence one at a time:
// startup sync, product info queries and configuration batches.
func (b *Bridge) commands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.syncReq:
			b.startupSync(ctx)
		case <-b.productReq:
			b.queryProductInfo(ctx)
		case data := <-b.intake:
			b.applyDelta(ctx, data)
		}
	}
}

func (b *Bridge) startupSync(ctx context.Context) {
	b.logger.Info("pushing persisted settings to radar")
	if err := b.reconciler.ApplySettings(ctx, b.state.Settings()); err != nil {
		b.logger.Warn("startup sync incomplete", zap.Error(err))
	}
	b.queryProductInfo(ctx)
}

// queryProductInfo sends the four product queries and publishes the identity
// once the replies have had time to arrive.
func (b *Bridge) queryProductInfo(ctx context.Context) {
	for i, cmd := range r60afd1.ProductInfoQueries() {
		if i > 0 && !sleep(ctx, b.schedule.ProductInfoGap) {
			return
		}
		b.send(cmd)
	}
	if !sleep(ctx, b.schedule.ProductInfoGap) {
		return
	}
	b.out.PublishInfo(b.state.ProductSnapshot())
}

func (b *Bridge) applyDelta(ctx context.Context, data []byte) {
	result, err := b.reconciler.ApplyJSON(ctx, data)
	if err != nil {
		b.logger.Warn("configuration delta not applied", zap.Error(err))
		return
	}
	b.logger.Info("configuration applied",
		zap.Strings("applied", result.Applied),
		zap.Any("clamped", result.Clamped),
		zap.Strings("ignored", result.Ignored),
		zap.Int("failed", len(result.Failed)),
	)
}

func (b *Bridge) send(cmd r60afd1.Command) {
	if err := b.tx.Send(cmd); err != nil {
		b.logger.Debug("command not sent", zap.String("command", cmd.Name), zap.Error(err))
	}
}

// sleep waits for d and reports whether ctx is still live
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
