// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/internal/bridge"
	"github.com/Thermoquad/radarstat/internal/logging"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and configuring the radar",
	Long: `Monitor and configure an R60AFD1 radar via an interactive terminal UI.

The monitor runs the same pipeline as the bridge without publishing to MQTT
or the hub:
  - Live telemetry, settings and product identity panels
  - Frame statistics
  - Event log (connection changes, alarms, unknown frames, applied settings)
  - Periodic queries and startup settings sync
  - Automatic reconnection on connection loss

Press 's' to type a JSON settings delta, for example
  {"fall_duration": 30, "fall_detection_switch": true}
which is applied to the radar and persisted. Press 'f' to log every frame.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// monitorEvent is something the pipeline reports to the TUI
type monitorEvent struct {
	at    time.Time
	frame *r60afd1.Frame
	up    string
	down  error
}

// monitorSink receives frames and transport changes from the bridge and
// forwards them to the TUI in batches.
type monitorSink struct {
	events chan monitorEvent
}

func newMonitorSink() *monitorSink {
	return &monitorSink{events: make(chan monitorEvent, 256)}
}

func (s *monitorSink) push(ev monitorEvent) {
	ev.at = time.Now()
	select {
	case s.events <- ev:
	default:
	}
}

// Write implements bridge.FrameRecorder
func (s *monitorSink) Write(f *r60afd1.Frame) error {
	s.push(monitorEvent{frame: f})
	return nil
}

func (s *monitorSink) TransportUp(info string) {
	s.push(monitorEvent{up: info})
}

func (s *monitorSink) TransportDown(err error) {
	s.push(monitorEvent{down: err})
}

// forward sends batched events to the TUI at a fixed rate
func (s *monitorSink) forward(ctx context.Context, p *tea.Program) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var batch monitorBatchMsg
		drainLoop:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				p.Send(batch)
			}
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger()

	dial, err := newDialer(cfg.Transport)
	if err != nil {
		return err
	}
	persistence, _, err := openPersistence(logger)
	if err != nil {
		return err
	}
	deviceID, err := persistence.LoadDeviceID(r60afd1.DefaultDeviceID)
	if err != nil {
		logger.Warn("stored device id unusable", zap.Error(err))
	}

	sink := newMonitorSink()
	b := bridge.New(bridge.Options{
		Dial:         dial,
		State:        r60afd1.NewState(deviceID),
		Persistence:  persistence,
		Schedule:     cfg.Schedule,
		PollInterval: cfg.Transport.PollInterval,
		StaleLimit:   cfg.Transport.StaleLimit,
		Recorder:     sink,
		Observer:     sink,
		Logger:       logger.Named("bridge"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := initialMonitorModel(ctx, b, transportLabel())
	p := tea.NewProgram(m, tea.WithAltScreen())

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		b.Run(ctx)
	}()
	go sink.forward(ctx, p)

	_, runErr := p.Run()
	cancel()
	<-bridgeDone
	b.Close()

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

// transportLabel describes the configured transport before it is opened
func transportLabel() string {
	if cfg.Transport.URL != "" {
		return cfg.Transport.URL
	}
	return fmt.Sprintf("%s @ %d baud", cfg.Transport.Port, cfg.Transport.Baud)
}
