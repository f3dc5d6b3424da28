// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/internal/bridge"
	"github.com/Thermoquad/radarstat/internal/capture"
	"github.com/Thermoquad/radarstat/internal/hub"
	"github.com/Thermoquad/radarstat/internal/logging"
	"github.com/Thermoquad/radarstat/internal/mqtt"
	"github.com/Thermoquad/radarstat/internal/store"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var (
	bridgeCapture string
	bridgeNoMQTT  bool
	bridgeNoHub   bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the radar bridge service",
	Long: `Run the radar bridge: keep the device state from the radar's reports and
publish it, and apply configuration changes received from clients.

The bridge:
  - Decodes every frame from the serial or WebSocket transport
  - Polls working status, heartbeat, height distribution and operating time
  - Pushes the persisted settings to the radar at startup
  - Publishes live, settings and product snapshots over MQTT and the local hub
  - Applies JSON configuration deltas from MQTT or hub websocket clients
  - Reconnects automatically when the transport is lost

MQTT topics (QoS 1, not retained):
  Publish:   R60AFD1/live, R60AFD1/settings_state, R60AFD1/info
  Subscribe: <device_id>/settings_update, <device_id>/info, <device_id>/settings_state

The MQTT password is read from RADARSTAT_MQTT_PASSWORD, or prompted
interactively when an MQTT username is configured.`,
	Annotations: map[string]string{logFallbackAnnotation: "info"},
	RunE:        runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeCapture, "capture", "", "Append validated frames to a CBOR capture file")
	bridgeCmd.Flags().BoolVar(&bridgeNoMQTT, "no-mqtt", false, "Disable MQTT even if enabled in the configuration")
	bridgeCmd.Flags().BoolVar(&bridgeNoHub, "no-hub", false, "Disable the local hub even if enabled in the configuration")
}

// openPersistence opens the settings store named by the configuration
func openPersistence(logger *zap.Logger) (*r60afd1.Persistence, *store.FileStore, error) {
	path, err := cfg.ResolveStorePath()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		// A corrupt store still yields an empty, usable store
		logger.Warn("settings store unreadable, using defaults", zap.String("path", path), zap.Error(err))
	}
	return r60afd1.NewPersistence(st, logger.Named("persist")), st, nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger()

	dial, err := newDialer(cfg.Transport)
	if err != nil {
		return err
	}

	persistence, _, err := openPersistence(logger)
	if err != nil {
		return err
	}
	fallbackID := cfg.DeviceID
	if fallbackID == "" {
		fallbackID = r60afd1.DefaultDeviceID
	}
	deviceID, err := persistence.LoadDeviceID(fallbackID)
	if err != nil {
		logger.Warn("stored device id unusable", zap.Error(err))
	}
	state := r60afd1.NewState(deviceID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder bridge.FrameRecorder
	capturePath := bridgeCapture
	if capturePath == "" {
		capturePath = cfg.Capture
	}
	if capturePath != "" {
		w, err := capture.Create(capturePath)
		if err != nil {
			return err
		}
		defer w.Close()
		recorder = w
	}

	restarter := bridge.NewExecRestarter(logger.Named("restart"))
	b := bridge.New(bridge.Options{
		Dial:         dial,
		State:        state,
		Persistence:  persistence,
		Schedule:     cfg.Schedule,
		PollInterval: cfg.Transport.PollInterval,
		StaleLimit:   cfg.Transport.StaleLimit,
		Recorder:     recorder,
		Restarter:    restarter,
		Logger:       logger.Named("bridge"),
	})
	restarter.Closers = append(restarter.Closers, b)

	if cfg.MQTT.Enabled && !bridgeNoMQTT {
		password := ""
		if cfg.MQTT.Username != "" {
			if password, err = GetPassword(MQTTPasswordEnvVar, "MQTT password: "); err != nil {
				return err
			}
		}
		client := mqtt.New(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: password,
			QoS:      cfg.MQTT.QoS,
			DeviceID: deviceID,
			Logger:   logger.Named("mqtt"),
		}, b)
		b.AddPublisher(client)
		go func() {
			if err := client.Connect(ctx); err != nil && ctx.Err() == nil {
				logger.Error("mqtt unavailable", zap.Error(err))
			}
		}()
		defer client.Close()
	}

	if cfg.Hub.Enabled && !bridgeNoHub {
		l, err := net.Listen("tcp", cfg.Hub.Listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Hub.Listen, err)
		}
		h := hub.New(state, func(p []byte) { b.Intake(p) }, logger.Named("hub"))
		b.AddPublisher(h)
		go func() {
			if err := h.Serve(ctx, l); err != nil {
				logger.Error("hub stopped", zap.Error(err))
			}
		}()
		logger.Info("hub listening", zap.String("address", l.Addr().String()))

		if cfg.Hub.Advertise {
			ad, err := hub.Advertise(deviceID, l.Addr().(*net.TCPAddr).Port)
			if err != nil {
				logger.Warn("mDNS advertisement failed", zap.Error(err))
			} else {
				defer ad.Shutdown()
			}
		}
	}

	logger.Info("bridge starting",
		zap.String("device_id", deviceID),
		zap.String("port", cfg.Transport.Port),
		zap.String("url", cfg.Transport.URL),
	)
	err = b.Run(ctx)
	b.Close()
	logger.Info("bridge stopped", zap.String("statistics", b.Statistics().String()))
	return err
}
