// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/internal/logging"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var setJSON string

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Apply a configuration delta to the radar",
	Long: `Apply one JSON configuration delta to the radar and persist the result.

The delta is applied the same way the bridge applies deltas received over MQTT
or the hub: recognized keys are clamped and sent in a fixed order with the
command spacing between frames, and the settings store is updated afterwards.
Unknown keys are reported and ignored.

Settings keys: ` + strings.Join(r60afd1.SettingKeys(), ", ") + `

set_device_id stores a new device identity. A running bridge picks it up
when it restarts.

Example:
  radarstat set --port /dev/ttyUSB0 --json '{"fall_duration": 30, "fall_detection_switch": true}'`,
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().StringVar(&setJSON, "json", "", "JSON object of settings to apply")
	setCmd.MarkFlagRequired("json")
}

func runSet(cmd *cobra.Command, args []string) error {
	logger := logging.GetLogger()

	persistence, _, err := openPersistence(logger)
	if err != nil {
		return err
	}
	settings, err := persistence.LoadSettings()
	if err != nil {
		logger.Warn("some settings could not be loaded", zap.Error(err))
	}
	deviceID, _ := persistence.LoadDeviceID(r60afd1.DefaultDeviceID)
	state := r60afd1.NewState(deviceID)
	state.ReplaceSettings(settings)

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	schedule := cfg.Schedule.Filled()
	reconciler := r60afd1.NewReconciler(state, r60afd1.NewTransmitter(conn, logger.Named("tx")),
		r60afd1.WithCommandSpacing(schedule.CommandSpacing),
		r60afd1.WithRestartDelay(0),
		r60afd1.WithPersister(persistence),
		r60afd1.WithReconcilerLogger(logger.Named("reconcile")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Connection: %s\n", connInfo)
	result, err := reconciler.ApplyJSON(ctx, []byte(setJSON))
	printResult(os.Stdout, result)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return errors.New("some settings were not sent")
	}
	return nil
}

func printResult(w io.Writer, r r60afd1.Result) {
	for _, key := range r.Applied {
		if v, ok := r.Clamped[key]; ok {
			fmt.Fprintf(w, "  %-28s applied (clamped to %s)\n", key, v)
			continue
		}
		fmt.Fprintf(w, "  %-28s applied\n", key)
	}
	failed := make([]string, 0, len(r.Failed))
	for key := range r.Failed {
		failed = append(failed, key)
	}
	sort.Strings(failed)
	for _, key := range failed {
		fmt.Fprintf(w, "  %-28s FAILED: %v\n", key, r.Failed[key])
	}
	for _, key := range r.Ignored {
		fmt.Fprintf(w, "  %-28s ignored\n", key)
	}
	if slices.Contains(r.Applied, r60afd1.DeltaSetDeviceID) {
		fmt.Fprintf(w, "Device identity stored; restart the bridge to use it\n")
	}
}
