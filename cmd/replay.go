// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/internal/capture"
	"github.com/Thermoquad/radarstat/internal/logging"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var replayVerbose bool

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a frame capture and print the resulting device state",
	Long: `Feed every frame of a CBOR capture (written by raw_log or bridge with
--capture) through the dispatcher, then print the live, settings and product
snapshots the frames produce, followed by frame statistics.

With --verbose each frame is printed as it is replayed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "Print every replayed frame")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	state := r60afd1.NewState(r60afd1.DefaultDeviceID)
	dispatcher := r60afd1.NewDispatcher(state, logging.Named("dispatch"))
	stats := r60afd1.NewStatistics()

	reader := capture.NewReader(f)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if replayVerbose {
			fmt.Print(r60afd1.FormatFrame(frame))
		}
		anomalies := r60afd1.ValidateFrame(frame)
		_, err = dispatcher.Dispatch(frame)
		stats.Update(frame, err, anomalies)
	}

	for _, section := range []struct {
		title string
		v     any
	}{
		{"Live", state.LiveSnapshot()},
		{"Settings", state.SettingsSnapshot()},
		{"Product", state.ProductSnapshot()},
	} {
		data, err := json.MarshalIndent(section.v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("=== %s ===\n%s\n\n", section.title, data)
	}
	fmt.Print(stats.String())
	return nil
}
