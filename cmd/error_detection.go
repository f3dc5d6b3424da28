// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupted frames and anomalous reports",
	Long: `Track frame errors and anomalous report values with statistics.

This command validates each frame and detects:
  - Trailer and checksum failures, oversized lengths, abandoned partial frames
  - Frames with no decode rule
  - Anomalous values (flags other than 0/1, movement state > 2,
    height proportions not summing to the total, settings out of range)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

type detectionEvent struct {
	frame *r60afd1.Frame
	err   error
}

// printSyncError prints a synchronizer rejection in highlighted format
func printSyncError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", timestamp, err)

	var fe *r60afd1.FrameError
	if errors.As(err, &fe) && fe.Dropped > 0 {
		fmt.Printf("  Dropped: %d bytes\n", fe.Dropped)
	}
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printValidationErrors prints the anomalies found in one frame
func printValidationErrors(f *r60afd1.Frame, anomalies []r60afd1.ValidationError) {
	timestamp := f.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%02X/0x%02X)\n", timestamp, r60afd1.FrameName(f), f.Control(), f.Command())
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, a := range anomalies {
		switch a.Type {
		case r60afd1.AnomalyInvalidFlag, r60afd1.AnomalyInvalidMovement:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		}
	}
	fmt.Printf("  Payload: % X\n", f.Payload())
	fmt.Printf("  >>> STATE STILL UPDATED <<<\n\n")
}

func printUnknownFrame(f *r60afd1.Frame) {
	timestamp := f.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;36mUNKNOWN FRAME:\033[0m 0x%02X/0x%02X len=%d\n", timestamp, f.Control(), f.Command(), f.Length())
	if f.Length() > 0 {
		fmt.Printf("  Payload: % X\n", f.Payload())
	}
	fmt.Println()
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Radarstat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	dispatcher := r60afd1.NewDispatcher(r60afd1.NewState(r60afd1.DefaultDeviceID), nil)
	stats := r60afd1.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events := make(chan detectionEvent, 64)
	done := make(chan error, 1)
	go func() {
		done <- streamFrames(conn,
			func(f *r60afd1.Frame) { events <- detectionEvent{frame: f} },
			func(err error) { events <- detectionEvent{err: err} },
		)
	}()

	for {
		select {
		case ev := <-events:
			if ev.err != nil {
				stats.Update(nil, ev.err, nil)
				printSyncError(ev.err)
				continue
			}

			anomalies := r60afd1.ValidateFrame(ev.frame)
			_, dispatchErr := dispatcher.Dispatch(ev.frame)
			stats.Update(ev.frame, dispatchErr, anomalies)

			switch {
			case dispatchErr != nil:
				printUnknownFrame(ev.frame)
			case len(anomalies) > 0:
				printValidationErrors(ev.frame, anomalies)
			case showAll:
				fmt.Print(r60afd1.FormatFrame(ev.frame))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-done:
			fmt.Println()
			fmt.Print(stats.String())
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
