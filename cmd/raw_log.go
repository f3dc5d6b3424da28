// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/internal/capture"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var rawLogCapture string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display R60AFD1 frames as they arrive.

Each frame is shown with timestamp, decode rule name, control and command
words and the decoded value. Frames rejected by the synchronizer are shown as
errors.

With --capture, every validated frame is also appended to a CBOR capture file
that the replay command can read back.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Append validated frames to a CBOR capture file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var recorder *capture.Writer
	if rawLogCapture != "" {
		if recorder, err = capture.Create(rawLogCapture); err != nil {
			return err
		}
		defer recorder.Close()
	}

	fmt.Printf("Radarstat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if recorder != nil {
		fmt.Printf("Capture: %s\n", rawLogCapture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = streamFrames(conn,
		func(f *r60afd1.Frame) {
			fmt.Print(r60afd1.FormatFrame(f))
			if recorder != nil {
				if err := recorder.Write(f); err != nil {
					fmt.Printf("[CAPTURE ERROR] %v\n", err)
				}
			}
		},
		func(err error) {
			fmt.Printf("[ERROR] %v\n", err)
		},
	)
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
		fmt.Printf("Connection closed\n")
		return nil
	}
	return err
}
