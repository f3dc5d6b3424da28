// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the radar link by sending heartbeat queries",
	Long: `Send heartbeat queries to the radar and wait for each heartbeat reply.

This command tests bidirectional communication with the radar, directly over
serial or through a serial-over-WebSocket bridge, and reports the round trip
time of every query.

Exit codes:
  0 - All pings answered
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Radarstat - Heartbeat Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	query := r60afd1.QueryHeartbeat()
	replies := make(chan *r60afd1.Frame, 8)
	errChan := make(chan error, 1)
	go func() {
		errChan <- streamFrames(conn, func(f *r60afd1.Frame) {
			if f.Control() == query.Control && f.Command() == query.Command {
				select {
				case replies <- f:
				default:
				}
			}
		}, nil)
	}()

	tx := r60afd1.NewTransmitter(conn, nil)
	successCount := 0
	failCount := 0

pings:
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// Discard replies that arrived late for an earlier ping
	drain:
		for {
			select {
			case <-replies:
			default:
				break drain
			}
		}

		startTime := time.Now()
		if err := tx.Send(query); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case f := <-replies:
			rtt := time.Since(startTime)
			fmt.Printf("reply %s, rtt=%v\n", r60afd1.FormatValue(f), rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount += pingCount - i + 1
			break pings

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
