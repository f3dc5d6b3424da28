// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/internal/hub"
)

var discoverTimeout int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover running radar hubs on the local network",
	Long: `Browse mDNS for radarstat bridges advertising their hub as ` + hub.ServiceType + `.

Each hub is listed with its device identity and address. The address can be
used to fetch snapshots (http://ADDRESS/live) or to stream them over the
websocket at ws://ADDRESS/ws.

Exit codes:
  0 - At least one hub found
  1 - No hub found before the timeout`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Timeout in seconds for discovery")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(discoverTimeout) * time.Second
	fmt.Printf("Radarstat - Hub Discovery\n")
	fmt.Printf("Browsing %s for %s...\n\n", hub.ServiceType, timeout)

	peers, err := hub.Discover(context.Background(), timeout)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Fprintf(os.Stderr, "No hubs found\n")
		os.Exit(1)
	}

	fmt.Printf("%-24s %-10s %s\n", "DEVICE ID", "TYPE", "ADDRESS")
	for _, p := range peers {
		fmt.Printf("%-24s %-10s %s\n", p.DeviceID, p.DeviceType, p.Address())
	}
	fmt.Printf("\nFound %d hub(s)\n", len(peers))
	return nil
}
