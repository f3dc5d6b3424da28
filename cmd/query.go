// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

var queryTimeout int

var queryCmd = &cobra.Command{
	Use:   "query NAME",
	Short: "Send one query to the radar and print the response",
	Long: `Send a single query frame and wait for the frame that answers it.

The answer is the first frame carrying the same control and command words as
the query. Other reports arriving meanwhile are ignored.

Queries: ` + strings.Join(queryNames(), ", ") + `

Exit codes:
  0 - Response received
  1 - Timeout reached without a response
  2 - Connection error`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: queryNames(),
	RunE:      runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVar(&queryTimeout, "timeout", 5, "Timeout in seconds to wait for the response")
}

func queryNames() []string {
	names := make([]string, 0, len(r60afd1.Queries))
	for name := range r60afd1.Queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runQuery(cmd *cobra.Command, args []string) error {
	build, ok := r60afd1.Queries[args[0]]
	if !ok {
		return fmt.Errorf("unknown query %q (valid: %s)", args[0], strings.Join(queryNames(), ", "))
	}
	query := build()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sending: %s\n\n", query)

	answer := make(chan *r60afd1.Frame, 1)
	errChan := make(chan error, 1)
	go func() {
		errChan <- streamFrames(conn, func(f *r60afd1.Frame) {
			if f.Control() != query.Control || f.Command() != query.Command {
				return
			}
			select {
			case answer <- f:
			default:
			}
		}, nil)
	}()

	if err := r60afd1.NewTransmitter(conn, nil).Send(query); err != nil {
		fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
		os.Exit(2)
	}

	select {
	case f := <-answer:
		fmt.Print(r60afd1.FormatFrame(f))
		os.Exit(0)
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	case <-time.After(time.Duration(queryTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No response within %d seconds\n", queryTimeout)
		os.Exit(1)
	}
	return nil
}
