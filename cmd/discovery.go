// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var discoveryTimeout int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover positioner records via serial or WebSocket",
	Long: `Send a DISCOVERY_REQUEST and list the records the server announces.

The server replies with one RECORD_ANNOUNCE per record, followed by an
end-of-discovery marker (stateless address).

Examples:
  motord discovery --url ws://beamline.local/pv
  motord discovery --port /dev/ttyUSB0

Exit codes:
  0 - Discovery successful (at least one record found)
  1 - Discovery failed (no records or timeout)
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Motord - Record Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	records, err := discoverRecords(conn, time.Duration(discoveryTimeout)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No records found")
		os.Exit(1)
	}

	fmt.Printf("%-18s %-16s %-6s %-4s %s\n", "ADDRESS", "NAME", "EGU", "PREC", "DESCRIPTION")
	for _, r := range records {
		fmt.Printf("0x%016X %-16s %-6s %-4d %s\n", r.address, r.name, r.egu, r.precision, r.description)
	}
	fmt.Printf("\n%d record(s) found\n", len(records))
	return nil
}
