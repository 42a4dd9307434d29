// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openbeamline/motord/pkg/pvwire"
	"github.com/spf13/cobra"
)

var getTimeout int

var getCmd = &cobra.Command{
	Use:   "get <motor> <FIELD>",
	Short: "Read one field of a positioner record",
	Long: `Read a single field of a positioner record and print its value.

The motor is resolved to its pvwire address via discovery, so only the
record name is needed.

Examples:
  motord get sample_x VAL --url ws://beamline.local/pv
  motord get sample_x RBV --port /dev/ttyUSB0

Exit codes:
  0 - Read successful
  1 - Read rejected or timed out
  2 - Connection error`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().IntVar(&getTimeout, "timeout", 5, "Timeout in seconds")
}

func runGet(cmd *cobra.Command, args []string) error {
	motorName := args[0]
	fieldName := strings.ToUpper(args[1])
	timeout := time.Duration(getTimeout) * time.Second

	conn, _, err := openConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	record, err := resolveRecord(conn, motorName, timeout)
	if err != nil {
		return err
	}

	wire, err := pvwire.NewEncoder().Encode(pvwire.NewReadRequest(record.address, fieldName))
	if err != nil {
		return err
	}
	if _, err := conn.Write(wire); err != nil {
		return fmt.Errorf("send read request: %v", err)
	}

	var reply *pvwire.Packet
	err = readPackets(conn, timeout, func(packet *pvwire.Packet) bool {
		if packet.Address() != record.address && !packet.IsStateless() {
			return false
		}
		switch packet.Type() {
		case pvwire.MsgReadResponse, pvwire.MsgErrorReject:
			reply = packet
			return true
		}
		return false
	})
	if err != nil {
		return err
	}

	if reply.Type() == pvwire.MsgErrorReject {
		return rejectError(reply)
	}

	payload := reply.PayloadMap()
	value, _ := pvwire.GetMapFloat(payload, pvwire.KeyValue)
	precision, _ := pvwire.GetMapInt(payload, pvwire.KeyPrecision)
	fmt.Printf("%s.%s = %.*f\n", motorName, fieldName, int(precision), value)
	return nil
}
