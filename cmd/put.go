// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openbeamline/motord/pkg/pvwire"
	"github.com/spf13/cobra"
)

var putTimeout int

var putCmd = &cobra.Command{
	Use:   "put <motor> <FIELD> <value>",
	Short: "Write one field of a positioner record",
	Long: `Write a single field of a positioner record and print the accepted
value after the dependent-field cascade ran.

Writing VAL commands a move; writing in Set calibration mode re-zeroes the
user coordinate without moving hardware. A rejected write leaves the record
unchanged and reports the rejection reason.

Examples:
  motord put sample_x VAL 7500 --url ws://beamline.local/pv
  motord put sample_x TWF 1 --port /dev/ttyUSB0

Exit codes:
  0 - Write accepted
  1 - Write rejected or timed out
  2 - Connection error`,
	Args: cobra.ExactArgs(3),
	RunE: runPut,
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().IntVar(&putTimeout, "timeout", 5, "Timeout in seconds")
}

func runPut(cmd *cobra.Command, args []string) error {
	motorName := args[0]
	fieldName := strings.ToUpper(args[1])
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %v", args[2], err)
	}
	timeout := time.Duration(putTimeout) * time.Second

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

	wire, err := pvwire.NewEncoder().Encode(pvwire.NewWriteRequest(record.address, fieldName, value))
	if err != nil {
		return err
	}
	if _, err := conn.Write(wire); err != nil {
		return fmt.Errorf("send write request: %v", err)
	}

	var reply *pvwire.Packet
	err = readPackets(conn, timeout, func(packet *pvwire.Packet) bool {
		if packet.Address() != record.address && !packet.IsStateless() {
			return false
		}
		switch packet.Type() {
		case pvwire.MsgWriteResponse, pvwire.MsgErrorReject:
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
	if reason, rejected := pvwire.GetMapString(payload, pvwire.KeyError); rejected {
		return fmt.Errorf("write rejected: %s", reason)
	}

	accepted, _ := pvwire.GetMapFloat(payload, pvwire.KeyValue)
	fmt.Printf("%s.%s = %.*f\n", motorName, fieldName, int(record.precision), accepted)
	return nil
}
