// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"time"

	"github.com/openbeamline/motord/pkg/pvwire"
)

// knownRecord is one record reported by discovery.
type knownRecord struct {
	address     uint64
	name        string
	egu         string
	precision   int64
	description string
}

// discoverRecords sends a DISCOVERY_REQUEST and collects RECORD_ANNOUNCE
// replies until the end-of-discovery marker or the timeout.
func discoverRecords(conn Connection, timeout time.Duration) ([]knownRecord, error) {
	wire, err := pvwire.NewEncoder().Encode(pvwire.NewDiscoveryRequest())
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(wire); err != nil {
		return nil, fmt.Errorf("send discovery request: %v", err)
	}

	var records []knownRecord
	err = readPackets(conn, timeout, func(packet *pvwire.Packet) bool {
		if packet.Type() != pvwire.MsgRecordAnnounce {
			return false
		}
		// End-of-discovery marker: stateless address, empty payload
		if packet.IsStateless() {
			return true
		}

		payload := packet.PayloadMap()
		name, _ := pvwire.GetMapString(payload, pvwire.KeyName)
		egu, _ := pvwire.GetMapString(payload, pvwire.KeyEGU)
		prec, _ := pvwire.GetMapInt(payload, pvwire.KeyPrec)
		desc, _ := pvwire.GetMapString(payload, pvwire.KeyDescription)
		records = append(records, knownRecord{
			address:     packet.Address(),
			name:        name,
			egu:         egu,
			precision:   prec,
			description: desc,
		})
		return false
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// resolveRecord maps a motor name onto its pvwire address via discovery.
func resolveRecord(conn Connection, name string, timeout time.Duration) (knownRecord, error) {
	records, err := discoverRecords(conn, timeout)
	if err != nil {
		return knownRecord{}, err
	}
	for _, r := range records {
		if r.name == name {
			return r, nil
		}
	}
	return knownRecord{}, fmt.Errorf("no record named %q (server knows %d record(s))", name, len(records))
}

// readPackets decodes packets off the connection and hands each to handle
// until handle returns true or the timeout elapses. Decode errors are
// skipped; the stream re-synchronizes on the next frame boundary.
func readPackets(conn Connection, timeout time.Duration, handle func(*pvwire.Packet) bool) error {
	type result struct {
		err error
	}

	decoder := pvwire.NewDecoder()
	done := make(chan result, 1)

	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				done <- result{err: err}
				return
			}
			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if packet != nil && handle(packet) {
					done <- result{}
					return
				}
			}
		}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("read: %v", r.err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout after %v", timeout)
	}
}

// rejectError formats an ERROR_REJECT packet.
func rejectError(packet *pvwire.Packet) error {
	payload := packet.PayloadMap()
	code, _ := pvwire.GetMapInt(payload, pvwire.KeyErrCode)
	message, _ := pvwire.GetMapString(payload, pvwire.KeyErrMessage)
	return fmt.Errorf("rejected (code 0x%02X): %s", code, message)
}
