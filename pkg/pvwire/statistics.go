// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package pvwire

import (
	"fmt"
	"strings"
	"time"
)

// Statistics tracks link statistics and error rates for one pvwire
// connection. The monitor TUI renders them in its footer.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets  uint64
	ValidPackets  uint64
	CRCErrors     uint64
	DecodeErrors  uint64
	ParseErrors   uint64 // CBOR payload did not parse
	Rejects       uint64 // ERROR_REJECT packets observed
	MonitorEvents uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update folds one decode result into the counters. packet may be nil when
// decodeErr is set.
func (s *Statistics) Update(packet *Packet, decodeErr error) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if strings.HasPrefix(decodeErr.Error(), "CRC mismatch") {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if packet.ParseError() != nil {
		s.ParseErrors++
		return
	}

	switch packet.Type() {
	case MsgErrorReject:
		s.Rejects++
	case MsgMonitorEvent:
		s.MonitorEvents++
	}
	s.ValidPackets++
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.CRCErrors + s.DecodeErrors + s.ParseErrors
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)
	if s.MonitorEvents > 0 {
		result += fmt.Sprintf("Monitor Events:  %8d\n", s.MonitorEvents)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d\n", s.ParseErrors)
	}
	if s.Rejects > 0 {
		result += fmt.Sprintf("Rejects:         %8d\n", s.Rejects)
	}
	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{StartTime: now, LastUpdateTime: now}
}
