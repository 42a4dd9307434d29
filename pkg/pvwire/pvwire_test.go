// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package pvwire

import (
	"strings"
	"testing"
)

// decodeAll runs a byte slice through a fresh decoder and returns the
// packets and errors encountered.
func decodeAll(t *testing.T, data []byte) ([]*Packet, []error) {
	t.Helper()
	d := NewDecoder()
	var packets []*Packet
	var errs []error
	for _, b := range data {
		p, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets, errs
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	crc := CalculateCRC([]byte{})
	if crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCalculateCRC_KnownValue(t *testing.T) {
	// Standard CRC-16-CCITT check value.
	crc := CalculateCRC([]byte("123456789"))
	if crc != 0x29B1 {
		t.Errorf("CRC mismatch: expected 0x29B1, got 0x%04X", crc)
	}
}

// ============================================================
// Encode/Decode Round Trips
// ============================================================

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		packet  *Packet
		field   string
		wantVal float64
		hasVal  bool
	}{
		{
			name:   "read request",
			packet: NewReadRequest(0x01, "RBV"),
			field:  "RBV",
		},
		{
			name:    "write request",
			packet:  NewWriteRequest(0x02, "VAL", 7500.0),
			field:   "VAL",
			wantVal: 7500.0,
			hasVal:  true,
		},
		{
			name:    "monitor event",
			packet:  NewMonitorEvent(0x03, "DRBV", 5885.0, 4),
			field:   "DRBV",
			wantVal: 5885.0,
			hasVal:  true,
		},
		{
			name:   "ping request, empty payload",
			packet: NewPingRequest(0x04),
		},
		{
			// 0x7E7D7F.. inside the address forces byte stuffing.
			name:   "stuffed address bytes",
			packet: NewReadRequest(0x7E7D7F2020207E7D, "OFF"),
			field:  "OFF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := EncodePacketFromValues(
				tt.packet.Address(), tt.packet.Type(), tt.packet.PayloadMap())
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			packets, errs := decodeAll(t, wire)
			if len(errs) != 0 {
				t.Fatalf("decode errors: %v", errs)
			}
			if len(packets) != 1 {
				t.Fatalf("decoded %d packets, want 1", len(packets))
			}
			p := packets[0]

			if p.Address() != tt.packet.Address() {
				t.Errorf("address = 0x%X, want 0x%X", p.Address(), tt.packet.Address())
			}
			if p.Type() != tt.packet.Type() {
				t.Errorf("type = 0x%02X, want 0x%02X", p.Type(), tt.packet.Type())
			}
			if p.ParseError() != nil {
				t.Fatalf("parse error: %v", p.ParseError())
			}
			if tt.field != "" && p.Field() != tt.field {
				t.Errorf("field = %q, want %q", p.Field(), tt.field)
			}
			if tt.hasVal {
				v, ok := GetMapFloat(p.PayloadMap(), KeyValue)
				if !ok || v != tt.wantVal {
					t.Errorf("value = (%v, %v), want (%v, true)", v, ok, tt.wantVal)
				}
			}
		})
	}
}

func TestDecoderBackToBackPackets(t *testing.T) {
	var stream []byte
	for i := 0; i < 3; i++ {
		wire, err := NewEncoder().Encode(NewPingRequest(uint64(i + 1)))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		stream = append(stream, wire...)
	}

	packets, errs := decodeAll(t, stream)
	if len(errs) != 0 {
		t.Fatalf("decode errors: %v", errs)
	}
	if len(packets) != 3 {
		t.Fatalf("decoded %d packets, want 3", len(packets))
	}
	for i, p := range packets {
		if p.Address() != uint64(i+1) {
			t.Errorf("packet %d address = %d, want %d", i, p.Address(), i+1)
		}
	}
}

// ============================================================
// Decoder Error Handling
// ============================================================

func TestDecoderCRCMismatch(t *testing.T) {
	wire, err := NewEncoder().Encode(NewReadRequest(0x10, "VAL"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt one payload byte (inside the data section, past the framing
	// start byte and cheap enough to avoid creating a framing byte).
	wire[10] ^= 0x01

	packets, errs := decodeAll(t, wire)
	if len(packets) != 0 {
		t.Fatalf("corrupted packet decoded: %+v", packets)
	}
	if len(errs) != 1 || !strings.HasPrefix(errs[0].Error(), "CRC mismatch") {
		t.Fatalf("errors = %v, want one CRC mismatch", errs)
	}
}

func TestDecoderStrayEndByte(t *testing.T) {
	d := NewDecoder()
	if _, err := d.DecodeByte(StartByte); err != nil {
		t.Fatalf("start byte: %v", err)
	}
	if _, err := d.DecodeByte(EndByte); err == nil {
		t.Error("expected error for END byte before CRC state")
	}
}

func TestDecoderInvalidLength(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(StartByte)
	if _, err := d.DecodeByte(0x00); err == nil {
		t.Error("expected error for zero length")
	}

	d.Reset()
	d.DecodeByte(StartByte)
	if _, err := d.DecodeByte(MaxPayloadSize + 1); err == nil {
		t.Error("expected error for oversized length")
	}
}

func TestDecoderIgnoresNoiseBeforeStart(t *testing.T) {
	wire, err := NewEncoder().Encode(NewPingRequest(0x55))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	noisy := append([]byte{0x00, 0x42, 0xAA}, wire...)

	packets, errs := decodeAll(t, noisy)
	if len(errs) != 0 {
		t.Fatalf("decode errors: %v", errs)
	}
	if len(packets) != 1 || packets[0].Address() != 0x55 {
		t.Fatalf("packets = %+v, want single ping to 0x55", packets)
	}
}

// ============================================================
// Byte Stuffing
// ============================================================

func TestStuffUnstuffRoundTrip(t *testing.T) {
	data := []byte{StartByte, EndByte, EscByte, 0x00, 0x41, EscByte, StartByte}
	stuffed := stuffBytes(data)
	for i, b := range stuffed {
		escaped := i > 0 && stuffed[i-1] == EscByte
		if (b == StartByte || b == EndByte) && !escaped {
			t.Fatalf("unescaped framing byte at %d", i)
		}
	}
	out, err := UnstuffBytes(stuffed)
	if err != nil {
		t.Fatalf("unstuff: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("round trip mismatch: % X -> % X", data, out)
	}
}

func TestUnstuffIncompleteEscape(t *testing.T) {
	if _, err := UnstuffBytes([]byte{0x01, EscByte}); err == nil {
		t.Error("expected error for trailing escape byte")
	}
}

// ============================================================
// Statistics
// ============================================================

func TestStatisticsCounters(t *testing.T) {
	s := NewStatistics()

	s.Update(NewMonitorEvent(1, "RBV", 1.0, 0), nil)
	s.Update(NewErrorReject(1, ErrCodeUnknownField, "no such field"), nil)
	s.Update(nil, &crcError{})

	if s.TotalPackets != 3 {
		t.Errorf("TotalPackets = %d, want 3", s.TotalPackets)
	}
	if s.ValidPackets != 2 {
		t.Errorf("ValidPackets = %d, want 2", s.ValidPackets)
	}
	if s.MonitorEvents != 1 || s.Rejects != 1 || s.CRCErrors != 1 {
		t.Errorf("counters = events:%d rejects:%d crc:%d, want 1/1/1",
			s.MonitorEvents, s.Rejects, s.CRCErrors)
	}

	s.Reset()
	if s.TotalPackets != 0 || s.CRCErrors != 0 {
		t.Error("Reset did not clear counters")
	}
}

type crcError struct{}

func (*crcError) Error() string { return "CRC mismatch: expected 0x0000, got 0xFFFF" }
