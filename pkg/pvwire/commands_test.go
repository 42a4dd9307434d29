// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package pvwire

import (
	"strings"
	"testing"
)

func TestNewWriteRequest(t *testing.T) {
	tests := []struct {
		name    string
		address uint64
		field   string
		value   float64
	}{
		{"user setpoint", 0x1234567890ABCDEF, "VAL", 7500.0},
		{"offset", 0x01, "OFF", -1615.5},
		{"trigger payload is carried verbatim", 0x02, "FOF", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewWriteRequest(tt.address, tt.field, tt.value)

			if p.Address() != tt.address {
				t.Errorf("Address() = 0x%X, want 0x%X", p.Address(), tt.address)
			}
			if p.Type() != MsgWriteRequest {
				t.Errorf("Type() = 0x%02X, want 0x%02X", p.Type(), MsgWriteRequest)
			}
			if p.Field() != tt.field {
				t.Errorf("Field() = %q, want %q", p.Field(), tt.field)
			}
			v, ok := GetMapFloat(p.PayloadMap(), KeyValue)
			if !ok || v != tt.value {
				t.Errorf("value = (%v, %v), want (%v, true)", v, ok, tt.value)
			}
		})
	}
}

func TestNewMonitorRequest(t *testing.T) {
	p := NewMonitorRequest(0x09, "")
	if p.PayloadMap() != nil {
		t.Error("all-field subscription should carry an empty payload")
	}

	p = NewMonitorRequest(0x09, "DMOV")
	if p.Field() != "DMOV" {
		t.Errorf("Field() = %q, want DMOV", p.Field())
	}
}

func TestNewWriteResponse(t *testing.T) {
	p := NewWriteResponse(0x03, "MRES", 0.5, "")
	if _, ok := GetMapString(p.PayloadMap(), KeyError); ok {
		t.Error("accepted write must not carry a rejection reason")
	}

	p = NewWriteResponse(0x03, "MRES", 0.5, "resolution (MRES) is zero")
	reason, ok := GetMapString(p.PayloadMap(), KeyError)
	if !ok || reason == "" {
		t.Error("rejected write must carry the rejection reason")
	}
}

func TestDiscoveryPackets(t *testing.T) {
	req := NewDiscoveryRequest()
	if !req.IsBroadcast() {
		t.Error("discovery request should be broadcast")
	}

	ann := NewRecordAnnounce(0x07, "m1", "mm", 4, "sample stage x")
	name, _ := GetMapString(ann.PayloadMap(), KeyName)
	egu, _ := GetMapString(ann.PayloadMap(), KeyEGU)
	prec, _ := GetMapInt(ann.PayloadMap(), KeyPrec)
	if name != "m1" || egu != "mm" || prec != 4 {
		t.Errorf("announce payload = (%s, %s, %d), want (m1, mm, 4)", name, egu, prec)
	}

	end := NewEndOfDiscovery()
	if !end.IsStateless() {
		t.Error("end-of-discovery marker must use the stateless address")
	}
	if end.Type() != MsgRecordAnnounce {
		t.Errorf("end-of-discovery type = 0x%02X, want RECORD_ANNOUNCE", end.Type())
	}
}

func TestFormatPacket(t *testing.T) {
	tests := []struct {
		name string
		p    *Packet
		want string
	}{
		{"monitor event", NewMonitorEvent(0x01, "RBV", 7500.0, 1), "value=7500.0"},
		{"reject", NewErrorReject(0x01, ErrCodeUnknownField, "no field"), "ERROR_REJECT"},
		{"end of discovery", NewEndOfDiscovery(), "end-of-discovery"},
		{"broadcast", NewDiscoveryRequest(), "broadcast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatPacket(tt.p)
			if !strings.Contains(out, tt.want) {
				t.Errorf("FormatPacket = %q, want substring %q", out, tt.want)
			}
		})
	}
}
