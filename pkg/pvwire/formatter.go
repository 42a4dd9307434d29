// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package pvwire

import (
	"fmt"
	"strings"
)

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgReadRequest:
		return "READ_REQUEST"
	case MsgWriteRequest:
		return "WRITE_REQUEST"
	case MsgMonitorRequest:
		return "MONITOR_REQUEST"
	case MsgMonitorCancel:
		return "MONITOR_CANCEL"
	case MsgDiscoveryRequest:
		return "DISCOVERY_REQUEST"
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgReadResponse:
		return "READ_RESPONSE"
	case MsgWriteResponse:
		return "WRITE_RESPONSE"
	case MsgMonitorEvent:
		return "MONITOR_EVENT"
	case MsgRecordAnnounce:
		return "RECORD_ANNOUNCE"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgErrorReject:
		return "ERROR_REJECT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", msgType)
	}
}

// FormatAddress renders a record address, naming the special addresses.
func FormatAddress(address uint64) string {
	switch address {
	case AddressBroadcast:
		return "broadcast"
	case AddressStateless:
		return "stateless"
	default:
		return fmt.Sprintf("0x%016X", address)
	}
}

// FormatPacket formats a packet into a single human-readable line.
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", timestamp, FormatAddress(p.Address()), FormatMessageType(p.Type()))

	if err := p.ParseError(); err != nil {
		fmt.Fprintf(&b, " parse-error=%v", err)
		return b.String()
	}

	m := p.PayloadMap()
	switch p.Type() {
	case MsgReadRequest, MsgMonitorRequest, MsgMonitorCancel:
		if f, ok := GetMapString(m, KeyField); ok {
			fmt.Fprintf(&b, " field=%s", f)
		}
	case MsgWriteRequest:
		v, _ := GetMapFloat(m, KeyValue)
		fmt.Fprintf(&b, " field=%s value=%g", p.Field(), v)
	case MsgReadResponse, MsgMonitorEvent:
		v, _ := GetMapFloat(m, KeyValue)
		prec, _ := GetMapInt(m, KeyPrecision)
		fmt.Fprintf(&b, " field=%s value=%.*f", p.Field(), int(prec), v)
	case MsgWriteResponse:
		v, _ := GetMapFloat(m, KeyValue)
		fmt.Fprintf(&b, " field=%s accepted=%g", p.Field(), v)
		if reason, ok := GetMapString(m, KeyError); ok {
			fmt.Fprintf(&b, " rejected=%q", reason)
		}
	case MsgRecordAnnounce:
		if p.IsStateless() {
			b.WriteString(" end-of-discovery")
			break
		}
		name, _ := GetMapString(m, KeyName)
		egu, _ := GetMapString(m, KeyEGU)
		fmt.Fprintf(&b, " name=%s egu=%s", name, egu)
	case MsgPingResponse:
		up, _ := GetMapUint(m, 0)
		fmt.Fprintf(&b, " uptime=%dms", up)
	case MsgErrorReject:
		code, _ := GetMapInt(m, KeyErrCode)
		msg, _ := GetMapString(m, KeyErrMessage)
		fmt.Fprintf(&b, " code=0x%02X msg=%q", code, msg)
	}

	return b.String()
}
