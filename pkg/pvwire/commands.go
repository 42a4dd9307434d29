// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package pvwire

// Command builder functions create Packet structs ready for encoding.
// These are convenience wrappers around NewPacketWithPayload that ensure
// correct payload key usage per the pvwire protocol conventions.

// NewReadRequest creates a READ_REQUEST packet (0x10) for one field of the
// addressed record.
func NewReadRequest(address uint64, field string) *Packet {
	payload := map[int]interface{}{
		KeyField: field,
	}
	return NewPacketWithPayload(address, MsgReadRequest, payload)
}

// NewWriteRequest creates a WRITE_REQUEST packet (0x11). The server runs
// the field's computation cascade and answers with WRITE_RESPONSE.
func NewWriteRequest(address uint64, field string, value float64) *Packet {
	payload := map[int]interface{}{
		KeyField: field,
		KeyValue: value,
	}
	return NewPacketWithPayload(address, MsgWriteRequest, payload)
}

// NewMonitorRequest creates a MONITOR_REQUEST packet (0x14). With field ""
// the subscription covers every field of the record; the server then sends
// MONITOR_EVENT packets for each field mutation in cascade order.
func NewMonitorRequest(address uint64, field string) *Packet {
	if field == "" {
		return NewPacketWithPayload(address, MsgMonitorRequest, nil)
	}
	payload := map[int]interface{}{
		KeyField: field,
	}
	return NewPacketWithPayload(address, MsgMonitorRequest, payload)
}

// NewMonitorCancel creates a MONITOR_CANCEL packet (0x15) dropping this
// session's subscription on the addressed record.
func NewMonitorCancel(address uint64) *Packet {
	return NewPacketWithPayload(address, MsgMonitorCancel, nil)
}

// NewDiscoveryRequest creates a DISCOVERY_REQUEST packet (0x1F).
// The server responds with RECORD_ANNOUNCE for each record, followed by an
// end-of-discovery marker (RECORD_ANNOUNCE on the stateless address).
func NewDiscoveryRequest() *Packet {
	return NewPacketWithPayload(AddressBroadcast, MsgDiscoveryRequest, nil)
}

// NewPingRequest creates a PING_REQUEST packet (0x2F).
func NewPingRequest(address uint64) *Packet {
	return NewPacketWithPayload(address, MsgPingRequest, nil)
}

// NewReadResponse creates a READ_RESPONSE packet (0x30) carrying a field's
// current value and display metadata.
func NewReadResponse(address uint64, field string, value float64, precision int, status int) *Packet {
	payload := map[int]interface{}{
		KeyField:     field,
		KeyValue:     value,
		KeyPrecision: int64(precision),
		KeyStatus:    int64(status),
	}
	return NewPacketWithPayload(address, MsgReadResponse, payload)
}

// NewWriteResponse creates a WRITE_RESPONSE packet (0x31). For an accepted
// write reject is ""; otherwise the accepted value is the field's prior
// value and reject names the reason.
func NewWriteResponse(address uint64, field string, accepted float64, reject string) *Packet {
	payload := map[int]interface{}{
		KeyField: field,
		KeyValue: accepted,
	}
	if reject != "" {
		payload[KeyError] = reject
	}
	return NewPacketWithPayload(address, MsgWriteResponse, payload)
}

// NewMonitorEvent creates a MONITOR_EVENT packet (0x32) for one field
// mutation of a subscribed record.
func NewMonitorEvent(address uint64, field string, value float64, precision int) *Packet {
	payload := map[int]interface{}{
		KeyField:     field,
		KeyValue:     value,
		KeyPrecision: int64(precision),
	}
	return NewPacketWithPayload(address, MsgMonitorEvent, payload)
}

// NewRecordAnnounce creates a RECORD_ANNOUNCE packet (0x35) describing one
// record during discovery.
func NewRecordAnnounce(address uint64, name, egu string, precision int, description string) *Packet {
	payload := map[int]interface{}{
		KeyName:        name,
		KeyEGU:         egu,
		KeyPrec:        int64(precision),
		KeyDescription: description,
	}
	return NewPacketWithPayload(address, MsgRecordAnnounce, payload)
}

// NewEndOfDiscovery creates the end-of-discovery marker: a RECORD_ANNOUNCE
// on the stateless address with an empty payload.
func NewEndOfDiscovery() *Packet {
	return NewPacketWithPayload(AddressStateless, MsgRecordAnnounce, nil)
}

// NewPingResponse creates a PING_RESPONSE packet (0x3F) with server uptime
// in milliseconds.
func NewPingResponse(address uint64, uptimeMs uint64) *Packet {
	payload := map[int]interface{}{
		0: uptimeMs,
	}
	return NewPacketWithPayload(address, MsgPingResponse, payload)
}

// NewErrorReject creates an ERROR_REJECT packet (0xE0).
func NewErrorReject(address uint64, code int, message string) *Packet {
	payload := map[int]interface{}{
		KeyErrCode:    int64(code),
		KeyErrMessage: message,
	}
	return NewPacketWithPayload(address, MsgErrorReject, payload)
}
