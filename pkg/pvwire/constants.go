// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

// Package pvwire implements the motord field-access wire protocol.
//
// pvwire is a binary protocol carrying named-field reads, writes and
// monitor events between operator clients and a motord server, over any
// byte stream (serial line or WebSocket binary frames). This package
// provides packet encoding/decoding, CRC validation, payload formatting
// and link statistics.
package pvwire

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPacketSize  = 128 // 14 overhead + 114 payload
	MaxPayloadSize = 114
	AddressSize    = 8
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Special addresses. Every positioner record is addressed by a 64-bit ID;
// broadcast applies a request to every record, stateless is used for
// discovery traffic and end-of-discovery markers.
const (
	AddressBroadcast = 0x0000000000000000
	AddressStateless = 0xFFFFFFFFFFFFFFFF
)

// Message types - Requests (Client → Server) 0x10-0x2F
const (
	MsgReadRequest      = 0x10
	MsgWriteRequest     = 0x11
	MsgMonitorRequest   = 0x14
	MsgMonitorCancel    = 0x15
	MsgDiscoveryRequest = 0x1F
	MsgPingRequest      = 0x2F
)

// Message types - Responses and data (Server → Client) 0x30-0x3F
const (
	MsgReadResponse   = 0x30
	MsgWriteResponse  = 0x31
	MsgMonitorEvent   = 0x32
	MsgRecordAnnounce = 0x35
	MsgPingResponse   = 0x3F
)

// Message types - Errors 0xE0-0xEF
const (
	MsgErrorReject = 0xE0
)

// Payload map keys shared by the field-access messages.
const (
	KeyField     = 0
	KeyValue     = 1
	KeyPrecision = 2
	KeyStatus    = 3
	KeyError     = 2 // WriteResponse: rejection reason string
)

// Record-announce payload keys.
const (
	KeyName        = 0
	KeyEGU         = 1
	KeyPrec        = 2
	KeyDescription = 3
)

// Error-reject payload keys and codes.
const (
	KeyErrCode    = 0
	KeyErrMessage = 1
)

// Reject codes carried by MsgErrorReject.
const (
	ErrCodeBadPayload    = 0x01
	ErrCodeUnknownRecord = 0x02
	ErrCodeUnknownField  = 0x03
	ErrCodeWriteRejected = 0x04
)

// Decoder states (internal). The message type is embedded in the CBOR
// payload, so there is no separate TYPE state.
const (
	stateIdle = iota
	stateLength
	stateAddress
	statePayload
	stateCRC1
	stateCRC2
)
