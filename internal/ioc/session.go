// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package ioc

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openbeamline/motord/pkg/motorrec"
	"github.com/openbeamline/motord/pkg/pvwire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The endpoint carries no browser credentials; operator tools connect
	// from anywhere on the beamline network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is one connected pvwire client.
type session struct {
	srv  *Server
	conn *websocket.Conn

	// gorilla permits one concurrent writer; sends come from both the
	// request dispatcher and the monitor distributor.
	writeMu sync.Mutex
}

// send encodes and transmits one packet.
func (sess *session) send(p *pvwire.Packet) error {
	data, err := pvwire.NewEncoder().Encode(p)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteMessage(websocket.BinaryMessage, data)
}

// handshake authenticates and upgrades one client connection, then runs
// its read loop until disconnect.
func (s *Server) handshake(w http.ResponseWriter, r *http.Request) {
	if s.opts.Username != "" && s.opts.Password != "" {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.opts.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.opts.Password)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="motord"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("upgrade: %v", err)
		return
	}

	sess := &session{srv: s, conn: conn}
	s.log.Printf("client connected: %s", conn.RemoteAddr())
	defer func() {
		s.dropSession(sess)
		conn.Close()
		s.log.Printf("client disconnected: %s", conn.RemoteAddr())
	}()

	decoder := pvwire.NewDecoder()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		for _, b := range data {
			pkt, err := decoder.DecodeByte(b)
			if err != nil {
				s.log.Printf("decode from %s: %v", conn.RemoteAddr(), err)
				continue
			}
			if pkt != nil {
				s.dispatch(sess, pkt)
			}
		}
	}
}

// dispatch routes one request packet. Broadcast requests apply to every
// record; the stateless address only carries discovery and ping traffic.
func (s *Server) dispatch(sess *session, pkt *pvwire.Packet) {
	if pkt.ParseError() != nil {
		sess.send(pvwire.NewErrorReject(pkt.Address(), pvwire.ErrCodeBadPayload,
			pkt.ParseError().Error()))
		return
	}

	switch pkt.Type() {
	case pvwire.MsgDiscoveryRequest:
		for _, addr := range s.addresses() {
			rec, ok := s.record(addr)
			if !ok {
				continue
			}
			sess.send(pvwire.NewRecordAnnounce(addr, rec.Name(), rec.EGU(),
				rec.Precision(motorrec.FieldVAL), rec.Description()))
		}
		sess.send(pvwire.NewEndOfDiscovery())

	case pvwire.MsgPingRequest:
		uptime := uint64(time.Since(s.start) / time.Millisecond)
		sess.send(pvwire.NewPingResponse(pkt.Address(), uptime))

	case pvwire.MsgReadRequest:
		s.eachTarget(sess, pkt, s.handleRead)

	case pvwire.MsgWriteRequest:
		s.eachTarget(sess, pkt, s.handleWrite)

	case pvwire.MsgMonitorRequest:
		s.eachTarget(sess, pkt, func(sess *session, addr uint64, rec *motorrec.Record, pkt *pvwire.Packet) {
			s.subscribe(addr, sess, pkt.Field())
		})

	case pvwire.MsgMonitorCancel:
		s.eachTarget(sess, pkt, func(sess *session, addr uint64, rec *motorrec.Record, pkt *pvwire.Packet) {
			s.unsubscribe(addr, sess)
		})

	default:
		sess.send(pvwire.NewErrorReject(pkt.Address(), pvwire.ErrCodeBadPayload,
			"unsupported message type"))
	}
}

// eachTarget applies a handler to the addressed record, or to every record
// for a broadcast request. Unknown addresses are rejected.
func (s *Server) eachTarget(sess *session, pkt *pvwire.Packet,
	fn func(*session, uint64, *motorrec.Record, *pvwire.Packet)) {

	if pkt.IsBroadcast() {
		for _, addr := range s.addresses() {
			if rec, ok := s.record(addr); ok {
				fn(sess, addr, rec, pkt)
			}
		}
		return
	}

	rec, ok := s.record(pkt.Address())
	if !ok {
		sess.send(pvwire.NewErrorReject(pkt.Address(), pvwire.ErrCodeUnknownRecord,
			"no record at this address"))
		return
	}
	fn(sess, pkt.Address(), rec, pkt)
}

func (s *Server) handleRead(sess *session, addr uint64, rec *motorrec.Record, pkt *pvwire.Packet) {
	field, ok := motorrec.ParseField(pkt.Field())
	if !ok {
		sess.send(pvwire.NewErrorReject(addr, pvwire.ErrCodeUnknownField, pkt.Field()))
		return
	}
	sess.send(pvwire.NewReadResponse(addr, pkt.Field(), rec.Get(field),
		rec.Precision(field), int(rec.Status())))
}

func (s *Server) handleWrite(sess *session, addr uint64, rec *motorrec.Record, pkt *pvwire.Packet) {
	field, ok := motorrec.ParseField(pkt.Field())
	if !ok {
		sess.send(pvwire.NewErrorReject(addr, pvwire.ErrCodeUnknownField, pkt.Field()))
		return
	}
	value, ok := pvwire.GetMapFloat(pkt.PayloadMap(), pvwire.KeyValue)
	if !ok {
		sess.send(pvwire.NewErrorReject(addr, pvwire.ErrCodeBadPayload, "missing value"))
		return
	}

	_, err := rec.Write(field, value)
	reject := ""
	if err != nil {
		reject = err.Error()
	}
	sess.send(pvwire.NewWriteResponse(addr, pkt.Field(), rec.Get(field), reject))
}
