// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

// Package ioc binds positioner records to the pvwire transport: it serves
// remote field reads/writes and monitor subscriptions over WebSocket and
// feeds hardware readback into each record.
package ioc

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/openbeamline/motord/pkg/motorrec"
	"github.com/openbeamline/motord/pkg/pvwire"
)

// event is one field mutation of one record, queued for monitor fan-out.
type event struct {
	addr   uint64
	update motorrec.Update
}

// Options configures a Server.
type Options struct {
	// Username/Password enable HTTP Basic auth on the pvwire endpoint
	// when both are set.
	Username string
	Password string

	// PollInterval is the raw readback poll period for records with a
	// hardware collaborator. Zero disables polling.
	PollInterval time.Duration

	Logger *log.Logger
}

// Server owns a set of positioner records and serves them over pvwire.
type Server struct {
	opts  Options
	log   *log.Logger
	start time.Time

	mu      sync.Mutex
	records map[uint64]*motorrec.Record
	movers  map[uint64]motorrec.Mover
	order   []uint64

	// subs maps record address -> session -> field filter ("" = all).
	subs map[uint64]map[*session]string

	// events carries record mutations from the write path to the monitor
	// distributor. The record's OnUpdate hook runs under the record lock,
	// so a full queue drops the event instead of blocking a write.
	events  chan event
	dropped uint64
}

// NewServer creates an empty server; records are attached with Add.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "ioc: ", log.LstdFlags)
	}
	return &Server{
		opts:    opts,
		log:     logger,
		start:   time.Now(),
		records: make(map[uint64]*motorrec.Record),
		movers:  make(map[uint64]motorrec.Mover),
		subs:    make(map[uint64]map[*session]string),
		events:  make(chan event, 1024),
	}
}

// Add registers a record under a pvwire address. mover may be nil for a
// record without hardware feedback (no readback polling).
func (s *Server) Add(addr uint64, rec *motorrec.Record, mover motorrec.Mover) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[addr] = rec
	if mover != nil {
		s.movers[addr] = mover
	}
	s.order = append(s.order, addr)

	rec.OnUpdate(func(u motorrec.Update) {
		select {
		case s.events <- event{addr: addr, update: u}:
		default:
			s.dropped++
		}
	})
}

// Run drives the monitor distributor and the readback pollers until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if s.opts.PollInterval > 0 {
		s.mu.Lock()
		for addr, mover := range s.movers {
			rec := s.records[addr]
			wg.Add(1)
			go func(addr uint64, rec *motorrec.Record, mover motorrec.Mover) {
				defer wg.Done()
				s.pollReadback(ctx, addr, rec, mover)
			}(addr, rec, mover)
		}
		s.mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.distribute(ctx)
	}()

	wg.Wait()
}

// pollReadback periodically reads the raw hardware position into RRBV,
// feeding the readback fan-out chain. A read failure marks the record
// status unknown instead of propagating a bogus position.
func (s *Server) pollReadback(ctx context.Context, addr uint64, rec *motorrec.Record, mover motorrec.Mover) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pos, err := mover.RawPosition(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Printf("readback %s (0x%X): %v", rec.Name(), addr, err)
				rec.Write(motorrec.FieldSTAT, float64(motorrec.StatusUnknown))
				continue
			}
			if _, err := rec.Write(motorrec.FieldRRBV, pos); err != nil {
				s.log.Printf("readback %s (0x%X): %v", rec.Name(), addr, err)
			}
		}
	}
}

// distribute fans queued record mutations out to subscribed sessions.
func (s *Server) distribute(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.mu.Lock()
			rec := s.records[ev.addr]
			sessions := make(map[*session]string, len(s.subs[ev.addr]))
			for sess, filter := range s.subs[ev.addr] {
				sessions[sess] = filter
			}
			s.mu.Unlock()
			if rec == nil {
				continue
			}

			field := ev.update.Field.String()
			for sess, filter := range sessions {
				if filter != "" && filter != field {
					continue
				}
				pkt := pvwire.NewMonitorEvent(ev.addr, field, ev.update.Value,
					rec.Precision(ev.update.Field))
				if err := sess.send(pkt); err != nil {
					s.log.Printf("monitor send: %v", err)
				}
			}
		}
	}
}

// subscribe registers a session for a record's monitor events.
func (s *Server) subscribe(addr uint64, sess *session, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[addr] == nil {
		s.subs[addr] = make(map[*session]string)
	}
	s.subs[addr][sess] = field
}

// unsubscribe drops a session's subscription on one record.
func (s *Server) unsubscribe(addr uint64, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[addr], sess)
}

// dropSession removes a disconnected session from every subscription set.
func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.subs {
		delete(m, sess)
	}
}

// record resolves an address to its record.
func (s *Server) record(addr uint64) (*motorrec.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[addr]
	return rec, ok
}

// addresses returns the registered record addresses in registration order.
func (s *Server) addresses() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.order))
	copy(out, s.order)
	return out
}

// Handler returns the HTTP handler exposing the pvwire endpoint at /pv.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pv", s.handshake)
	return mux
}

// ListenAndServe runs the readback pollers, the monitor distributor and
// the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	go s.Run(ctx)

	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.log.Printf("pvwire endpoint on %s/pv", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
