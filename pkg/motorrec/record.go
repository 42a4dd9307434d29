// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

import (
	"context"
	"sync"
)

// Mover is the hardware-motion collaborator boundary. Move drives the
// positioner to a raw step target at the given raw speed (steps/s) and
// returns when the move completes or fails. RawPosition reads the current
// raw step position from the hardware.
type Mover interface {
	Move(ctx context.Context, target, speed float64) error
	RawPosition(ctx context.Context) (float64, error)
}

// Update records one field mutation performed by a write cascade, in the
// order it was applied.
type Update struct {
	Field FieldID
	Value float64
}

// Config seeds a new positioner record.
type Config struct {
	Name        string
	Description string
	EGU         string // engineering unit label

	Resolution float64 // MRES, engineering units per step; must be nonzero
	Direction  Direction
	Offset     float64
	Velocity   float64 // engineering units per second
	Precision  int
	TweakStep  float64

	// User-coordinate travel limits. The dial limits are derived at
	// construction from these via the current offset/direction.
	UserHighLimit float64
	UserLowLimit  float64

	Mover Mover
}

// Record is the field set of one positioner instance. All mutation goes
// through Write (or DesiredValue); a write runs its full dependent-field
// cascade under the record lock before the next write is admitted.
type Record struct {
	name string
	desc string
	egu  string

	mu    sync.Mutex
	vals  [numFields]float64
	prec  [numFields]int
	mover Mover

	onUpdate func(Update)
}

// New creates a positioner record with the given seed configuration.
// Defaults follow the legacy record: offset frozen mode Variable,
// calibration mode Use, done-moving set.
func New(cfg Config) (*Record, error) {
	if cfg.Resolution == 0 {
		return nil, ErrZeroResolution
	}
	r := &Record{
		name:  cfg.Name,
		desc:  cfg.Description,
		egu:   cfg.EGU,
		mover: cfg.Mover,
	}
	r.vals[FieldMRES] = cfg.Resolution
	r.vals[FieldDIR] = float64(cfg.Direction)
	r.vals[FieldOFF] = cfg.Offset
	r.vals[FieldVELO] = cfg.Velocity
	r.vals[FieldTWV] = cfg.TweakStep
	r.vals[FieldDMOV] = 1

	r.vals[FieldHLM] = cfg.UserHighLimit
	r.vals[FieldLLM] = cfg.UserLowLimit
	dh, dl := dialLimits(cfg.UserHighLimit, cfg.UserLowLimit, cfg.Offset, cfg.Direction)
	r.vals[FieldDHLM] = dh
	r.vals[FieldDLLM] = dl

	r.vals[FieldPREC] = float64(cfg.Precision)
	for _, f := range precisionFields {
		r.prec[f] = cfg.Precision
	}
	return r, nil
}

// Name returns the record name.
func (r *Record) Name() string { return r.name }

// Description returns the free-text description.
func (r *Record) Description() string { return r.desc }

// EGU returns the engineering unit label.
func (r *Record) EGU() string { return r.egu }

// Get returns the current value of a field.
func (r *Record) Get(f FieldID) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f < 0 || f >= numFields {
		return 0
	}
	return r.vals[f]
}

// Precision returns the display precision of a field.
func (r *Record) Precision(f FieldID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f < 0 || f >= numFields {
		return 0
	}
	return r.prec[f]
}

// Status returns the record status sentinel.
func (r *Record) Status() Status {
	return Status(r.Get(FieldSTAT))
}

// Snapshot returns a copy of every field value, keyed by FieldID.
func (r *Record) Snapshot() map[FieldID]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[FieldID]float64, numFields)
	for f := FieldID(0); f < numFields; f++ {
		out[f] = r.vals[f]
	}
	return out
}

// OnUpdate registers a hook invoked for every field mutation, in cascade
// order, while the record lock is held. The hook must not call back into
// the record.
func (r *Record) OnUpdate(fn func(Update)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = fn
}

// emit delivers cascade updates to the monitor hook. Caller holds r.mu.
func (r *Record) emit(updates []Update) {
	if r.onUpdate == nil {
		return
	}
	for _, u := range updates {
		r.onUpdate(u)
	}
}

// cascade accumulates the field mutations of one write while the record
// lock is held.
type cascade struct {
	rec     *Record
	updates []Update
}

// set commits one field value and records it as an update.
func (c *cascade) set(f FieldID, v float64) {
	c.rec.vals[f] = v
	c.updates = append(c.updates, Update{Field: f, Value: v})
}

func (c *cascade) get(f FieldID) float64 { return c.rec.vals[f] }

func (c *cascade) direction() Direction { return Direction(c.rec.vals[FieldDIR]) }
func (c *cascade) offset() float64      { return c.rec.vals[FieldOFF] }
func (c *cascade) resolution() float64  { return c.rec.vals[FieldMRES] }
