// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

// Package driver provides hardware-motion collaborators for positioner
// records: a serial ASCII motion controller and an in-memory simulator.
// Both satisfy motorrec.Mover.
package driver

import (
	"context"
	"math"
	"sync"
	"time"
)

// simTick is the simulator integration step.
const simTick = 10 * time.Millisecond

// Sim is an in-memory motion controller. Position ramps toward the move
// target at the commanded speed; RawPosition reads the instantaneous
// position. A new Move simply supersedes the previous target.
type Sim struct {
	mu  sync.Mutex
	pos float64
}

// NewSim creates a simulator resting at the given raw position.
func NewSim(start float64) *Sim {
	return &Sim{pos: start}
}

// Move ramps the position to target at speed steps/second and returns when
// the target is reached or the context is cancelled. A non-positive speed
// snaps directly to the target.
func (s *Sim) Move(ctx context.Context, target, speed float64) error {
	if speed <= 0 {
		s.mu.Lock()
		s.pos = target
		s.mu.Unlock()
		return nil
	}

	ticker := time.NewTicker(simTick)
	defer ticker.Stop()

	step := speed * simTick.Seconds()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			delta := target - s.pos
			if math.Abs(delta) <= step {
				s.pos = target
				s.mu.Unlock()
				return nil
			}
			if delta > 0 {
				s.pos += step
			} else {
				s.pos -= step
			}
			s.mu.Unlock()
		}
	}
}

// RawPosition returns the current simulated raw position.
func (s *Sim) RawPosition(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}
