// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

import "context"

// move implements the Use-mode motion path: convert the desired user value
// down to a raw target, derive the raw speed, and hand the move to the
// hardware collaborator without blocking the field-update path.
//
// The setpoint fields stay updated even when dispatch fails: the position
// intent is recorded and the failure is reported to the caller.
func (c *cascade) move(user float64) error {
	mres := c.resolution()
	if mres == 0 {
		return ErrZeroResolution
	}

	dial := userToDial(user, c.offset(), c.direction())
	raw := dial / mres
	speed := c.get(FieldVELO) / mres

	c.set(FieldVAL, user)
	c.set(FieldDVAL, dial)
	c.set(FieldRVAL, raw)

	if c.rec.mover == nil {
		c.set(FieldSTAT, float64(StatusComm))
		return ErrNoMover
	}

	c.set(FieldMOVN, 1)
	c.set(FieldDMOV, 0)
	c.set(FieldSTAT, float64(StatusOK))
	go c.rec.runMove(raw, speed)
	return nil
}

// runMove drives the hardware collaborator off the field-update critical
// path and folds the completion status back into the record. A newer move
// is not cancelled by this one finishing; superseding semantics belong to
// the collaborator.
func (r *Record) runMove(target, speed float64) {
	err := r.mover.Move(context.Background(), target, speed)

	r.mu.Lock()
	defer r.mu.Unlock()
	c := &cascade{rec: r}
	c.set(FieldMOVN, 0)
	c.set(FieldDMOV, 1)
	if err != nil {
		c.set(FieldSTAT, float64(StatusComm))
	}
	r.emit(c.updates)
}
