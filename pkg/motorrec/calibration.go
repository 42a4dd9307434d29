// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

// desiredValue routes a new user-desired value through the calibration
// state machine: in Use mode it is a motion request, in Set mode it
// recalibrates the offset against the already-loaded dial setpoint and
// must never move hardware.
func (c *cascade) desiredValue(v float64) error {
	if CalibMode(c.get(FieldSET)) == ModeSet {
		c.calibrate(v)
		return nil
	}
	return c.move(v)
}

// calibrate implements Set-mode handling of a desired user value:
//
//  1. Solve for the offset that maps the loaded dial setpoint onto the
//     desired user value under the current direction.
//  2. Re-anchor the limit pair: with a Variable offset the dial limits are
//     the fixed reference and the user limits follow; with a Frozen offset
//     the user limits are fixed and the dial limits follow.
//  3. Commit the new offset and refresh the user-layer values.
//
// No motion is commanded: in Set mode a write records where the hardware
// already is.
func (c *cascade) calibrate(user float64) {
	dir := c.direction()
	newOff := offsetFor(user, c.get(FieldDVAL), dir)

	if FreezeMode(c.get(FieldFOFF)) == OffsetVariable {
		uh, ul := userLimits(c.get(FieldDHLM), c.get(FieldDLLM), newOff, dir)
		c.set(FieldHLM, uh)
		c.set(FieldLLM, ul)
	} else {
		dh, dl := dialLimits(c.get(FieldHLM), c.get(FieldLLM), newOff, dir)
		c.set(FieldDHLM, dh)
		c.set(FieldDLLM, dl)
	}

	c.set(FieldOFF, newOff)
	c.set(FieldVAL, user)
	c.set(FieldRBV, dialToUser(c.get(FieldDRBV), newOff, dir))
}
