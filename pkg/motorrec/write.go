// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

// Write applies an external write to one field and runs its dependent-field
// cascade. It returns every field mutation performed, in order, including
// the written field itself (trigger fields normalize their accepted value
// to 0, discarding the payload).
//
// Rejected writes (unknown field, zero resolution, out-of-range enum) leave
// the record unchanged and return a nil update list. A motion-dispatch
// failure is the one case where updates and an error are returned together:
// the position intent is recorded but the move did not start.
func (r *Record) Write(f FieldID, v float64) ([]Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &cascade{rec: r}
	err := c.apply(f, v)
	if err != nil && len(c.updates) == 0 {
		return nil, err
	}
	r.emit(c.updates)
	return c.updates, err
}

// DesiredValue delivers a "new user-desired value" event: the motion path
// when calibration mode is Use, the offset recompute when it is Set.
func (r *Record) DesiredValue(v float64) ([]Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &cascade{rec: r}
	err := c.desiredValue(v)
	if err != nil && len(c.updates) == 0 {
		return nil, err
	}
	r.emit(c.updates)
	return c.updates, err
}

// apply dispatches one field write to its computation. Each branch performs
// all validation before its first mutation so a rejected write cannot leave
// a partial cascade behind.
func (c *cascade) apply(f FieldID, v float64) error {
	switch f {

	case FieldVAL:
		return c.desiredValue(v)

	case FieldRVAL:
		// Raw setpoint fans out to dial and user, never to hardware.
		c.set(FieldRVAL, v)
		dial := v * c.resolution()
		c.set(FieldDVAL, dial)
		c.set(FieldVAL, dialToUser(dial, c.offset(), c.direction()))
		return nil

	case FieldRRBV:
		// Observation fan-out only.
		c.set(FieldRRBV, v)
		dial := v * c.resolution()
		c.set(FieldDRBV, dial)
		c.set(FieldRBV, dialToUser(dial, c.offset(), c.direction()))
		return nil

	case FieldDVAL:
		mres := c.resolution()
		if mres == 0 {
			return ErrZeroResolution
		}
		c.set(FieldDVAL, v)
		c.set(FieldRVAL, v/mres)
		c.set(FieldVAL, dialToUser(v, c.offset(), c.direction()))
		return nil

	case FieldDRBV:
		c.set(FieldDRBV, v)
		c.set(FieldRBV, dialToUser(v, c.offset(), c.direction()))
		return nil

	case FieldMRES:
		if v == 0 {
			return ErrZeroResolution
		}
		c.set(FieldMRES, v)
		// Dial layers follow the raw values, then the user layers follow.
		dial := c.get(FieldRVAL) * v
		c.set(FieldDVAL, dial)
		c.set(FieldVAL, dialToUser(dial, c.offset(), c.direction()))
		drbv := c.get(FieldRRBV) * v
		c.set(FieldDRBV, drbv)
		c.set(FieldRBV, dialToUser(drbv, c.offset(), c.direction()))
		return nil

	case FieldDIR:
		dir := Direction(v)
		if dir != DirPositive && dir != DirNegative {
			return ErrBadValue
		}
		c.set(FieldDIR, v)
		c.recomputeUserValues()
		return nil

	case FieldOFF:
		c.set(FieldOFF, v)
		c.recomputeUserValues()
		return nil

	case FieldHLM:
		c.set(FieldHLM, v)
		if c.direction() == DirNegative {
			c.set(FieldDLLM, c.offset()-v)
		} else {
			c.set(FieldDHLM, v-c.offset())
		}
		return nil

	case FieldLLM:
		c.set(FieldLLM, v)
		if c.direction() == DirNegative {
			c.set(FieldDHLM, c.offset()-v)
		} else {
			c.set(FieldDLLM, v-c.offset())
		}
		return nil

	case FieldDHLM:
		c.set(FieldDHLM, v)
		if c.direction() == DirNegative {
			c.set(FieldLLM, c.offset()-v)
		} else {
			c.set(FieldHLM, v+c.offset())
		}
		return nil

	case FieldDLLM:
		c.set(FieldDLLM, v)
		if c.direction() == DirNegative {
			c.set(FieldHLM, c.offset()-v)
		} else {
			c.set(FieldLLM, v+c.offset())
		}
		return nil

	case FieldFOFF:
		mode := FreezeMode(v)
		if mode != OffsetVariable && mode != OffsetFrozen {
			return ErrBadValue
		}
		c.set(FieldFOFF, v)
		return nil

	case FieldFOF:
		// Edge-triggered: the written value is discarded.
		c.set(FieldFOF, 0)
		c.set(FieldFOFF, float64(OffsetFrozen))
		return nil

	case FieldVOF:
		c.set(FieldVOF, 0)
		c.set(FieldFOFF, float64(OffsetVariable))
		return nil

	case FieldSET:
		mode := CalibMode(v)
		if mode != ModeUse && mode != ModeSet {
			return ErrBadValue
		}
		c.set(FieldSET, v)
		return nil

	case FieldSSET:
		c.set(FieldSSET, 0)
		if c.get(FieldIGSET) == 0 {
			c.set(FieldSET, float64(ModeSet))
		}
		return nil

	case FieldSUSE:
		c.set(FieldSUSE, 0)
		if c.get(FieldIGSET) == 0 {
			c.set(FieldSET, float64(ModeUse))
		}
		return nil

	case FieldPREC:
		p := int(v)
		c.set(FieldPREC, float64(p))
		for _, pf := range precisionFields {
			c.rec.prec[pf] = p
		}
		return nil

	case FieldTWF:
		c.set(FieldTWF, 0)
		if v == 0 {
			return nil
		}
		return c.desiredValue(c.get(FieldVAL) + c.get(FieldTWV))

	case FieldTWR:
		c.set(FieldTWR, 0)
		if v == 0 {
			return nil
		}
		return c.desiredValue(c.get(FieldVAL) - c.get(FieldTWV))

	case FieldRLV:
		c.set(FieldRLV, 0)
		if v == 0 {
			return nil
		}
		return c.desiredValue(c.get(FieldVAL) + v)

	case FieldRBV, FieldIGSET, FieldVELO, FieldTWV,
		FieldMOVN, FieldDMOV, FieldSTAT:
		// Plain stores, no fan-out.
		c.set(f, v)
		return nil

	default:
		return ErrUnknownField
	}
}

// recomputeUserValues refreshes both user-layer values from their dial
// counterparts after an offset or direction change. Dial values are the
// invariant source; limits are deliberately left alone.
func (c *cascade) recomputeUserValues() {
	off, dir := c.offset(), c.direction()
	c.set(FieldVAL, dialToUser(c.get(FieldDVAL), off, dir))
	c.set(FieldRBV, dialToUser(c.get(FieldDRBV), off, dir))
}
