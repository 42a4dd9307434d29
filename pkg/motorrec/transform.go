// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

// Coordinate transforms between the dial and user systems.
//
// Positive direction: user = dial + offset
// Negative direction: user = offset - dial
//
// The raw/dial relation is dial = raw * resolution for both the setpoint
// and the readback pair.

// dialToUser converts a dial-coordinate value to user coordinates.
func dialToUser(dial, offset float64, dir Direction) float64 {
	if dir == DirNegative {
		return offset - dial
	}
	return dial + offset
}

// userToDial converts a user-coordinate value to dial coordinates.
func userToDial(user, offset float64, dir Direction) float64 {
	if dir == DirNegative {
		return offset - user
	}
	return user - offset
}

// offsetFor solves user = f(dial, offset) for the offset that maps the
// given dial value onto the given user value. Linear in both directions,
// no singularity.
func offsetFor(user, dial float64, dir Direction) float64 {
	if dir == DirNegative {
		return user + dial
	}
	return user - dial
}

// dialLimits maps a user high/low limit pair to dial coordinates. The
// Negative direction is monotonically decreasing, so the high and low
// bounds swap roles.
func dialLimits(userHigh, userLow, offset float64, dir Direction) (dialHigh, dialLow float64) {
	if dir == DirNegative {
		return offset - userLow, offset - userHigh
	}
	return userHigh - offset, userLow - offset
}

// userLimits maps a dial high/low limit pair to user coordinates, with the
// same bound swap for the Negative direction.
func userLimits(dialHigh, dialLow, offset float64, dir Direction) (userHigh, userLow float64) {
	if dir == DirNegative {
		return offset - dialLow, offset - dialHigh
	}
	return dialHigh + offset, dialLow + offset
}
