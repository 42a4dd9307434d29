// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

import "errors"

// Write rejection and motion dispatch errors.
var (
	// ErrZeroResolution is returned when a write would make, or depends on,
	// a raw/dial conversion with MRES = 0. The triggering write is rejected
	// and prior state is left unchanged.
	ErrZeroResolution = errors.New("resolution (MRES) is zero, raw/dial conversion undefined")

	// ErrUnknownField is returned for a FieldID outside the record's field set.
	ErrUnknownField = errors.New("unknown record field")

	// ErrBadValue is returned when an enum field is written with a value
	// outside its domain.
	ErrBadValue = errors.New("value out of range for field")

	// ErrNoMover is returned when a move is requested but no hardware
	// collaborator is attached to the record.
	ErrNoMover = errors.New("no motion collaborator attached")
)
