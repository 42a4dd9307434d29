// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

// Package motorrec implements the field-computation engine of a legacy
// positioner ("motor") record.
//
// One Record owns the full field set of a single positioner and keeps the
// raw (hardware step), dial (calibrated-zero) and user (offset/sign-adjusted)
// coordinate layers mutually consistent as any one field is written. It also
// implements the two calibration policies (offset frozen/variable and
// set/use mode), limit mirroring between the dial and user systems, the
// display-precision broadcast, and the motion-trigger boundary to the
// hardware collaborator.
//
// The package is transport-agnostic: a server maps remote writes onto
// Record.Write and fans the returned updates back out to subscribers.
package motorrec

// FieldID identifies one field of a positioner record.
type FieldID int

// Record fields, named by their legacy record mnemonics.
const (
	FieldVAL  FieldID = iota // user setpoint
	FieldRBV                 // user readback
	FieldDVAL                // dial setpoint
	FieldDRBV                // dial readback
	FieldRVAL                // raw setpoint (steps)
	FieldRRBV                // raw readback (steps)
	FieldMRES                // resolution, engineering units per step
	FieldDIR                 // user direction (0=Pos, 1=Neg)
	FieldOFF                 // user-dial calibration offset
	FieldHLM                 // user high limit
	FieldLLM                 // user low limit
	FieldDHLM                // dial high limit
	FieldDLLM                // dial low limit
	FieldFOFF                // offset freeze mode (0=Variable, 1=Frozen)
	FieldFOF                 // trigger: freeze offset
	FieldVOF                 // trigger: vary offset
	FieldSET                 // calibration mode (0=Use, 1=Set)
	FieldSSET                // trigger: enter Set mode
	FieldSUSE                // trigger: enter Use mode
	FieldIGSET               // ignore SSET/SUSE triggers when nonzero
	FieldPREC                // display precision broadcast
	FieldVELO                // commanded velocity, engineering units/s
	FieldTWV                 // tweak step size
	FieldTWF                 // trigger: tweak forward
	FieldTWR                 // trigger: tweak reverse
	FieldRLV                 // relative move request, resets to 0
	FieldMOVN                // motion in progress
	FieldDMOV                // done moving
	FieldSTAT                // record status

	numFields
)

var fieldNames = [numFields]string{
	FieldVAL:   "VAL",
	FieldRBV:   "RBV",
	FieldDVAL:  "DVAL",
	FieldDRBV:  "DRBV",
	FieldRVAL:  "RVAL",
	FieldRRBV:  "RRBV",
	FieldMRES:  "MRES",
	FieldDIR:   "DIR",
	FieldOFF:   "OFF",
	FieldHLM:   "HLM",
	FieldLLM:   "LLM",
	FieldDHLM:  "DHLM",
	FieldDLLM:  "DLLM",
	FieldFOFF:  "FOFF",
	FieldFOF:   "FOF",
	FieldVOF:   "VOF",
	FieldSET:   "SET",
	FieldSSET:  "SSET",
	FieldSUSE:  "SUSE",
	FieldIGSET: "IGSET",
	FieldPREC:  "PREC",
	FieldVELO:  "VELO",
	FieldTWV:   "TWV",
	FieldTWF:   "TWF",
	FieldTWR:   "TWR",
	FieldRLV:   "RLV",
	FieldMOVN:  "MOVN",
	FieldDMOV:  "DMOV",
	FieldSTAT:  "STAT",
}

// String returns the legacy mnemonic for the field ("VAL", "DHLM", ...).
func (f FieldID) String() string {
	if f < 0 || f >= numFields {
		return "?"
	}
	return fieldNames[f]
}

// Fields returns every field of the record, in declaration order.
func Fields() []FieldID {
	out := make([]FieldID, numFields)
	for i := range out {
		out[i] = FieldID(i)
	}
	return out
}

// ParseField resolves a legacy mnemonic to its FieldID.
func ParseField(name string) (FieldID, bool) {
	for i, n := range fieldNames {
		if n == name {
			return FieldID(i), true
		}
	}
	return 0, false
}

// Direction is the sign convention between dial and user coordinates.
type Direction int

// Direction values
const (
	DirPositive Direction = 0
	DirNegative Direction = 1
)

func (d Direction) String() string {
	if d == DirNegative {
		return "Neg"
	}
	return "Pos"
}

// FreezeMode is the offset-freeze calibration policy.
type FreezeMode int

// FreezeMode values
const (
	OffsetVariable FreezeMode = 0
	OffsetFrozen   FreezeMode = 1
)

func (m FreezeMode) String() string {
	if m == OffsetFrozen {
		return "Frozen"
	}
	return "Variable"
}

// CalibMode selects whether setpoint writes move hardware (Use) or load
// calibration coordinates (Set).
type CalibMode int

// CalibMode values
const (
	ModeUse CalibMode = 0
	ModeSet CalibMode = 1
)

func (m CalibMode) String() string {
	if m == ModeSet {
		return "Set"
	}
	return "Use"
}

// Status is the record alarm/status sentinel.
type Status int

// Status values
const (
	StatusOK      Status = 0 // no alarm
	StatusComm    Status = 1 // motion dispatch failed
	StatusUnknown Status = 2 // malformed or unparsable feedback
)

func (s Status) String() string {
	switch s {
	case StatusComm:
		return "COMM"
	case StatusUnknown:
		return "UNKNOWN"
	}
	return "OK"
}

// precisionFields are the coordinate, limit and rate fields that share the
// record's display precision. A write to PREC fans out to all of them.
var precisionFields = []FieldID{
	FieldVAL, FieldRBV, FieldDVAL, FieldDRBV,
	FieldHLM, FieldLLM, FieldDHLM, FieldDLLM,
	FieldOFF, FieldVELO, FieldTWV, FieldRLV, FieldMRES,
}
