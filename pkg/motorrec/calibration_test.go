// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

import "testing"

func TestSetCalibrationVariableOffset(t *testing.T) {
	// In Set mode with a Variable offset, a desired user value recomputes
	// the offset against the loaded dial setpoint; the dial limits are the
	// fixed reference and the user limits follow the new offset.
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5})

	mustWrite(t, r, FieldSET, float64(ModeSet))
	mustWrite(t, r, FieldDVAL, 5885.0)
	mustWrite(t, r, FieldHLM, 1000.0)
	mustWrite(t, r, FieldLLM, -1000.0)

	if _, err := r.DesiredValue(7500.0); err != nil {
		t.Fatalf("DesiredValue: %v", err)
	}

	if got := r.Get(FieldOFF); got != 1615.0 {
		t.Errorf("OFF = %v, want 1615", got)
	}
	if got := r.Get(FieldHLM); got != 2615.0 {
		t.Errorf("HLM = %v, want 2615", got)
	}
	if got := r.Get(FieldLLM); got != 615.0 {
		t.Errorf("LLM = %v, want 615", got)
	}
	// Dial limits were the anchor and must not have moved.
	if got := r.Get(FieldDHLM); got != 1000.0 {
		t.Errorf("DHLM = %v, want 1000", got)
	}
	if got := r.Get(FieldDLLM); got != -1000.0 {
		t.Errorf("DLLM = %v, want -1000", got)
	}
	if got := r.Get(FieldVAL); got != 7500.0 {
		t.Errorf("VAL = %v, want 7500", got)
	}
}

func TestSetCalibrationFrozenOffset(t *testing.T) {
	// With a Frozen offset the user limits are the fixed reference and the
	// dial limits are recomputed instead.
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5})

	mustWrite(t, r, FieldSET, float64(ModeSet))
	mustWrite(t, r, FieldFOF, 1.0)
	mustWrite(t, r, FieldDVAL, 5885.0)
	mustWrite(t, r, FieldHLM, 1000.0)
	mustWrite(t, r, FieldLLM, -1000.0)

	if _, err := r.DesiredValue(7500.0); err != nil {
		t.Fatalf("DesiredValue: %v", err)
	}

	if got := r.Get(FieldOFF); got != 1615.0 {
		t.Errorf("OFF = %v, want 1615", got)
	}
	if got := r.Get(FieldHLM); got != 1000.0 {
		t.Errorf("HLM = %v, want 1000 (frozen reference)", got)
	}
	if got := r.Get(FieldLLM); got != -1000.0 {
		t.Errorf("LLM = %v, want -1000 (frozen reference)", got)
	}
	if got := r.Get(FieldDHLM); got != -615.0 {
		t.Errorf("DHLM = %v, want -615", got)
	}
	if got := r.Get(FieldDLLM); got != -2615.0 {
		t.Errorf("DLLM = %v, want -2615", got)
	}
}

func TestSetCalibrationNegativeDirection(t *testing.T) {
	// The Negative solve: user = offset - dial, so offset = user + dial.
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5, Direction: DirNegative})

	mustWrite(t, r, FieldSET, float64(ModeSet))
	mustWrite(t, r, FieldDVAL, 100.0)

	if _, err := r.DesiredValue(400.0); err != nil {
		t.Fatalf("DesiredValue: %v", err)
	}
	if got := r.Get(FieldOFF); got != 500.0 {
		t.Errorf("OFF = %v, want 500", got)
	}
	// The committed offset must satisfy the forward transform.
	if got := dialToUser(100.0, r.Get(FieldOFF), DirNegative); got != 400.0 {
		t.Errorf("forward transform after solve = %v, want 400", got)
	}
}

func TestSetModeNeverMovesHardware(t *testing.T) {
	m := &mockMover{started: make(chan moveCall, 4)}
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5, Mover: m})

	mustWrite(t, r, FieldSET, float64(ModeSet))
	mustWrite(t, r, FieldDVAL, 5885.0)
	mustWrite(t, r, FieldRVAL, 11000.0)
	if _, err := r.DesiredValue(7500.0); err != nil {
		t.Fatalf("DesiredValue: %v", err)
	}

	select {
	case call := <-m.started:
		t.Fatalf("hardware moved in Set mode: %+v", call)
	default:
	}
	if got := r.Get(FieldDMOV); got != 1 {
		t.Errorf("DMOV = %v, want 1 (no motion in Set mode)", got)
	}
}

func TestSetCalibrationUpdatesReadback(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5})

	mustWrite(t, r, FieldRRBV, 11770.0)
	mustWrite(t, r, FieldSET, float64(ModeSet))
	mustWrite(t, r, FieldDVAL, 5885.0)
	if _, err := r.DesiredValue(7500.0); err != nil {
		t.Fatalf("DesiredValue: %v", err)
	}
	// The readback follows the freshly committed offset.
	if got := r.Get(FieldRBV); got != 7500.0 {
		t.Errorf("RBV = %v, want 7500", got)
	}
}
