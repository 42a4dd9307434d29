// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

import (
	"errors"
	"testing"
)

func newTestRecord(t *testing.T, cfg Config) *Record {
	t.Helper()
	if cfg.Resolution == 0 {
		cfg.Resolution = 1.0
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func mustWrite(t *testing.T, r *Record, f FieldID, v float64) {
	t.Helper()
	if _, err := r.Write(f, v); err != nil {
		t.Fatalf("Write(%v, %v): %v", f, v, err)
	}
}

func TestDialToUserSetpointConversion(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5})

	mustWrite(t, r, FieldOFF, 1615.0)
	mustWrite(t, r, FieldDVAL, 5885.0)
	if got := r.Get(FieldVAL); got != 7500.0 {
		t.Errorf("VAL = %v, want 7500", got)
	}
	if got := r.Get(FieldRVAL); got != 11770.0 {
		t.Errorf("RVAL = %v, want 11770", got)
	}

	// A different calibration offset re-derives the user value from dial.
	mustWrite(t, r, FieldOFF, 1715.0)
	if got := r.Get(FieldVAL); got != 7600.0 {
		t.Errorf("VAL after offset change = %v, want 7600", got)
	}

	// Reversing direction flips the dial sign.
	mustWrite(t, r, FieldOFF, 12385.0)
	mustWrite(t, r, FieldDIR, float64(DirNegative))
	if got := r.Get(FieldVAL); got != 6500.0 {
		t.Errorf("VAL after direction reverse = %v, want 6500", got)
	}
}

func TestRawToDialConversion(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5, Offset: 1615.0})

	mustWrite(t, r, FieldRVAL, 11770.0)
	if got := r.Get(FieldDVAL); got != 5885.0 {
		t.Errorf("DVAL = %v, want 5885", got)
	}
	if got := r.Get(FieldVAL); got != 7500.0 {
		t.Errorf("VAL = %v, want 7500", got)
	}
}

func TestRawReadbackConversion(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5, Offset: 1615.0})

	mustWrite(t, r, FieldRRBV, 11770.0)
	if got := r.Get(FieldDRBV); got != 5885.0 {
		t.Errorf("DRBV = %v, want 5885", got)
	}
	if got := r.Get(FieldRBV); got != 7500.0 {
		t.Errorf("RBV = %v, want 7500", got)
	}

	// An offset change re-derives the user readback without a new raw write.
	mustWrite(t, r, FieldOFF, 1715.0)
	if got := r.Get(FieldRBV); got != 7600.0 {
		t.Errorf("RBV after offset change = %v, want 7600", got)
	}
	if got := r.Get(FieldRRBV); got != 11770.0 {
		t.Errorf("RRBV must not change on offset write, got %v", got)
	}
}

func TestUserLimitConversion(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Offset: 1615.0})

	mustWrite(t, r, FieldHLM, 10000.0)
	mustWrite(t, r, FieldLLM, -5000.0)
	if got := r.Get(FieldDHLM); got != 8385.0 {
		t.Errorf("DHLM = %v, want 8385", got)
	}
	if got := r.Get(FieldDLLM); got != -6615.0 {
		t.Errorf("DLLM = %v, want -6615", got)
	}
}

func TestDialLimitConversion(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Offset: 100.0})

	mustWrite(t, r, FieldDHLM, 900.0)
	if got := r.Get(FieldHLM); got != 1000.0 {
		t.Errorf("HLM = %v, want 1000", got)
	}
	mustWrite(t, r, FieldDLLM, -900.0)
	if got := r.Get(FieldLLM); got != -800.0 {
		t.Errorf("LLM = %v, want -800", got)
	}
}

func TestNegativeDirectionLimits(t *testing.T) {
	// The Negative transform is monotonically decreasing, so a user high
	// limit maps onto the dial low limit and vice versa.
	r := newTestRecord(t, Config{Name: "m1", Direction: DirNegative, Offset: 100.0})

	mustWrite(t, r, FieldHLM, 1000.0)
	if got := r.Get(FieldDLLM); got != -900.0 {
		t.Errorf("DLLM = %v, want -900", got)
	}
	mustWrite(t, r, FieldLLM, -1000.0)
	if got := r.Get(FieldDHLM); got != 1100.0 {
		t.Errorf("DHLM = %v, want 1100", got)
	}
}

func TestOffsetChangeLeavesLimitsAlone(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", UserHighLimit: 500.0, UserLowLimit: -500.0})

	mustWrite(t, r, FieldOFF, 123.0)
	if got := r.Get(FieldHLM); got != 500.0 {
		t.Errorf("HLM changed on offset write: %v", got)
	}
	if got := r.Get(FieldDHLM); got != 500.0 {
		t.Errorf("DHLM changed on offset write: %v", got)
	}
}

func TestResolutionChangeRecomputesBothPairs(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 1.0, Offset: 10.0})
	mustWrite(t, r, FieldRVAL, 200.0)
	mustWrite(t, r, FieldRRBV, 100.0)

	mustWrite(t, r, FieldMRES, 0.25)
	if got := r.Get(FieldDVAL); got != 50.0 {
		t.Errorf("DVAL = %v, want 50", got)
	}
	if got := r.Get(FieldVAL); got != 60.0 {
		t.Errorf("VAL = %v, want 60", got)
	}
	if got := r.Get(FieldDRBV); got != 25.0 {
		t.Errorf("DRBV = %v, want 25", got)
	}
	if got := r.Get(FieldRBV); got != 35.0 {
		t.Errorf("RBV = %v, want 35", got)
	}
}

func TestZeroResolutionRejected(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5})
	mustWrite(t, r, FieldRVAL, 100.0)
	before := r.Snapshot()

	if _, err := r.Write(FieldMRES, 0); !errors.Is(err, ErrZeroResolution) {
		t.Fatalf("Write(MRES, 0) error = %v, want ErrZeroResolution", err)
	}
	after := r.Snapshot()
	for f, v := range before {
		if after[f] != v {
			t.Errorf("field %v changed after rejected write: %v -> %v", f, v, after[f])
		}
	}

	if _, err := New(Config{Name: "bad"}); !errors.Is(err, ErrZeroResolution) {
		t.Errorf("New with zero resolution error = %v, want ErrZeroResolution", err)
	}
}

func TestFreezeTriggers(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1"})

	if got := FreezeMode(r.Get(FieldFOFF)); got != OffsetVariable {
		t.Fatalf("default FOFF = %v, want Variable", got)
	}
	// Any written value activates the transition; the payload is discarded.
	mustWrite(t, r, FieldFOF, 42.0)
	if got := FreezeMode(r.Get(FieldFOFF)); got != OffsetFrozen {
		t.Errorf("FOFF after FOF = %v, want Frozen", got)
	}
	if got := r.Get(FieldFOF); got != 0 {
		t.Errorf("FOF retained its payload: %v", got)
	}
	mustWrite(t, r, FieldVOF, -1.0)
	if got := FreezeMode(r.Get(FieldFOFF)); got != OffsetVariable {
		t.Errorf("FOFF after VOF = %v, want Variable", got)
	}
}

func TestSetUseTriggers(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1"})

	if got := CalibMode(r.Get(FieldSET)); got != ModeUse {
		t.Fatalf("default SET = %v, want Use", got)
	}
	mustWrite(t, r, FieldSSET, 5.0)
	if got := CalibMode(r.Get(FieldSET)); got != ModeSet {
		t.Errorf("SET after SSET = %v, want Set", got)
	}
	mustWrite(t, r, FieldSUSE, 3.0)
	if got := CalibMode(r.Get(FieldSET)); got != ModeUse {
		t.Errorf("SET after SUSE = %v, want Use", got)
	}
}

func TestIgnoreSetGuard(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1"})

	mustWrite(t, r, FieldIGSET, 1.0)
	mustWrite(t, r, FieldSSET, 1.0)
	if got := CalibMode(r.Get(FieldSET)); got != ModeUse {
		t.Errorf("SSET honored despite IGSET, SET = %v", got)
	}
	mustWrite(t, r, FieldIGSET, 0.0)
	mustWrite(t, r, FieldSSET, 1.0)
	if got := CalibMode(r.Get(FieldSET)); got != ModeSet {
		t.Errorf("SSET ignored with IGSET clear, SET = %v", got)
	}
}

func TestPrecisionBroadcast(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Precision: 4})

	for _, f := range precisionFields {
		if got := r.Precision(f); got != 4 {
			t.Errorf("seed precision of %v = %d, want 4", f, got)
		}
	}

	mustWrite(t, r, FieldPREC, 5.0)
	for _, f := range precisionFields {
		if got := r.Precision(f); got != 5 {
			t.Errorf("precision of %v = %d, want 5", f, got)
		}
	}
}

func TestBadEnumValuesRejected(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1"})

	tests := []struct {
		field FieldID
		value float64
	}{
		{FieldDIR, 2.0},
		{FieldDIR, -1.0},
		{FieldFOFF, 7.0},
		{FieldSET, 3.0},
	}
	for _, tt := range tests {
		if _, err := r.Write(tt.field, tt.value); !errors.Is(err, ErrBadValue) {
			t.Errorf("Write(%v, %v) error = %v, want ErrBadValue", tt.field, tt.value, err)
		}
	}

	if _, err := r.Write(FieldID(999), 1.0); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field error = %v, want ErrUnknownField", err)
	}
}

func TestParseFieldRoundTrip(t *testing.T) {
	for _, f := range Fields() {
		got, ok := ParseField(f.String())
		if !ok || got != f {
			t.Errorf("ParseField(%q) = (%v, %v), want (%v, true)", f.String(), got, ok, f)
		}
	}
	if _, ok := ParseField("NOPE"); ok {
		t.Error("ParseField accepted an unknown mnemonic")
	}
}

func TestOnUpdateOrdering(t *testing.T) {
	r := newTestRecord(t, Config{Name: "m1", Resolution: 0.5, Offset: 1615.0})

	var seen []Update
	r.OnUpdate(func(u Update) { seen = append(seen, u) })

	mustWrite(t, r, FieldRVAL, 11770.0)
	want := []Update{
		{FieldRVAL, 11770.0},
		{FieldDVAL, 5885.0},
		{FieldVAL, 7500.0},
	}
	if len(seen) != len(want) {
		t.Fatalf("got %d updates, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("update[%d] = %+v, want %+v", i, seen[i], want[i])
		}
	}
}
