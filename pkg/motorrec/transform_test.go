// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package motorrec

import "testing"

func TestDialToUser(t *testing.T) {
	tests := []struct {
		name   string
		dial   float64
		offset float64
		dir    Direction
		want   float64
	}{
		{"positive with offset", 5885.0, 1615.0, DirPositive, 7500.0},
		{"positive zero offset", 100.0, 0.0, DirPositive, 100.0},
		{"negative with offset", 5885.0, 12385.0, DirNegative, 6500.0},
		{"negative zero offset", 250.0, 0.0, DirNegative, -250.0},
		{"negative dial sign flip", -40.0, 10.0, DirNegative, 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dialToUser(tt.dial, tt.offset, tt.dir)
			if got != tt.want {
				t.Errorf("dialToUser(%v, %v, %v) = %v, want %v",
					tt.dial, tt.offset, tt.dir, got, tt.want)
			}
		})
	}
}

func TestDialUserRoundTrip(t *testing.T) {
	// dial -> user -> dial must recover the original dial value exactly,
	// for both directions.
	dials := []float64{-12345.5, -1.0, 0.0, 0.125, 987.25, 5885.0}
	offsets := []float64{-1615.0, 0.0, 0.5, 1615.0}

	for _, dir := range []Direction{DirPositive, DirNegative} {
		for _, off := range offsets {
			for _, dial := range dials {
				user := dialToUser(dial, off, dir)
				back := userToDial(user, off, dir)
				if back != dial {
					t.Errorf("round trip dir=%v off=%v: dial %v -> user %v -> %v",
						dir, off, dial, user, back)
				}
			}
		}
	}
}

func TestOffsetFor(t *testing.T) {
	tests := []struct {
		name string
		user float64
		dial float64
		dir  Direction
		want float64
	}{
		{"positive", 7500.0, 5885.0, DirPositive, 1615.0},
		{"negative", 6500.0, 5885.0, DirNegative, 12385.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := offsetFor(tt.user, tt.dial, tt.dir)
			if got != tt.want {
				t.Errorf("offsetFor(%v, %v, %v) = %v, want %v",
					tt.user, tt.dial, tt.dir, got, tt.want)
			}
			// The solved offset must actually satisfy the forward transform.
			if u := dialToUser(tt.dial, got, tt.dir); u != tt.user {
				t.Errorf("solved offset does not map back: got user %v, want %v", u, tt.user)
			}
		})
	}
}

func TestLimitTransforms(t *testing.T) {
	tests := []struct {
		name               string
		userHigh, userLow  float64
		offset             float64
		dir                Direction
		wantHigh, wantLow  float64
	}{
		{"positive", 10000.0, -5000.0, 1615.0, DirPositive, 8385.0, -6615.0},
		{"positive zero offset", 1000.0, -1000.0, 0.0, DirPositive, 1000.0, -1000.0},
		// Negative direction is monotonically decreasing: bounds swap.
		{"negative swaps bounds", 1000.0, -1000.0, 100.0, DirNegative, 1100.0, -900.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dh, dl := dialLimits(tt.userHigh, tt.userLow, tt.offset, tt.dir)
			if dh != tt.wantHigh || dl != tt.wantLow {
				t.Errorf("dialLimits = (%v, %v), want (%v, %v)", dh, dl, tt.wantHigh, tt.wantLow)
			}
			// userLimits is the inverse mapping.
			uh, ul := userLimits(dh, dl, tt.offset, tt.dir)
			if uh != tt.userHigh || ul != tt.userLow {
				t.Errorf("userLimits(dialLimits(...)) = (%v, %v), want (%v, %v)",
					uh, ul, tt.userHigh, tt.userLow)
			}
		})
	}
}
