// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors
//
// Motord - beamline positioner coordinate and calibration engine.

package main

import (
	"os"

	"github.com/openbeamline/motord/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
