// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dswarbrick/pslr/pentax"
)

func TestExposureModeDecisionTable(t *testing.T) {
	tests := []struct {
		flags ExposureFlags
		mode  uint32
	}{
		{ExposureFlags{false, false, false}, pentax.ExposureM},
		{ExposureFlags{false, false, true}, pentax.ExposureTAv},
		{ExposureFlags{false, true, false}, pentax.ExposureAv},
		{ExposureFlags{false, true, true}, pentax.ExposureAv},
		{ExposureFlags{true, false, false}, pentax.ExposureTv},
		{ExposureFlags{true, false, true}, pentax.ExposureTv},
		{ExposureFlags{true, true, false}, pentax.ExposureSv},
		{ExposureFlags{true, true, true}, pentax.ExposureP},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.mode, tt.flags.Mode(), "%+v", tt.flags)
	}
}

func TestFlagsFromMode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(ExposureFlags{}, flagsFromMode(pentax.ExposureMOffAuto, true))
	assert.Equal(ExposureFlags{ISOAuto: true}, flagsFromMode(pentax.ExposureTAv, false))
	assert.Equal(ExposureFlags{ShutterAuto: true, ISOAuto: true}, flagsFromMode(pentax.ExposureAv, true))
	assert.Equal(ExposureFlags{ApertureAuto: true}, flagsFromMode(pentax.ExposureTv, false))
	assert.Equal(ExposureFlags{ApertureAuto: true, ShutterAuto: true}, flagsFromMode(pentax.ExposureSv, true))
	assert.Equal(ExposureFlags{true, true, true}, flagsFromMode(pentax.ExposureGreen, false))

	// Derived flags map back to the same mode
	for _, mode := range []uint32{pentax.ExposureP, pentax.ExposureTv, pentax.ExposureAv, pentax.ExposureM,
		pentax.ExposureTAv, pentax.ExposureSv} {
		assert.Equal(mode, flagsFromMode(mode, mode == pentax.ExposureP).Mode())
	}
}

func TestExposureModeName(t *testing.T) {
	assert.Equal(t, "Av", ExposureModeName(pentax.ExposureAvOffAuto))
	assert.Equal(t, "TAv", ExposureModeName(pentax.ExposureTAv))
	assert.Equal(t, "?", ExposureModeName(99))
}
