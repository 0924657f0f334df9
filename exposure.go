// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"github.com/dswarbrick/pslr/pentax"
)

// ExposureFlags records which exposure axes are under automatic camera control. The exposure
// mode is a function of these three flags.
type ExposureFlags struct {
	ApertureAuto bool
	ShutterAuto  bool
	ISOAuto      bool
}

// Mode returns the exposure mode code for the flags. The cases are evaluated in order, so a
// manual aperture with automatic shutter is Av regardless of ISO.
func (f ExposureFlags) Mode() uint32 {
	switch {
	case !f.ApertureAuto && !f.ShutterAuto && !f.ISOAuto:
		return pentax.ExposureM
	case !f.ApertureAuto && !f.ShutterAuto && f.ISOAuto:
		return pentax.ExposureTAv
	case !f.ApertureAuto && f.ShutterAuto:
		return pentax.ExposureAv
	case f.ApertureAuto && !f.ShutterAuto:
		return pentax.ExposureTv
	case f.ApertureAuto && f.ShutterAuto && !f.ISOAuto:
		return pentax.ExposureSv
	}
	return pentax.ExposureP
}

// flagsFromMode derives the axis flags from a status exposure mode. Modes that leave ISO to the
// user take the ISO flag from the fixed ISO setting.
func flagsFromMode(mode uint32, isoAuto bool) ExposureFlags {
	switch mode {
	case pentax.ExposureM, pentax.ExposureMOffAuto, pentax.ExposureB, pentax.ExposureBOffAuto,
		pentax.ExposureX:
		return ExposureFlags{}
	case pentax.ExposureTAv:
		return ExposureFlags{ISOAuto: true}
	case pentax.ExposureAv, pentax.ExposureAvOffAuto:
		return ExposureFlags{ShutterAuto: true, ISOAuto: isoAuto}
	case pentax.ExposureTv:
		return ExposureFlags{ApertureAuto: true, ISOAuto: isoAuto}
	case pentax.ExposureSv:
		return ExposureFlags{ApertureAuto: true, ShutterAuto: true}
	}
	return ExposureFlags{ApertureAuto: true, ShutterAuto: true, ISOAuto: true}
}

// get returns the flag of an auto-capable parameter.
func (f ExposureFlags) get(p Parameter) bool {
	switch p {
	case Aperture:
		return f.ApertureAuto
	case Shutter:
		return f.ShutterAuto
	case ISO:
		return f.ISOAuto
	}
	return false
}

func (f *ExposureFlags) set(p Parameter, auto bool) {
	switch p {
	case Aperture:
		f.ApertureAuto = auto
	case Shutter:
		f.ShutterAuto = auto
	case ISO:
		f.ISOAuto = auto
	}
}

var exposureModeNames = []string{
	"P", "Green", "?", "?", "?", "Tv", "Av", "?", "?", "M", "B", "Av", "M", "B", "TAv", "Sv", "X",
}

// ExposureModeName returns the display name of a status exposure mode code.
func ExposureModeName(mode uint32) string {
	if int(mode) < len(exposureModeNames) {
		return exposureModeNames[mode]
	}
	return "?"
}
