// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stop

import "fmt"

// Rational is a nominator/denominator pair as transmitted by the camera. It is never reduced.
type Rational struct {
	Nom   int32
	Denom int32
}

func (r Rational) Float() float64 {
	if r.Denom == 0 {
		return 0
	}
	return float64(r.Nom) / float64(r.Denom)
}

// Valid reports whether r can be converted, i.e. the denominator is non-zero.
func (r Rational) Valid() bool {
	return r.Denom != 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Nom, r.Denom)
}

// ApertureRational encodes s for the aperture field. Large f-numbers are sent as integers,
// small ones in tenths.
func (s Stop) ApertureRational() Rational {
	a := s.AsAperture()
	if a > 10 {
		return Rational{int32(roundFloat(a)), 1}
	}
	return Rational{int32(roundFloat(a * 10)), 10}
}

// ShutterRational encodes s for the shutter field. Fast speeds are 1/N, times between 0.3s and
// 2s are sent as 20/N, long exposures as whole seconds, or tenths where the dial value is
// fractional (2.5", 3.2").
func (s Stop) ShutterRational() Rational {
	t := s.AsShutterTime()
	switch {
	case t <= 0:
		return Rational{}
	case t < 0.3:
		return Rational{1, int32(roundFloat(s.AsShutterSpeed()))}
	case t < 2:
		return Rational{20, int32(roundFloat(20 / t))}
	case t != float64(roundFloat(t)):
		return Rational{int32(roundFloat(t * 10)), 10}
	}
	return Rational{int32(roundFloat(t)), 1}
}

// ExposureCompensationRational encodes s in tenths of an EV.
func (s Stop) ExposureCompensationRational() Rational {
	return Rational{int32(roundFloat(s.AsExposureCompensation() * 10)), 10}
}

// FromApertureRational decodes an aperture field. A zero denominator yields Unknown.
func FromApertureRational(r Rational) Stop {
	if !r.Valid() {
		return Unknown
	}
	return FromAperture(r.Float())
}

// FromShutterRational decodes a shutter field. A zero denominator yields Unknown.
func FromShutterRational(r Rational) Stop {
	if !r.Valid() {
		return Unknown
	}
	return FromShutterTime(r.Float())
}

// FromExposureCompensationRational decodes an EC field. A zero denominator yields Unknown.
func FromExposureCompensationRational(r Rational) Stop {
	if !r.Valid() {
		return Unknown
	}
	return FromExposureCompensation(r.Float())
}
