// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package stop implements photographic exposure quantities in fixed-point sixth-stop units.
//
// Aperture, shutter time, ISO sensitivity and exposure compensation are all logarithmic, so a
// single integer type expresses each of them. One stop is 6 units, which is the smallest common
// multiple of the half-stop and third-stop grids used by camera firmware.
package stop

import (
	"fmt"
	"math"
)

// Stop is an exposure quantity measured in sixths of a stop.
type Stop int

const (
	// Unknown means no value has been retrieved from the camera yet.
	Unknown Stop = -6000
	// Auto means the axis is under automatic camera control.
	Auto Stop = -12000
)

// EVStep is the exposure step granularity of a camera, in sixths of a stop.
type EVStep int

const (
	ThirdStop EVStep = 2
	HalfStop  EVStep = 3
	WholeStop EVStep = 6
)

func (ev EVStep) String() string {
	switch ev {
	case ThirdStop:
		return "1/3 EV"
	case HalfStop:
		return "1/2 EV"
	case WholeStop:
		return "1 EV"
	}
	return fmt.Sprintf("%d/6 EV", int(ev))
}

// roundFloat rounds half away from zero.
func roundFloat(f float64) int {
	return int(math.Round(f))
}

// roundToSignificantDigits suppresses floating point noise in exponentiated values.
func roundToSignificantDigits(f float64, digits int) float64 {
	if f == 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}

	shift := float64(digits) - math.Ceil(math.Log10(math.Abs(f)))
	if shift < 0 {
		pow := math.Pow(10, -shift)
		return math.Round(f/pow) * pow
	}

	pow := math.Pow(10, shift)
	return math.Round(f*pow) / pow
}

func FromSixthStops(n int) Stop {
	return Stop(n)
}

func FromThirdStops(n int) Stop {
	return Stop(2 * n)
}

func FromHalfStops(n int) Stop {
	return Stop(3 * n)
}

func FromStops(n int) Stop {
	return Stop(6 * n)
}

// FromAperture converts an f-number. Aperture area halves every two f-stops.
func FromAperture(a float64) Stop {
	if a <= 0 || math.IsNaN(a) {
		return Unknown
	}
	return Stop(roundFloat(math.Log2(a) * 12))
}

// FromShutterTime converts an exposure time in seconds.
func FromShutterTime(t float64) Stop {
	if t <= 0 || math.IsNaN(t) {
		return Unknown
	}
	return Stop(roundFloat(math.Log2(t) * 6))
}

// FromShutterSpeed converts a shutter speed given as the reciprocal of the exposure time,
// e.g. 250 for 1/250s.
func FromShutterSpeed(s float64) Stop {
	if s <= 0 || math.IsNaN(s) {
		return Unknown
	}
	return Stop(roundFloat(-math.Log2(s) * 6))
}

// FromISO converts a sensitivity. ISO 100 is the origin. A zero ISO means auto ISO.
func FromISO(iso int) Stop {
	if iso < 0 {
		return Unknown
	}
	if iso == 0 {
		return Auto
	}
	return Stop(roundFloat(math.Log2(float64(iso)/100) * 6))
}

// FromExposureCompensation converts an EV offset.
func FromExposureCompensation(ec float64) Stop {
	if math.IsNaN(ec) {
		return Unknown
	}
	return Stop(roundFloat(ec * 6))
}

// IsUnknown reports whether s holds no value.
func (s Stop) IsUnknown() bool {
	return s == Unknown
}

// IsAuto reports whether s is the automatic control marker.
func (s Stop) IsAuto() bool {
	return s == Auto
}

// IsValue reports whether s is an ordinary quantity rather than a sentinel.
func (s Stop) IsValue() bool {
	return s != Unknown && s != Auto
}

func (s Stop) Sixths() int {
	return int(s)
}

// Add returns s+o. Sentinels absorb arithmetic: if either operand is a sentinel, that sentinel
// is returned unchanged.
func (s Stop) Add(o Stop) Stop {
	if !s.IsValue() {
		return s
	}
	if !o.IsValue() {
		return o
	}
	return s + o
}

// Sub returns s-o, with the same sentinel rule as Add.
func (s Stop) Sub(o Stop) Stop {
	if !s.IsValue() {
		return s
	}
	if !o.IsValue() {
		return o
	}
	return s - o
}

// Mul returns s*n. Sentinels are returned unchanged.
func (s Stop) Mul(n int) Stop {
	if !s.IsValue() {
		return s
	}
	return s * Stop(n)
}

// ExposureSteps returns the number of whole steps of size ev in s, truncated toward zero.
func (s Stop) ExposureSteps(ev EVStep) int {
	if !s.IsValue() || ev <= 0 {
		return 0
	}
	return int(s) / int(ev)
}

// Quantize snaps s to the nearest multiple of ev, ties away from zero.
func (s Stop) Quantize(ev EVStep) Stop {
	if !s.IsValue() || ev <= 0 {
		return s
	}
	return Stop(roundFloat(float64(s)/float64(ev)) * int(ev))
}

// AsAperture returns the nominal f-number for s, as engraved on lenses.
func (s Stop) AsAperture() float64 {
	if !s.IsValue() {
		return 0
	}
	if a, ok := nominalAperture[s]; ok {
		return a
	}
	return roundToSignificantDigits(math.Pow(2, float64(s)/12), 2)
}

// AsShutterTime returns the nominal exposure time in seconds.
func (s Stop) AsShutterTime() float64 {
	if !s.IsValue() {
		return 0
	}
	if r, ok := nominalShutter[s]; ok {
		return r.Float()
	}
	return roundToSignificantDigits(math.Pow(2, float64(s)/6), 2)
}

// AsShutterSpeed returns the reciprocal of the nominal exposure time, e.g. 250 for 1/250s.
func (s Stop) AsShutterSpeed() float64 {
	if !s.IsValue() {
		return 0
	}
	if r, ok := nominalShutter[s]; ok {
		return roundToSignificantDigits(float64(r.Denom)/float64(r.Nom), 3)
	}
	return roundToSignificantDigits(math.Pow(2, -float64(s)/6), 2)
}

// AsISO returns the nominal sensitivity.
func (s Stop) AsISO() int {
	if !s.IsValue() {
		return 0
	}
	if iso, ok := nominalISO[s]; ok {
		return iso
	}
	return roundFloat(roundToSignificantDigits(100*math.Pow(2, float64(s)/6), 2))
}

// AsExposureCompensation returns the EV offset.
func (s Stop) AsExposureCompensation() float64 {
	if !s.IsValue() {
		return 0
	}
	return roundToSignificantDigits(float64(s)/6, 3)
}

func (s Stop) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Auto:
		return "auto"
	}
	return fmt.Sprintf("%d/6", int(s))
}

// FormatAperture renders s as an f-number, e.g. "f/5.6".
func (s Stop) FormatAperture() string {
	if !s.IsValue() {
		return s.String()
	}
	return fmt.Sprintf("f/%g", s.AsAperture())
}

// FormatShutter renders s as an exposure time, e.g. "1/250" or "2.5\"".
func (s Stop) FormatShutter() string {
	if !s.IsValue() {
		return s.String()
	}
	if t := s.AsShutterTime(); t >= 0.3 {
		return fmt.Sprintf("%g\"", t)
	}
	return fmt.Sprintf("1/%g", s.AsShutterSpeed())
}

// FormatISO renders s as a sensitivity, e.g. "ISO 400".
func (s Stop) FormatISO() string {
	if !s.IsValue() {
		return s.String()
	}
	return fmt.Sprintf("ISO %d", s.AsISO())
}

// FormatExposureCompensation renders s as a signed EV offset, e.g. "+0.7 EV".
func (s Stop) FormatExposureCompensation() string {
	if !s.IsValue() {
		return s.String()
	}
	return fmt.Sprintf("%+.1f EV", s.AsExposureCompensation())
}
