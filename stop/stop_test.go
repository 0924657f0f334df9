// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stop

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundFloat(t *testing.T) {
	assert := assert.New(t)

	// Ties round away from zero, not to even
	assert.Equal(1, roundFloat(0.5))
	assert.Equal(3, roundFloat(2.5))
	assert.Equal(-1, roundFloat(-0.5))
	assert.Equal(-3, roundFloat(-2.5))
	assert.Equal(1, roundFloat(1.49))
	assert.Equal(-2, roundFloat(-1.5))
}

func TestRoundToSignificantDigits(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(5.7, roundToSignificantDigits(5.6568542, 2))
	assert.Equal(0.33, roundToSignificantDigits(1.0/3, 2))
	assert.Equal(250.0, roundToSignificantDigits(250.00000001, 3))
	assert.Equal(0.0, roundToSignificantDigits(0, 2))
}

func TestConstructors(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(6), FromStops(1))
	assert.Equal(Stop(3), FromHalfStops(1))
	assert.Equal(Stop(2), FromThirdStops(1))
	assert.Equal(Stop(-4), FromThirdStops(-2))
	assert.Equal(Stop(7), FromSixthStops(7))
}

func TestSentinelArithmetic(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(8), FromStops(1).Add(FromThirdStops(1)))
	assert.Equal(Stop(4), FromStops(1).Sub(FromThirdStops(1)))
	assert.Equal(Stop(-18), FromHalfStops(-2).Mul(3))

	assert.Equal(Auto, Auto.Add(FromStops(1)))
	assert.Equal(Unknown, FromStops(1).Add(Unknown))
	assert.Equal(Unknown, Unknown.Sub(Auto))
	assert.Equal(Auto, Auto.Mul(2))
	assert.Equal(0, Auto.ExposureSteps(ThirdStop))
	assert.Equal(Auto, Auto.Quantize(HalfStop))

	assert.False(Auto.IsValue())
	assert.False(Unknown.IsValue())
	assert.True(Stop(0).IsValue())
	assert.NotEqual(Auto, Unknown)
}

func TestExposureSteps(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(3, FromStops(1).ExposureSteps(ThirdStop))
	assert.Equal(2, FromStops(1).ExposureSteps(HalfStop))
	// Truncated, not rounded
	assert.Equal(2, FromSixthStops(5).ExposureSteps(ThirdStop))
	assert.Equal(-2, FromSixthStops(-5).ExposureSteps(ThirdStop))
	assert.Equal(0, FromSixthStops(5).ExposureSteps(WholeStop))
}

func TestQuantize(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(30), Stop(29).Quantize(ThirdStop))
	assert.Equal(Stop(-24), Stop(-23).Quantize(ThirdStop))
	assert.Equal(Stop(-24), Stop(-23).Quantize(HalfStop))
	assert.Equal(Stop(27), Stop(26).Quantize(HalfStop))
	assert.Equal(Stop(6), Stop(4).Quantize(WholeStop))
}

func TestAperture(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(0), FromAperture(1.0))
	assert.Equal(Stop(24), FromAperture(4.0))
	assert.Equal(Stop(30), FromAperture(5.6))
	assert.Equal(Unknown, FromAperture(0))
	assert.Equal(5.6, Stop(30).AsAperture())
	assert.Equal(11.0, Stop(42).AsAperture())
	assert.Equal("f/8", Stop(36).FormatAperture())
}

func TestApertureTableRoundTrip(t *testing.T) {
	for s, a := range nominalAperture {
		got := FromAperture(a)
		assert.Equal(t, a, got.AsAperture(), "f/%g (sixths %d)", a, s)
	}
}

func TestShutter(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(-48), FromShutterTime(1.0/250))
	assert.Equal(250.0, FromShutterTime(1.0/250).AsShutterSpeed())
	assert.Equal(Stop(-48), FromShutterSpeed(250))
	assert.Equal(Stop(0), FromShutterTime(1))
	assert.Equal(0.004, Stop(-48).AsShutterTime())
	assert.Equal(30.0, SlowestShutter.AsShutterTime())
	assert.Equal(8000.0, FastestShutter.AsShutterSpeed())
	assert.Equal("1/250", Stop(-48).FormatShutter())
	assert.Equal("2.5\"", Stop(8).FormatShutter())
}

func TestShutterTableQuantizes(t *testing.T) {
	// Nominal dial values are not exact powers of two; they land on the grid after quantizing
	for s, r := range nominalShutter {
		ev := ThirdStop
		if s%2 != 0 {
			ev = HalfStop
		}
		got := FromShutterTime(r.Float()).Quantize(ev)
		assert.Equal(t, s, got, "shutter %s", r)
	}
}

func TestISO(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(0), FromISO(100))
	assert.Equal(Stop(12), FromISO(400))
	assert.Equal(Stop(3), FromISO(140))
	assert.Equal(Auto, FromISO(0))
	assert.Equal(Unknown, FromISO(-1))
	assert.Equal(1600, Stop(24).AsISO())
	assert.Equal(1100, Stop(21).AsISO())
	assert.Equal("ISO 200", Stop(6).FormatISO())

	for s, iso := range nominalISO {
		assert.Equal(s, FromISO(iso), "ISO %d", iso)
	}
}

func TestExposureCompensation(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Stop(2), FromExposureCompensation(0.3))
	assert.Equal(Stop(4), FromExposureCompensation(0.7))
	assert.Equal(Stop(-3), FromExposureCompensation(-0.5))
	assert.Equal(0.333, Stop(2).AsExposureCompensation())
	assert.Equal(-1.5, Stop(-9).AsExposureCompensation())
	assert.Equal("+0.7 EV", Stop(4).FormatExposureCompensation())
}

func TestRationalTiers(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Rational{56, 10}, Stop(30).ApertureRational())
	assert.Equal(Rational{11, 1}, Stop(42).ApertureRational())
	assert.Equal(Rational{10, 10}, Stop(0).ApertureRational())

	assert.Equal(Rational{1, 250}, Stop(-48).ShutterRational())
	assert.Equal(Rational{1, 4}, Stop(-12).ShutterRational())
	assert.Equal(Rational{20, 67}, Stop(-10).ShutterRational())
	assert.Equal(Rational{20, 33}, Stop(-4).ShutterRational())
	assert.Equal(Rational{20, 20}, Stop(0).ShutterRational())
	assert.Equal(Rational{2, 1}, Stop(6).ShutterRational())
	assert.Equal(Rational{25, 10}, Stop(8).ShutterRational())
	assert.Equal(Rational{30, 1}, Stop(30).ShutterRational())

	assert.Equal(Rational{3, 10}, Stop(2).ExposureCompensationRational())
	assert.Equal(Rational{-15, 10}, Stop(-9).ExposureCompensationRational())
}

func TestShutterRationalRoundTrip(t *testing.T) {
	for s := range nominalShutter {
		if s%2 != 0 {
			continue
		}
		got := FromShutterRational(s.ShutterRational()).Quantize(ThirdStop)
		assert.Equal(t, s, got, "sixths %d", s)
	}
}

func TestFromRational(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Unknown, FromApertureRational(Rational{56, 0}))
	assert.Equal(Unknown, FromShutterRational(Rational{}))
	assert.Equal(Unknown, FromExposureCompensationRational(Rational{1, 0}))
	assert.Equal(Stop(30), FromApertureRational(Rational{56, 10}))
	assert.Equal(Stop(-48), FromShutterRational(Rational{1, 250}))
	assert.Equal(Stop(-2), FromExposureCompensationRational(Rational{-3, 10}))
}

func TestGrid(t *testing.T) {
	assert := assert.New(t)

	g := Grid(FromAperture(3.5), FromAperture(5.6), ThirdStop)
	assert.Equal([]Stop{22, 24, 26, 28, 30}, g)
	assert.True(sort.SliceIsSorted(g, func(i, j int) bool { return g[i] < g[j] }))

	assert.Len(Grid(FastestShutter, SlowestShutter, ThirdStop), 55)
	assert.Len(Grid(FastestShutter, SlowestShutter, HalfStop), 37)
	assert.Nil(Grid(Auto, SlowestShutter, ThirdStop))
	assert.Nil(Grid(Stop(10), Stop(0), ThirdStop))
}
