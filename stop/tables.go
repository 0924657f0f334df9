// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package stop

// Nominal values as marked on camera dials. Both the third-stop and half-stop grids share one
// map, since they only coincide on whole stops where the nominal values agree.
var (
	nominalAperture = map[Stop]float64{
		// 1/3 EV
		0: 1.0, 2: 1.1, 4: 1.2, 6: 1.4, 8: 1.6, 10: 1.8, 12: 2.0, 14: 2.2, 16: 2.5, 18: 2.8,
		20: 3.2, 22: 3.5, 24: 4.0, 26: 4.5, 28: 5.0, 30: 5.6, 32: 6.3, 34: 7.1, 36: 8.0, 38: 9.0,
		40: 10, 42: 11, 44: 13, 46: 14, 48: 16, 50: 18, 52: 20, 54: 22, 56: 25, 58: 29,
		60: 32, 62: 36, 64: 40, 66: 45, 68: 51, 70: 57,
		// 1/2 EV
		3: 1.2, 9: 1.7, 15: 2.4, 21: 3.5, 27: 4.5, 33: 6.7, 39: 9.5, 45: 13, 51: 19, 57: 27,
		63: 38,
	}

	nominalShutter = map[Stop]Rational{
		// 1/3 EV
		30: {30, 1}, 28: {25, 1}, 26: {20, 1}, 24: {15, 1}, 22: {13, 1}, 20: {10, 1},
		18: {8, 1}, 16: {6, 1}, 14: {5, 1}, 12: {4, 1}, 10: {32, 10}, 8: {25, 10},
		6: {2, 1}, 4: {16, 10}, 2: {13, 10}, 0: {1, 1}, -2: {8, 10}, -4: {6, 10},
		-6: {1, 2}, -8: {4, 10}, -10: {3, 10}, -12: {1, 4}, -14: {1, 5}, -16: {1, 6},
		-18: {1, 8}, -20: {1, 10}, -22: {1, 13}, -24: {1, 15}, -26: {1, 20}, -28: {1, 25},
		-30: {1, 30}, -32: {1, 40}, -34: {1, 50}, -36: {1, 60}, -38: {1, 80}, -40: {1, 100},
		-42: {1, 125}, -44: {1, 160}, -46: {1, 200}, -48: {1, 250}, -50: {1, 320},
		-52: {1, 400}, -54: {1, 500}, -56: {1, 640}, -58: {1, 800}, -60: {1, 1000},
		-62: {1, 1250}, -64: {1, 1600}, -66: {1, 2000}, -68: {1, 2500}, -70: {1, 3200},
		-72: {1, 4000}, -74: {1, 5000}, -76: {1, 6400}, -78: {1, 8000},
		// 1/2 EV
		27: {20, 1}, 21: {10, 1}, 15: {6, 1}, 9: {3, 1}, 3: {15, 10}, -3: {7, 10},
		-9: {1, 3}, -15: {1, 6}, -21: {1, 10}, -27: {1, 20}, -33: {1, 45}, -39: {1, 90},
		-45: {1, 180}, -51: {1, 350}, -57: {1, 750}, -63: {1, 1500}, -69: {1, 3000},
		-75: {1, 6000},
	}

	nominalISO = map[Stop]int{
		// 1/3 EV
		-2: 80, 0: 100, 2: 125, 4: 160, 6: 200, 8: 250, 10: 320, 12: 400, 14: 500, 16: 640,
		18: 800, 20: 1000, 22: 1250, 24: 1600, 26: 2000, 28: 2500, 30: 3200, 32: 4000,
		34: 5000, 36: 6400, 38: 8000, 40: 10000, 42: 12800, 44: 16000, 46: 20000, 48: 25600,
		50: 32000, 52: 40000, 54: 51200,
		// 1/2 EV
		3: 140, 9: 280, 15: 560, 21: 1100, 27: 2200, 33: 4500, 39: 9000, 45: 18000,
		51: 36000,
	}
)

const (
	// Longest timed exposure on the dial.
	SlowestShutter Stop = 30 // 30s
	// Fastest shutter of any supported body.
	FastestShutter Stop = -78 // 1/8000s
)

// Grid lists the values between min and max (both inclusive) that lie on the ev grid, in
// ascending order. Bounds are snapped to the grid first.
func Grid(min, max Stop, ev EVStep) []Stop {
	if !min.IsValue() || !max.IsValue() || ev <= 0 {
		return nil
	}

	lo, hi := min.Quantize(ev), max.Quantize(ev)
	if lo > hi {
		return nil
	}

	values := make([]Stop, 0, int(hi-lo)/int(ev)+1)
	for s := lo; s <= hi; s += Stop(ev) {
		values = append(values, s)
	}

	return values
}
