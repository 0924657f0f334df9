// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Miscellaneous utility functions

package utils

import (
	"fmt"
	"math/bits"
)

// Log2b finds the most significant bit set in a uint.
func Log2b(x uint) int {
	if x == 0 {
		return 0
	}

	return bits.Len(x) - 1
}

// FormatBytes renders a byte count with a binary unit prefix, e.g. "1.5 MiB".
func FormatBytes(n uint64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	exp := Log2b(uint(n)) / 10
	if exp > 6 {
		exp = 6
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(uint64(1)<<(10*exp)), "KMGTPE"[exp-1])
}
