// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"time"

	"github.com/cenkalti/backoff"

	"github.com/dswarbrick/pslr/pentax"
)

// permanent marks an error that must not be retried.
func permanent(err error) error {
	return backoff.Permanent(err)
}

// retry runs op up to attempts times, interval apart, until it succeeds. Device errors end the
// loop at once, since an unplugged camera will not come back between attempts.
func retry(attempts int, interval time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1))

	return backoff.Retry(func() error {
		err := op()
		if err != nil && pentax.IsDeviceError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
