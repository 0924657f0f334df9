// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("camera not connected")
	ErrBufferNotCleared = errors.New("buffer still occupied after delete")
	ErrBusy             = errors.New("a download is already in progress")
)

// ValidationError is returned by setters for an unknown parameter, a value of the wrong kind or
// a value outside the parameter's table or range. The value is dropped.
type ValidationError struct {
	Parameter string
	Value     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Parameter, e.Reason)
	}
	return fmt.Sprintf("%s: invalid value %q: %s", e.Parameter, e.Value, e.Reason)
}

// IsValidationError reports whether err was caused by a rejected parameter or value.
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
