// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pentax

import (
	"errors"
	"fmt"

	"github.com/dswarbrick/pslr/scsi"
)

var (
	ErrBufferOpen    = errors.New("a buffer is already open")
	ErrBufferNotOpen = errors.New("no buffer is open")
	ErrInvalidBuffer = errors.New("buffer index out of range")
	ErrStillBusy     = errors.New("camera still busy")
)

// ProtocolError is returned when the camera received a command but refused it, either with a
// non-zero completion code or a SCSI check condition.
type ProtocolError struct {
	Op    string
	Code  byte
	Sense []byte
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: camera returned error code %#02x", e.Op, e.Code)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err means the camera could not be reached at all.
func IsDeviceError(err error) bool {
	var devErr *scsi.DeviceError
	return errors.As(err, &devErr)
}

// IsProtocolError reports whether the camera refused a command.
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// translate classifies a transport error for the given operation. A request that timed out or
// lost the device is a device error, any other SCSI error is a refusal by the camera.
func translate(op string, err error) error {
	var sgErr scsi.SgioError
	if errors.As(err, &sgErr) && !IsDeviceError(err) {
		if sgErr.Unreachable() {
			return &scsi.DeviceError{Op: op, Err: sgErr}
		}
		return &ProtocolError{Op: op, Sense: sgErr.Sense, Err: sgErr}
	}
	return fmt.Errorf("%s: %w", op, err)
}
