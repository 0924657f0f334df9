// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

// CDB8 is a vendor command descriptor block. Pentax cameras use 8 byte CDBs.
type CDB8 [8]byte

// Direction is the data transfer direction of a SCSI generic request.
type Direction int32

const (
	DirNone       Direction = SG_DXFER_NONE
	DirToDevice   Direction = SG_DXFER_TO_DEV
	DirFromDevice Direction = SG_DXFER_FROM_DEV
)

func (d Direction) String() string {
	switch d {
	case DirNone:
		return "none"
	case DirToDevice:
		return "to-device"
	case DirFromDevice:
		return "from-device"
	}
	return "unknown"
}
