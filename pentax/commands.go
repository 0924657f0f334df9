// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Pentax vendor SCSI command definitions.

package pentax

import (
	"encoding/binary"
	"fmt"

	"github.com/dswarbrick/pslr/scsi"
	"github.com/dswarbrick/pslr/stop"
)

// Vendor CDB opcodes. All Pentax commands are 8-byte CDBs starting with 0xf0.
const (
	PENTAX_OPCODE = 0xf0

	CMD_COMMAND     = 0x24 // execute command group/code with previously written arguments
	CMD_STATUS      = 0x26 // poll command completion
	CMD_READ_RESULT = 0x49 // read result of last command
	CMD_WRITE_ARGS  = 0x4f // write command arguments

	STATUS_LEN = 8

	// Size of a single buffer download request
	BLOCK_SIZE = 0x10000

	// Number of image buffers in the camera
	MAX_BUFFERS = 9
)

// Field identifies a camera setting addressed by the X18 "set parameter" command group.
type Field byte

const (
	FieldExposureMode   Field = 0x01
	FieldAEMetering     Field = 0x03
	FieldFlashMode      Field = 0x04
	FieldAFMode         Field = 0x05
	FieldAFPointSel     Field = 0x06
	FieldAFPoint        Field = 0x07
	FieldWhiteBalance   Field = 0x10
	FieldImageFormat    Field = 0x12
	FieldJpegStars      Field = 0x13
	FieldJpegResolution Field = 0x14
	FieldISO            Field = 0x15
	FieldShutter        Field = 0x16
	FieldAperture       Field = 0x17
	FieldEC             Field = 0x18
	FieldFlashEC        Field = 0x1a
	FieldJpegImageTone  Field = 0x1b
	FieldDriveMode      Field = 0x1c
	FieldRawFormat      Field = 0x1f
	FieldJpegSaturation Field = 0x20
	FieldJpegSharpness  Field = 0x21
	FieldJpegContrast   Field = 0x22
	FieldColorSpace     Field = 0x23
	FieldJpegHue        Field = 0x25
)

var fieldNames = map[Field]string{
	FieldExposureMode:   "exposure mode",
	FieldAEMetering:     "AE metering",
	FieldFlashMode:      "flash mode",
	FieldAFMode:         "AF mode",
	FieldAFPointSel:     "AF point selection",
	FieldAFPoint:        "AF point",
	FieldWhiteBalance:   "white balance",
	FieldImageFormat:    "image format",
	FieldJpegStars:      "JPEG quality",
	FieldJpegResolution: "JPEG resolution",
	FieldISO:            "ISO",
	FieldShutter:        "shutter",
	FieldAperture:       "aperture",
	FieldEC:             "exposure compensation",
	FieldFlashEC:        "flash exposure compensation",
	FieldJpegImageTone:  "JPEG image tone",
	FieldDriveMode:      "drive mode",
	FieldRawFormat:      "RAW format",
	FieldJpegSaturation: "JPEG saturation",
	FieldJpegSharpness:  "JPEG sharpness",
	FieldJpegContrast:   "JPEG contrast",
	FieldColorSpace:     "color space",
	FieldJpegHue:        "JPEG hue",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field %#02x", byte(f))
}

// BufferKind selects the representation of an image buffer to download.
type BufferKind uint32

const (
	BufferPEF       BufferKind = 0
	BufferDNG       BufferKind = 1
	BufferJPEGBest  BufferKind = 2 // JPEG kinds count down from the highest star rating
	BufferPreview   BufferKind = 8
	BufferThumbnail BufferKind = 9
)

// JPEGBufferKind returns the buffer kind for a JPEG of the given star rating on a camera whose
// best quality has maxStars.
func JPEGBufferKind(stars, maxStars int) BufferKind {
	if stars > maxStars {
		stars = maxStars
	}
	if stars < 1 {
		stars = 1
	}
	return BufferJPEGBest + BufferKind(maxStars-stars)
}

func (k BufferKind) String() string {
	switch {
	case k == BufferPEF:
		return "PEF"
	case k == BufferDNG:
		return "DNG"
	case k == BufferPreview:
		return "preview"
	case k == BufferThumbnail:
		return "thumbnail"
	case k >= BufferJPEGBest && k < BufferPreview:
		return fmt.Sprintf("JPEG-%d", k-BufferJPEGBest)
	}
	return fmt.Sprintf("kind %d", uint32(k))
}

// Exposure mode codes reported in the status block.
const (
	ExposureP         = 0
	ExposureGreen     = 1
	ExposureTv        = 5
	ExposureAv        = 6
	ExposureM         = 9
	ExposureB         = 10
	ExposureAvOffAuto = 11
	ExposureMOffAuto  = 12
	ExposureBOffAuto  = 13
	ExposureTAv       = 14
	ExposureSv        = 15
	ExposureX         = 16
)

// Some bodies expect a compact user-mode enumeration when setting the exposure mode instead of
// the status codes above.
var exposureModeConversion = map[uint32]uint32{
	ExposureP:         0,
	ExposureGreen:     1,
	ExposureSv:        2,
	ExposureTv:        3,
	ExposureAv:        4,
	ExposureAvOffAuto: 4,
	ExposureTAv:       5,
	ExposureM:         6,
	ExposureMOffAuto:  6,
	ExposureB:         7,
	ExposureBOffAuto:  7,
	ExposureX:         8,
}

// ConvertExposureMode maps a status exposure mode code to the value expected by bodies that
// use the compact enumeration.
func ConvertExposureMode(mode uint32) uint32 {
	if m, ok := exposureModeConversion[mode]; ok {
		return m
	}
	return mode
}

// Image format values for FieldImageFormat.
const (
	ImageFormatJPEG    = 0
	ImageFormatRAW     = 1
	ImageFormatRAWJPEG = 2
)

// RAW format values for FieldRawFormat.
const (
	RawFormatPEF = 0
	RawFormatDNG = 1
)

// Light meter flag bits.
const (
	LightMeterAELock = 0x8
)

// Request is a single vendor command: a command group and code, optional 32-bit arguments,
// and whether the command produces a result block to read back.
type Request struct {
	Op         string
	Group      byte
	Code       byte
	Args       []uint32
	WantResult bool
}

func (r Request) String() string {
	return fmt.Sprintf("%s (%#02x %#02x) %v", r.Op, r.Group, r.Code, r.Args)
}

func vendorCDB(cmd byte, b2, b3 byte, length uint32) scsi.CDB8 {
	cdb := scsi.CDB8{PENTAX_OPCODE, cmd, b2, b3}
	binary.LittleEndian.PutUint32(cdb[4:], length)
	return cdb
}

// CommandCDB encodes the command execution CDB for a request with n arguments.
func CommandCDB(group, code byte, nargs int) scsi.CDB8 {
	return vendorCDB(CMD_COMMAND, group, code, uint32(4*nargs))
}

// StatusCDB encodes the command completion poll.
func StatusCDB() scsi.CDB8 {
	return vendorCDB(CMD_STATUS, 0, 0, 0)
}

// ReadResultCDB encodes a read of n result bytes.
func ReadResultCDB(n int) scsi.CDB8 {
	return vendorCDB(CMD_READ_RESULT, 0, 0, uint32(n))
}

// WriteArgsCDB encodes the argument upload of n arguments.
func WriteArgsCDB(nargs int) scsi.CDB8 {
	return vendorCDB(CMD_WRITE_ARGS, 0, 0, uint32(4*nargs))
}

// EncodeArgs serializes arguments as 32-bit words in the camera's byte order.
func EncodeArgs(args []uint32, order binary.ByteOrder) []byte {
	buf := make([]byte, 4*len(args))
	for i, a := range args {
		order.PutUint32(buf[4*i:], a)
	}
	return buf
}

// CommandStatus is the decoded response to a StatusCDB poll.
type CommandStatus struct {
	ResultLen uint32
	Code      byte
}

// Busy reports whether the camera is still executing the last command.
func (s CommandStatus) Busy() bool {
	return s.Code&0x01 != 0
}

func DecodeCommandStatus(buf []byte) (CommandStatus, error) {
	if len(buf) < STATUS_LEN {
		return CommandStatus{}, fmt.Errorf("short command status: %d bytes", len(buf))
	}
	return CommandStatus{
		ResultLen: binary.LittleEndian.Uint32(buf[0:4]),
		Code:      buf[7],
	}, nil
}

func ReqStatus() Request {
	return Request{Op: "status", Group: 0x00, Code: 0x01, WantResult: true}
}

func ReqIdentify() Request {
	return Request{Op: "identify", Group: 0x00, Code: 0x04, WantResult: true}
}

func ReqStatusFull() Request {
	return Request{Op: "status full", Group: 0x00, Code: 0x08, WantResult: true}
}

func ReqSetMode(mode uint32) Request {
	return Request{Op: "set mode", Group: 0x00, Code: 0x09, Args: []uint32{mode}}
}

func ReqSelectBuffer(index int, kind BufferKind, resolution int) Request {
	return Request{
		Op:    "select buffer",
		Group: 0x02, Code: 0x01,
		Args: []uint32{uint32(index), uint32(kind), uint32(resolution), 0},
	}
}

func ReqDeleteBuffer(index int) Request {
	return Request{Op: "delete buffer", Group: 0x02, Code: 0x03, Args: []uint32{uint32(index)}}
}

func ReqSegmentInfo() Request {
	return Request{Op: "segment info", Group: 0x04, Code: 0x00, WantResult: true}
}

func ReqNextSegment() Request {
	return Request{Op: "next segment", Group: 0x04, Code: 0x01, Args: []uint32{0}}
}

func ReqDownload(addr, length uint32) Request {
	return Request{Op: "download", Group: 0x06, Code: 0x00, Args: []uint32{addr, length}}
}

func ReqShutter() Request {
	return Request{Op: "shutter", Group: 0x10, Code: 0x05, Args: []uint32{2}}
}

func ReqFocus() Request {
	return Request{Op: "focus", Group: 0x10, Code: 0x05, Args: []uint32{1}}
}

func ReqAELock(lock bool) Request {
	var v uint32
	if lock {
		v = 1
	}
	return Request{Op: "AE lock", Group: 0x10, Code: 0x06, Args: []uint32{v}}
}

func ReqGreenButton() Request {
	return Request{Op: "green button", Group: 0x10, Code: 0x07}
}

func ReqConnect(connect bool) Request {
	var v uint32
	if connect {
		v = 1
	}
	return Request{Op: "connect", Group: 0x10, Code: 0x0a, Args: []uint32{v}}
}

// ReqSetField sets an integer-valued field.
func ReqSetField(f Field, value uint32) Request {
	return Request{Op: "set " + f.String(), Group: 0x18, Code: byte(f), Args: []uint32{value}}
}

// ReqSetRational sets a rational-valued field (aperture, shutter, EC).
func ReqSetRational(f Field, r stop.Rational) Request {
	return Request{
		Op:    "set " + f.String(),
		Group: 0x18, Code: byte(f),
		Args: []uint32{uint32(r.Nom), uint32(r.Denom)},
	}
}

// ReqSetISO sets the fixed sensitivity together with the auto ISO bounds. A zero fixed value
// selects auto ISO.
func ReqSetISO(iso, autoMin, autoMax uint32) Request {
	return Request{
		Op:    "set ISO",
		Group: 0x18, Code: byte(FieldISO),
		Args: []uint32{iso, autoMin, autoMax},
	}
}
