// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pentax

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"text/tabwriter"

	"github.com/dswarbrick/pslr/stop"
)

// StatusField names one decodable field of the full status block.
type StatusField int

const (
	StBufMask StatusField = iota
	StUserMode
	StSetShutter
	StSetAperture
	StExposureCompensation
	StFixedISO
	StAutoISOMin
	StAutoISOMax
	StImageFormat
	StJpegResolution
	StJpegQuality
	StRawFormat
	StJpegImageTone
	StJpegSaturation
	StJpegSharpness
	StJpegContrast
	StJpegHue
	StCustomEVSteps
	StCustomSensitivitySteps
	StExposureMode
	StFlashMode
	StFlashEC
	StMeteringMode
	StAFMode
	StAFPointSelect
	StSelectedAFPoint
	StDriveMode
	StWhiteBalance
	StColorSpace
	StCurrentShutter
	StCurrentAperture
	StCurrentISO
	StLightMeterFlags
	StLensMinAperture
	StLensMaxAperture
	StFocusedAFPoint
	StZoom
	StFocus

	numStatusFields
)

// Status is a snapshot of the camera state decoded from one full status block. Present records
// which fields the layout defines and the buffer was long enough to hold; other fields are zero.
type Status struct {
	BufMask                uint16
	UserMode               bool
	SetShutter             stop.Rational
	SetAperture            stop.Rational
	ExposureCompensation   stop.Rational
	FixedISO               uint32
	AutoISOMin             uint32
	AutoISOMax             uint32
	ImageFormat            uint32
	JpegResolution         uint32
	JpegQuality            uint32
	RawFormat              uint32
	JpegImageTone          uint32
	JpegSaturation         uint32
	JpegSharpness          uint32
	JpegContrast           uint32
	JpegHue                uint32
	CustomEVSteps          uint32
	CustomSensitivitySteps uint32
	ExposureMode           uint32
	FlashMode              uint32
	FlashEC                stop.Rational
	MeteringMode           uint32
	AFMode                 uint32
	AFPointSelect          uint32
	SelectedAFPoint        uint32
	DriveMode              uint32
	WhiteBalance           uint32
	ColorSpace             uint32
	CurrentShutter         stop.Rational
	CurrentAperture        stop.Rational
	CurrentISO             uint32
	LightMeterFlags        uint32
	LensMinAperture        stop.Rational // smallest f-number, i.e. widest opening
	LensMaxAperture        stop.Rational
	FocusedAFPoint         uint32
	Zoom                   stop.Rational
	Focus                  int32

	Present uint64
}

// Has reports whether field f was decoded from the status block.
func (s *Status) Has(f StatusField) bool {
	return s.Present&(1<<uint(f)) != 0
}

// EVStep returns the exposure step granularity configured in the custom functions.
func (s *Status) EVStep() stop.EVStep {
	if s.CustomEVSteps == 1 {
		return stop.HalfStop
	}
	return stop.ThirdStop
}

// ISOStep returns the sensitivity step granularity configured in the custom functions.
func (s *Status) ISOStep() stop.EVStep {
	if s.CustomSensitivitySteps == 1 {
		return stop.WholeStop
	}
	return s.EVStep()
}

// AELocked reports whether the light meter is locked.
func (s *Status) AELocked() bool {
	return s.LightMeterFlags&LightMeterAELock != 0
}

// NewestBuffer returns the highest occupied buffer index, or -1 if all buffers are empty.
func (s *Status) NewestBuffer() int {
	if s.BufMask == 0 {
		return -1
	}
	return bits.Len16(s.BufMask) - 1
}

// FirstBuffer returns the lowest occupied buffer index, or 0 if all buffers are empty.
func (s *Status) FirstBuffer() int {
	if s.BufMask == 0 {
		return 0
	}
	return bits.TrailingZeros16(s.BufMask)
}

type fieldKind int

const (
	kindUint16 fieldKind = iota
	kindUint32
	kindInt32
	kindBool
	kindRational
)

func (k fieldKind) size() int {
	switch k {
	case kindUint16:
		return 2
	case kindRational:
		return 8
	}
	return 4
}

// Layout describes where each field lives in the full status block of a camera family.
type Layout struct {
	Name    string
	Order   binary.ByteOrder
	Offsets map[StatusField]int
}

// K10D status block layout. Later bodies share most offsets but may report little-endian values.
var LayoutK10D = Layout{
	Name:  "k10d",
	Order: binary.BigEndian,
	Offsets: map[StatusField]int{
		StBufMask:                0x16,
		StUserMode:               0x1c,
		StSetShutter:             0x2c,
		StSetAperture:            0x34,
		StExposureCompensation:   0x3c,
		StFixedISO:               0x60,
		StAutoISOMin:             0x64,
		StAutoISOMax:             0x68,
		StImageFormat:            0x78,
		StJpegResolution:         0x7c,
		StJpegQuality:            0x80,
		StRawFormat:              0x84,
		StJpegImageTone:          0x88,
		StJpegSaturation:         0x8c,
		StJpegSharpness:          0x90,
		StJpegContrast:           0x94,
		StCustomEVSteps:          0x9c,
		StCustomSensitivitySteps: 0xa0,
		StExposureMode:           0xac,
		StMeteringMode:           0xb4,
		StAFMode:                 0xb8,
		StAFPointSelect:          0xbc,
		StSelectedAFPoint:        0xc0,
		StCurrentShutter:         0x104,
		StCurrentAperture:        0x10c,
		StCurrentISO:             0x11c,
		StLightMeterFlags:        0x124,
		StLensMinAperture:        0x12c,
		StLensMaxAperture:        0x134,
		StFocusedAFPoint:         0x14c,
	},
}

// LayoutK20D adds the fields reported by later bodies past the end of the K10D block.
var LayoutK20D = Layout{
	Name:  "k20d",
	Order: binary.BigEndian,
	Offsets: mergeOffsets(LayoutK10D.Offsets, map[StatusField]int{
		StFlashMode:    0x98,
		StDriveMode:    0xcc,
		StWhiteBalance: 0xd4,
		StFlashEC:      0xdc,
		StColorSpace:   0xe4,
		StJpegHue:      0xfc,
		StZoom:         0x16c,
		StFocus:        0x174,
	}),
}

var layouts = map[string]Layout{
	LayoutK10D.Name: LayoutK10D,
	LayoutK20D.Name: LayoutK20D,
}

func mergeOffsets(base, extra map[StatusField]int) map[StatusField]int {
	m := make(map[StatusField]int, len(base)+len(extra))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// LookupLayout returns the named layout with the requested byte order.
func LookupLayout(name string, littleEndian bool) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown status layout %q", name)
	}
	if littleEndian {
		l.Order = binary.LittleEndian
	}
	return l, nil
}

type fieldSpec struct {
	kind fieldKind
	u16  func(*Status) *uint16
	u32  func(*Status) *uint32
	i32  func(*Status) *int32
	b    func(*Status) *bool
	rat  func(*Status) *stop.Rational
}

func u32(f func(*Status) *uint32) fieldSpec { return fieldSpec{kind: kindUint32, u32: f} }
func rat(f func(*Status) *stop.Rational) fieldSpec { return fieldSpec{kind: kindRational, rat: f} }

var fieldSpecs = [numStatusFields]fieldSpec{
	StBufMask:                {kind: kindUint16, u16: func(s *Status) *uint16 { return &s.BufMask }},
	StUserMode:               {kind: kindBool, b: func(s *Status) *bool { return &s.UserMode }},
	StSetShutter:             rat(func(s *Status) *stop.Rational { return &s.SetShutter }),
	StSetAperture:            rat(func(s *Status) *stop.Rational { return &s.SetAperture }),
	StExposureCompensation:   rat(func(s *Status) *stop.Rational { return &s.ExposureCompensation }),
	StFixedISO:               u32(func(s *Status) *uint32 { return &s.FixedISO }),
	StAutoISOMin:             u32(func(s *Status) *uint32 { return &s.AutoISOMin }),
	StAutoISOMax:             u32(func(s *Status) *uint32 { return &s.AutoISOMax }),
	StImageFormat:            u32(func(s *Status) *uint32 { return &s.ImageFormat }),
	StJpegResolution:         u32(func(s *Status) *uint32 { return &s.JpegResolution }),
	StJpegQuality:            u32(func(s *Status) *uint32 { return &s.JpegQuality }),
	StRawFormat:              u32(func(s *Status) *uint32 { return &s.RawFormat }),
	StJpegImageTone:          u32(func(s *Status) *uint32 { return &s.JpegImageTone }),
	StJpegSaturation:         u32(func(s *Status) *uint32 { return &s.JpegSaturation }),
	StJpegSharpness:          u32(func(s *Status) *uint32 { return &s.JpegSharpness }),
	StJpegContrast:           u32(func(s *Status) *uint32 { return &s.JpegContrast }),
	StJpegHue:                u32(func(s *Status) *uint32 { return &s.JpegHue }),
	StCustomEVSteps:          u32(func(s *Status) *uint32 { return &s.CustomEVSteps }),
	StCustomSensitivitySteps: u32(func(s *Status) *uint32 { return &s.CustomSensitivitySteps }),
	StExposureMode:           u32(func(s *Status) *uint32 { return &s.ExposureMode }),
	StFlashMode:              u32(func(s *Status) *uint32 { return &s.FlashMode }),
	StFlashEC:                rat(func(s *Status) *stop.Rational { return &s.FlashEC }),
	StMeteringMode:           u32(func(s *Status) *uint32 { return &s.MeteringMode }),
	StAFMode:                 u32(func(s *Status) *uint32 { return &s.AFMode }),
	StAFPointSelect:          u32(func(s *Status) *uint32 { return &s.AFPointSelect }),
	StSelectedAFPoint:        u32(func(s *Status) *uint32 { return &s.SelectedAFPoint }),
	StDriveMode:              u32(func(s *Status) *uint32 { return &s.DriveMode }),
	StWhiteBalance:           u32(func(s *Status) *uint32 { return &s.WhiteBalance }),
	StColorSpace:             u32(func(s *Status) *uint32 { return &s.ColorSpace }),
	StCurrentShutter:         rat(func(s *Status) *stop.Rational { return &s.CurrentShutter }),
	StCurrentAperture:        rat(func(s *Status) *stop.Rational { return &s.CurrentAperture }),
	StCurrentISO:             u32(func(s *Status) *uint32 { return &s.CurrentISO }),
	StLightMeterFlags:        u32(func(s *Status) *uint32 { return &s.LightMeterFlags }),
	StLensMinAperture:        rat(func(s *Status) *stop.Rational { return &s.LensMinAperture }),
	StLensMaxAperture:        rat(func(s *Status) *stop.Rational { return &s.LensMaxAperture }),
	StFocusedAFPoint:         u32(func(s *Status) *uint32 { return &s.FocusedAFPoint }),
	StZoom:                   rat(func(s *Status) *stop.Rational { return &s.Zoom }),
	StFocus:                  {kind: kindInt32, i32: func(s *Status) *int32 { return &s.Focus }},
}

// DecodeStatus parses a full status block. Fields the layout does not define, or that lie past
// the end of buf, are left zero and not marked present.
func DecodeStatus(buf []byte, layout Layout) Status {
	var st Status

	order := layout.Order
	if order == nil {
		order = binary.BigEndian
	}

	for f, off := range layout.Offsets {
		if f < 0 || f >= numStatusFields {
			continue
		}

		spec := fieldSpecs[f]
		if off < 0 || off+spec.kind.size() > len(buf) {
			continue
		}

		b := buf[off:]
		switch spec.kind {
		case kindUint16:
			*spec.u16(&st) = order.Uint16(b)
		case kindUint32:
			*spec.u32(&st) = order.Uint32(b)
		case kindInt32:
			*spec.i32(&st) = int32(order.Uint32(b))
		case kindBool:
			*spec.b(&st) = order.Uint32(b) != 0
		case kindRational:
			*spec.rat(&st) = stop.Rational{
				Nom:   int32(order.Uint32(b)),
				Denom: int32(order.Uint32(b[4:])),
			}
		}

		st.Present |= 1 << uint(f)
	}

	return st
}

// PrintStatus writes a human readable summary of the status fields that were decoded.
func (s *Status) PrintStatus(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	line := func(f StatusField, label string, value interface{}) {
		if s.Has(f) {
			fmt.Fprintf(tw, "%s\t%v\n", label, value)
		}
	}

	line(StCurrentAperture, "Aperture", stop.FromApertureRational(s.CurrentAperture).FormatAperture())
	line(StCurrentShutter, "Shutter", stop.FromShutterRational(s.CurrentShutter).FormatShutter())
	line(StCurrentISO, "ISO", s.CurrentISO)
	line(StExposureCompensation, "EC", s.ExposureCompensation)
	line(StExposureMode, "Exposure mode", s.ExposureMode)
	line(StLensMinAperture, "Lens min aperture", s.LensMinAperture)
	line(StLensMaxAperture, "Lens max aperture", s.LensMaxAperture)
	line(StImageFormat, "Image format", s.ImageFormat)
	line(StRawFormat, "RAW format", s.RawFormat)
	line(StJpegQuality, "JPEG quality", s.JpegQuality)
	line(StJpegResolution, "JPEG resolution", s.JpegResolution)
	line(StCustomEVSteps, "EV steps", s.EVStep())
	line(StBufMask, "Buffers", fmt.Sprintf("%09b", s.BufMask))
	line(StLightMeterFlags, "AE lock", s.AELocked())
	line(StFocusedAFPoint, "Focused AF point", fmt.Sprintf("%#x", s.FocusedAFPoint))
}
