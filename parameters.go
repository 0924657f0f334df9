// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dswarbrick/pslr/pentax"
	"github.com/dswarbrick/pslr/stop"
)

// Parameter is a camera setting that can be read and changed through a Session.
type Parameter int

const (
	Aperture Parameter = iota
	Shutter
	ISO
	ExposureCompensation
	FlashExposureCompensation
	JpegSharpness
	JpegContrast
	JpegSaturation
	JpegHue
	ExposureMode
	DriveMode
	AFMode
	AFPointSelection
	MeteringMode
	FlashMode
	ColorSpace
	WhiteBalance
	ImageTone
	JpegQuality
	JpegResolution
	FileFormat
	FileDestination

	numParameters
)

// Kind tells whether a parameter holds a stop value or one string from an option table.
type Kind int

const (
	Numeric Kind = iota
	Enumerated
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "enumerated"
}

type descriptor struct {
	name    string
	kind    Kind
	field   pentax.Field
	status  pentax.StatusField
	auto    bool     // AUTO is a valid value
	local   bool     // never sent to the camera
	options []string // static option table of enumerated parameters
}

// File formats and destinations.
const (
	FormatPEF  = "PEF"
	FormatDNG  = "DNG"
	FormatJPEG = "JPEG"

	DestinationComputer = "Computer" // download, then delete from the camera
	DestinationBoth     = "Both"     // download and keep on the camera
)

var descriptors = [numParameters]descriptor{
	Aperture: {
		name: "Aperture", kind: Numeric, auto: true,
		field: pentax.FieldAperture, status: pentax.StSetAperture,
	},
	Shutter: {
		name: "Shutterspeed", kind: Numeric, auto: true,
		field: pentax.FieldShutter, status: pentax.StSetShutter,
	},
	ISO: {
		name: "ISO", kind: Numeric, auto: true,
		field: pentax.FieldISO, status: pentax.StFixedISO,
	},
	ExposureCompensation: {
		name: "Exposure Compensation", kind: Numeric,
		field: pentax.FieldEC, status: pentax.StExposureCompensation,
	},
	FlashExposureCompensation: {
		name: "Flash Exposure Compensation", kind: Numeric,
		field: pentax.FieldFlashEC, status: pentax.StFlashEC,
	},
	JpegSharpness: {
		name: "JPEG Sharpness", kind: Numeric,
		field: pentax.FieldJpegSharpness, status: pentax.StJpegSharpness,
	},
	JpegContrast: {
		name: "JPEG Contrast", kind: Numeric,
		field: pentax.FieldJpegContrast, status: pentax.StJpegContrast,
	},
	JpegSaturation: {
		name: "JPEG Saturation", kind: Numeric,
		field: pentax.FieldJpegSaturation, status: pentax.StJpegSaturation,
	},
	JpegHue: {
		name: "JPEG Hue", kind: Numeric,
		field: pentax.FieldJpegHue, status: pentax.StJpegHue,
	},
	ExposureMode: {
		name: "Exposure Mode", kind: Enumerated,
		field: pentax.FieldExposureMode, status: pentax.StExposureMode,
		options: exposureModeNames,
	},
	DriveMode: {
		name: "Drive Mode", kind: Enumerated,
		field: pentax.FieldDriveMode, status: pentax.StDriveMode,
		options: []string{
			"Single", "Continuous-HI", "SelfTimer-12", "SelfTimer-2", "Remote", "Remote-3",
			"Continuous-LO",
		},
	},
	AFMode: {
		name: "AF Mode", kind: Enumerated,
		field: pentax.FieldAFMode, status: pentax.StAFMode,
		options: []string{"MF", "AF.S", "AF.C", "AF.A"},
	},
	AFPointSelection: {
		name: "AF Point Selection", kind: Enumerated,
		field: pentax.FieldAFPointSel, status: pentax.StAFPointSelect,
		options: []string{"Auto-5", "Select", "Spot", "Auto-11"},
	},
	MeteringMode: {
		name: "Metering Mode", kind: Enumerated,
		field: pentax.FieldAEMetering, status: pentax.StMeteringMode,
		options: []string{"Multi", "Center", "Spot"},
	},
	FlashMode: {
		name: "Flash Mode", kind: Enumerated,
		field: pentax.FieldFlashMode, status: pentax.StFlashMode,
		options: []string{
			"Manual", "Manual-RedEye", "Slow", "Slow-RedEye", "TrailingCurtain", "Auto",
			"Auto-RedEye", "TrailingCurtain", "Wireless",
		},
	},
	ColorSpace: {
		name: "Color Space", kind: Enumerated,
		field: pentax.FieldColorSpace, status: pentax.StColorSpace,
		options: []string{"sRGB", "AdobeRGB"},
	},
	WhiteBalance: {
		name: "White Balance", kind: Enumerated,
		field: pentax.FieldWhiteBalance, status: pentax.StWhiteBalance,
		options: []string{
			"Auto", "Daylight", "Shade", "Cloudy", "Fluorescent_D", "Fluorescent_N",
			"Fluorescent_W", "Tungsten", "Flash", "Manual", "Reserved-10", "Reserved-11",
			"ColorTemp1", "ColorTemp2", "ColorTemp3", "Fluorescent_L", "CTE",
		},
	},
	ImageTone: {
		name: "Image Tone", kind: Enumerated,
		field: pentax.FieldJpegImageTone, status: pentax.StJpegImageTone,
		options: []string{
			"Natural", "Bright", "Portrait", "Landscape", "Vibrant", "Monochrome", "Muted",
			"ReversalFilm", "BleachBypass", "Radiant",
		},
	},
	JpegQuality: {
		name: "JPEG Quality", kind: Enumerated,
		field: pentax.FieldJpegStars, status: pentax.StJpegQuality,
	},
	JpegResolution: {
		name: "JPEG Resolution", kind: Enumerated,
		field: pentax.FieldJpegResolution, status: pentax.StJpegResolution,
	},
	FileFormat: {
		name: "File Format", kind: Enumerated,
		field: pentax.FieldImageFormat, status: pentax.StImageFormat,
		options: []string{FormatPEF, FormatDNG, FormatJPEG},
	},
	FileDestination: {
		name: "File Destination", kind: Enumerated, local: true,
		options: []string{DestinationComputer, DestinationBoth},
	},
}

// Parameters lists every parameter in the order changes are applied.
func Parameters() []Parameter {
	params := make([]Parameter, numParameters)
	for i := range params {
		params[i] = Parameter(i)
	}
	return params
}

func (p Parameter) valid() bool {
	return p >= 0 && p < numParameters
}

func (p Parameter) String() string {
	if !p.valid() {
		return fmt.Sprintf("Parameter(%d)", int(p))
	}
	return descriptors[p].name
}

// Kind returns whether p is numeric or enumerated.
func (p Parameter) Kind() Kind {
	if !p.valid() {
		return Enumerated
	}
	return descriptors[p].kind
}

// AutoCapable reports whether p accepts stop.Auto.
func (p Parameter) AutoCapable() bool {
	return p.valid() && descriptors[p].auto
}

func (p Parameter) isJpegAdjustment() bool {
	return p == JpegSharpness || p == JpegContrast || p == JpegSaturation || p == JpegHue
}

var parameterAliases = map[string]Parameter{
	"shutter": Shutter,
	"tv":      Shutter,
	"av":      Aperture,
	"f":       Aperture,
	"sv":      ISO,
	"ec":      ExposureCompensation,
	"fec":     FlashExposureCompensation,
	"wb":      WhiteBalance,
	"format":  FileFormat,
}

func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(name))
}

// ParseParameter looks up a parameter by display name, ignoring case, spaces, dashes and
// underscores. A few short aliases such as "ec" are accepted as well.
func ParseParameter(name string) (Parameter, error) {
	n := normalizeName(name)

	for i, d := range descriptors {
		if normalizeName(d.name) == n {
			return Parameter(i), nil
		}
	}

	if p, ok := parameterAliases[n]; ok {
		return p, nil
	}

	return 0, &ValidationError{Parameter: name, Reason: "unknown parameter"}
}

// ParseStop parses a user supplied value for a numeric parameter: "auto", an f-number
// ("5.6", "f/5.6"), an exposure time ("1/250", "2.5", "30s"), an ISO ("400") or an EV offset
// ("+0.7"). JPEG adjustments take whole levels ("-2").
func ParseStop(p Parameter, value string) (stop.Stop, error) {
	v := strings.TrimSpace(strings.ToLower(value))
	invalid := func(reason string) (stop.Stop, error) {
		return stop.Unknown, &ValidationError{Parameter: p.String(), Value: value, Reason: reason}
	}

	if p.Kind() != Numeric {
		return invalid("not a numeric parameter")
	}

	if v == "auto" {
		if !p.AutoCapable() {
			return invalid("auto not supported")
		}
		return stop.Auto, nil
	}

	switch {
	case p == Aperture:
		f, err := strconv.ParseFloat(strings.TrimPrefix(v, "f/"), 64)
		if err != nil || f <= 0 {
			return invalid("expected f-number")
		}
		return stop.FromAperture(f), nil

	case p == Shutter:
		v = strings.TrimRight(v, "s\"")
		if strings.HasPrefix(v, "1/") {
			speed, err := strconv.ParseFloat(v[2:], 64)
			if err != nil || speed <= 0 {
				return invalid("expected exposure time")
			}
			return stop.FromShutterSpeed(speed), nil
		}
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t <= 0 {
			return invalid("expected exposure time")
		}
		return stop.FromShutterTime(t), nil

	case p == ISO:
		iso, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(v, "iso")))
		if err != nil || iso <= 0 {
			return invalid("expected ISO sensitivity")
		}
		return stop.FromISO(iso), nil

	case p.isJpegAdjustment():
		level, err := strconv.Atoi(v)
		if err != nil {
			return invalid("expected integer level")
		}
		return stop.FromStops(level), nil
	}

	ec, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "ev")), 64)
	if err != nil {
		return invalid("expected EV offset")
	}
	return stop.FromExposureCompensation(ec), nil
}

// FormatStop renders a stop value of parameter p for display.
func FormatStop(p Parameter, s stop.Stop) string {
	switch {
	case !s.IsValue():
		return s.String()
	case p == Aperture:
		return s.FormatAperture()
	case p == Shutter:
		return s.FormatShutter()
	case p == ISO:
		return s.FormatISO()
	case p.isJpegAdjustment():
		return fmt.Sprintf("%+d", s.ExposureSteps(stop.WholeStop))
	}
	return s.FormatExposureCompensation()
}
