// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package cameradb holds per-model capabilities of Pentax camera bodies.
package cameradb

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/pslr/stop"
)

//go:embed cameradb.yaml
var defaultDb []byte

// Model describes the capabilities of one camera body.
type Model struct {
	ID                     uint32 `yaml:"id"`
	Name                   string `yaml:"name"`
	StatusLayout           string `yaml:"status_layout"`
	StatusBufferSize       int    `yaml:"status_buffer_size,omitempty"`
	MaxJpegStars           int    `yaml:"max_jpeg_stars"`
	JpegResolutions        []int  `yaml:"jpeg_resolutions,flow"`
	JpegPropertyLevels     int    `yaml:"jpeg_property_levels"`
	FastestShutterSpeed    int    `yaml:"fastest_shutter_speed"`
	BaseISOMin             int    `yaml:"base_iso_min"`
	BaseISOMax             int    `yaml:"base_iso_max"`
	ExtendedISOMin         int    `yaml:"extended_iso_min,omitempty"`
	ExtendedISOMax         int    `yaml:"extended_iso_max,omitempty"`
	ECMax                  int    `yaml:"ec_max"`
	ExposureModeConversion bool   `yaml:"exposure_mode_conversion,omitempty"`
}

// JpegPropertyShift is the offset between a JPEG adjustment level and its wire value. Levels
// range from -shift to +shift.
func (m Model) JpegPropertyShift() int {
	if m.JpegPropertyLevels < 1 {
		return 0
	}
	return (m.JpegPropertyLevels - 1) / 2
}

// FastestShutter returns the shortest exposure time supported by the body.
func (m Model) FastestShutter() stop.Stop {
	if m.FastestShutterSpeed <= 0 {
		return stop.FastestShutter
	}
	return stop.FromShutterSpeed(float64(m.FastestShutterSpeed))
}

// ISORange returns the base sensitivity range.
func (m Model) ISORange() (stop.Stop, stop.Stop) {
	return stop.FromISO(m.BaseISOMin), stop.FromISO(m.BaseISOMax)
}

// ECRange returns the exposure compensation range.
func (m Model) ECRange() (stop.Stop, stop.Stop) {
	return stop.FromStops(-m.ECMax), stop.FromStops(m.ECMax)
}

// JpegResolution returns the megapixel count of the given resolution index, or 0.
func (m Model) JpegResolution(index int) int {
	if index < 0 || index >= len(m.JpegResolutions) {
		return 0
	}
	return m.JpegResolutions[index]
}

type CameraDb struct {
	Cameras []Model `yaml:"cameras"`
}

// LookupModel returns the entry for a camera id, or the DEFAULT entry when the id is not known.
func (db *CameraDb) LookupModel(id uint32) (Model, bool) {
	var def Model

	for _, m := range db.Cameras {
		if m.Name == "DEFAULT" {
			def = m
			continue
		}
		if m.ID == id {
			return m, true
		}
	}

	def.ID = id
	return def, false
}

// Decode reads a YAML-formatted camera database.
func Decode(r io.Reader) (CameraDb, error) {
	var db CameraDb

	if err := yaml.NewDecoder(r).Decode(&db); err != nil {
		return db, fmt.Errorf("decode camera db: %w", err)
	}

	return db, nil
}

// Default returns the database compiled into the binary.
func Default() CameraDb {
	db, err := Decode(bytes.NewReader(defaultDb))
	if err != nil {
		panic(err)
	}
	return db
}

// OpenCameraDb opens a YAML-formatted camera database. An empty path selects the built-in
// database.
func OpenCameraDb(dbfile string) (CameraDb, error) {
	if dbfile == "" {
		return Default(), nil
	}

	f, err := os.Open(dbfile)
	if err != nil {
		return CameraDb{}, err
	}

	defer f.Close()
	return Decode(f)
}
