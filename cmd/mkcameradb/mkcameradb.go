// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// pktriggercord pslr_model.c camera table to YAML format converter.
//
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/scanner"

	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/pslr/cameradb"
)

const (
	tableName    = "camera_models"
	parserPrefix = "ipslr_status_parse_"
)

// Status parsers of pslr_model.c that share a layout known to the pentax package.
var layouts = map[string]string{
	"istds": "k10d",
	"k10d":  "k10d",
	"k20d":  "k20d",
	"k200d": "k20d",
}

// row holds the tokens of one initializer of the model table, grouped by type in source order.
type row struct {
	ints   []int64
	bools  []bool
	strs   []string
	list   []int
	idents []string
}

// model converts a table row. The columns are id, name, a run of boolean flags (the third is
// the exposure mode conversion flag), status buffer size, max JPEG stars, {JPEG resolutions},
// JPEG property levels, fastest shutter speed, base ISO min/max, extended ISO min/max, and
// finally the status parser function.
func (r row) model(ecMax int) (cameradb.Model, error) {
	if len(r.ints) < 9 || len(r.strs) < 1 {
		return cameradb.Model{}, fmt.Errorf("short row %v", r)
	}

	m := cameradb.Model{
		ID:                  uint32(r.ints[0]),
		Name:                r.strs[0],
		StatusBufferSize:    int(r.ints[1]),
		MaxJpegStars:        int(r.ints[2]),
		JpegPropertyLevels:  int(r.ints[3]),
		FastestShutterSpeed: int(r.ints[4]),
		BaseISOMin:          int(r.ints[5]),
		BaseISOMax:          int(r.ints[6]),
		ExtendedISOMin:      int(r.ints[7]),
		ExtendedISOMax:      int(r.ints[8]),
		ECMax:               ecMax,
		StatusLayout:        "k10d",
	}

	if len(r.bools) > 2 {
		m.ExposureModeConversion = r.bools[2]
	}

	for _, res := range r.list {
		if res > 0 {
			m.JpegResolutions = append(m.JpegResolutions, res)
		}
	}

	for _, ident := range r.idents {
		if strings.HasPrefix(ident, parserPrefix) {
			if l, ok := layouts[strings.TrimPrefix(ident, parserPrefix)]; ok {
				m.StatusLayout = l
			}
		}
	}

	return m, nil
}

func parseModels(src io.Reader, ecMax int) ([]cameradb.Model, error) {
	var (
		s       scanner.Scanner
		inTable bool
		depth   int
		cur     row
	)

	models := make([]cameradb.Model, 0)

	s.Init(src)
	s.Filename = "pslr_model.c"

	// Extremely simple state machine like processing of tokens.
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		if !inTable {
			inTable = tok == scanner.Ident && s.TokenText() == tableName
			continue
		}

		switch tok {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 1 {
				m, err := cur.model(ecMax)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", s.Position, err)
				}
				models = append(models, m)
				cur = row{}
			} else if depth == 0 {
				return models, nil
			}
		case scanner.Int:
			n, err := strconv.ParseInt(s.TokenText(), 0, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.Position, err)
			}
			if depth == 3 {
				cur.list = append(cur.list, int(n))
			} else if depth == 2 {
				cur.ints = append(cur.ints, n)
			}
		case scanner.String:
			if depth == 2 {
				str, err := strconv.Unquote(s.TokenText())
				if err != nil {
					return nil, fmt.Errorf("%s: %w", s.Position, err)
				}
				cur.strs = append(cur.strs, str)
			}
		case scanner.Ident:
			if depth != 2 {
				continue
			}
			switch s.TokenText() {
			case "true":
				cur.bools = append(cur.bools, true)
			case "false":
				cur.bools = append(cur.bools, false)
			default:
				cur.idents = append(cur.idents, s.TokenText())
			}
		}
	}

	if !inTable {
		return nil, fmt.Errorf("no %s table found", tableName)
	}
	return models, nil
}

// defaultModel is used for camera ids missing from the table.
var defaultModel = cameradb.Model{
	Name:                "DEFAULT",
	StatusLayout:        "k10d",
	StatusBufferSize:    392,
	MaxJpegStars:        3,
	JpegResolutions:     []int{10, 6, 2},
	JpegPropertyLevels:  7,
	FastestShutterSpeed: 4000,
	BaseISOMin:          100,
	BaseISOMax:          1600,
	ExtendedISOMin:      100,
	ExtendedISOMax:      1600,
	ECMax:               2,
}

func main() {
	var (
		inFilename, outFilename string
		ecMax                   int
	)

	flag.StringVar(&inFilename, "in", "pslr_model.c", "Path to pktriggercord pslr_model.c")
	flag.StringVar(&outFilename, "out", "cameradb.yaml", "Output .yaml filename")
	flag.IntVar(&ecMax, "ecmax", 2, "Exposure compensation range in stops, not part of the model table")
	flag.Parse()

	f, err := os.Open(inFilename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read model table: %v\n", err)
		os.Exit(1)
	}

	defer f.Close()
	fmt.Printf("Reading from local file %s\n", f.Name())

	models, err := parseModels(f, ecMax)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse model table: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Parsed %s - %d entries\n", inFilename, len(models))

	destFile, err := os.Create(outFilename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create output: %v\n", err)
		os.Exit(1)
	}

	defer destFile.Close()
	destFile.WriteString("# Pentax camera model database.\n#\n# Generated by mkcameradb from " + inFilename + ".\n")

	enc := yaml.NewEncoder(destFile)

	db := cameradb.CameraDb{Cameras: append([]cameradb.Model{defaultModel}, models...)}
	if err := enc.Encode(db); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding yaml: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote output to %s\n", outFilename)
}
