// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelTable = `
#include "pslr_model.h"

/* Model table */
ipslr_model_info_t camera_models[] = {
    { 0x12c1e, "K10D",  false, true,  false, 392, 3, {10, 6, 2}, 7, 4000, 100, 1600, 100, 1600, ipslr_status_parse_k10d },
    { 0x12cd2, "K20D",  false, true,  true,  412, 4, {14, 10, 6, 2}, 7, 4000, 100, 3200, 100, 6400, ipslr_status_parse_k20d },
    { 0x12f52, "K-5",   false, false, true,  0,   4, {16, 10, 6, 2}, 9, 8000, 100, 12800, 80, 51200, NULL },
};
`

func TestParseModels(t *testing.T) {
	models, err := parseModels(strings.NewReader(modelTable), 3)
	require.NoError(t, err)
	require.Len(t, models, 3)

	k10d := models[0]
	assert.Equal(t, uint32(0x12c1e), k10d.ID)
	assert.Equal(t, "K10D", k10d.Name)
	assert.Equal(t, "k10d", k10d.StatusLayout)
	assert.Equal(t, 392, k10d.StatusBufferSize)
	assert.Equal(t, []int{10, 6, 2}, k10d.JpegResolutions)
	assert.Equal(t, 3, k10d.JpegPropertyShift())
	assert.Equal(t, 3, k10d.ECMax)
	assert.False(t, k10d.ExposureModeConversion)

	k20d := models[1]
	assert.Equal(t, "k20d", k20d.StatusLayout)
	assert.Equal(t, 4, k20d.MaxJpegStars)
	assert.True(t, k20d.ExposureModeConversion)

	k5 := models[2]
	assert.Equal(t, "k10d", k5.StatusLayout)
	assert.Equal(t, 8000, k5.FastestShutterSpeed)
	assert.Equal(t, 51200, k5.ExtendedISOMax)
}

func TestParseModelsNoTable(t *testing.T) {
	_, err := parseModels(strings.NewReader("int x = 1;"), 2)
	assert.Error(t, err)
}

func TestParseModelsShortRow(t *testing.T) {
	_, err := parseModels(strings.NewReader(`camera_models[] = { { 0x1, "X", 3 } };`), 2)
	assert.Error(t, err)
}
