// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pentax

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/pslr/stop"
)

func k10dStatus(order binary.ByteOrder) []byte {
	buf := make([]byte, 0x1b0)
	put := func(off int, v uint32) { order.PutUint32(buf[off:], v) }

	order.PutUint16(buf[0x16:], 0x0102)
	put(0x1c, 1)
	put(0x2c, 1)
	put(0x30, 125)
	put(0x34, 56)
	put(0x38, 10)
	put(0x3c, uint32(0xfffffffd)) // -3/10
	put(0x40, 10)
	put(0x60, 400)
	put(0x9c, 1)
	put(0xac, ExposureAv)
	put(0x124, LightMeterAELock)
	put(0x12c, 35)
	put(0x130, 10)
	put(0x134, 22)
	put(0x138, 1)

	return buf
}

func TestDecodeStatus(t *testing.T) {
	assert := assert.New(t)

	st := DecodeStatus(k10dStatus(binary.BigEndian), LayoutK10D)

	assert.Equal(uint16(0x0102), st.BufMask)
	assert.True(st.UserMode)
	assert.Equal(stop.Rational{Nom: 1, Denom: 125}, st.SetShutter)
	assert.Equal(stop.Rational{Nom: 56, Denom: 10}, st.SetAperture)
	assert.Equal(stop.Rational{Nom: -3, Denom: 10}, st.ExposureCompensation)
	assert.Equal(uint32(400), st.FixedISO)
	assert.Equal(uint32(ExposureAv), st.ExposureMode)
	assert.Equal(stop.HalfStop, st.EVStep())
	assert.True(st.AELocked())
	assert.Equal(stop.Rational{Nom: 35, Denom: 10}, st.LensMinAperture)
	assert.Equal(stop.Rational{Nom: 22, Denom: 1}, st.LensMaxAperture)

	assert.True(st.Has(StBufMask))
	assert.True(st.Has(StFocusedAFPoint))
	// Not part of the K10D layout
	assert.False(st.Has(StDriveMode))
	assert.False(st.Has(StJpegHue))
}

func TestDecodeStatusLittleEndian(t *testing.T) {
	l, err := LookupLayout("k10d", true)
	require.NoError(t, err)

	st := DecodeStatus(k10dStatus(binary.LittleEndian), l)
	assert.Equal(t, uint16(0x0102), st.BufMask)
	assert.Equal(t, uint32(400), st.FixedISO)

	_, err = LookupLayout("k1000", false)
	assert.Error(t, err)
}

func TestDecodeStatusTruncated(t *testing.T) {
	// Only the first part of the block, ending inside the set aperture rational
	st := DecodeStatus(k10dStatus(binary.BigEndian)[:0x38], LayoutK10D)

	assert.True(t, st.Has(StBufMask))
	assert.True(t, st.Has(StSetShutter))
	assert.False(t, st.Has(StSetAperture))
	assert.Equal(t, stop.Rational{}, st.SetAperture)
	assert.False(t, st.Has(StCurrentISO))
}

func TestStatusBuffers(t *testing.T) {
	assert := assert.New(t)

	st := Status{BufMask: 0x0014}
	assert.Equal(2, st.FirstBuffer())
	assert.Equal(4, st.NewestBuffer())

	st.BufMask = 0
	assert.Equal(0, st.FirstBuffer())
	assert.Equal(-1, st.NewestBuffer())
}

func TestISOStep(t *testing.T) {
	st := Status{CustomEVSteps: 0, CustomSensitivitySteps: 1}
	assert.Equal(t, stop.ThirdStop, st.EVStep())
	assert.Equal(t, stop.WholeStop, st.ISOStep())

	st.CustomSensitivitySteps = 0
	assert.Equal(t, stop.ThirdStop, st.ISOStep())
}

func TestPrintStatus(t *testing.T) {
	st := DecodeStatus(k10dStatus(binary.BigEndian), LayoutK10D)

	var buf bytes.Buffer
	st.PrintStatus(&buf)

	assert.Contains(t, buf.String(), "Buffers")
	assert.Contains(t, buf.String(), "100000010")
	assert.NotContains(t, buf.String(), "Drive")
}
