// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/pslr/pentax"
)

// captureOnShutter makes the fake camera fill buffer 0 when the shutter is released.
func captureOnShutter(f *fakeController, req pentax.Request) {
	if req.Op == "shutter" {
		f.status.BufMask |= 1
	}
}

func TestFilename(t *testing.T) {
	s := newTestSession(t, &fakeController{status: manualStatus()})

	assert.Equal(t, "tc1.jpg", filepath.Base(s.Filename("jpg")))
	assert.Equal(t, "tc2.jpg", filepath.Base(s.Filename("jpg")))

	// Existing files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.Destination, "tc3.dng"), nil, 0644))
	assert.Equal(t, "tc4.dng", filepath.Base(s.Filename("dng")))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "jpg", FileExtension(FormatJPEG))
	assert.Equal(t, "dng", FileExtension(FormatDNG))
	assert.Equal(t, "pef", FileExtension(FormatPEF))
	assert.Equal(t, "jpg", FileExtension(Unknown))
}

func TestSaveBuffer(t *testing.T) {
	f := &fakeController{status: manualStatus(), chunks: []int{4096, 4096, 0}}
	s := newTestSession(t, f)

	path := filepath.Join(t.TempDir(), "out.jpg")
	n, err := s.SaveBuffer(0, pentax.BufferJPEGBest, 0, path)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), n)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), fi.Size())
	assert.Equal(t, 1, f.opens)
	assert.Equal(t, 1, f.closes)
}

func TestSaveBufferRetriesOpen(t *testing.T) {
	f := &fakeController{status: manualStatus(), chunks: []int{100, 0}, openFails: 3}
	s := newTestSession(t, f)

	n, err := s.SaveBuffer(0, pentax.BufferPEF, 0, filepath.Join(t.TempDir(), "out.pef"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	assert.Equal(t, 4, f.opens)
	assert.Equal(t, 1, f.closes)
}

func TestSaveBufferOpenGivesUp(t *testing.T) {
	f := &fakeController{status: manualStatus(), openFails: 1000}
	s := newTestSession(t, f)

	dir := t.TempDir()
	_, err := s.SaveBuffer(0, pentax.BufferPEF, 0, filepath.Join(dir, "out.pef"))
	assert.True(t, pentax.IsProtocolError(err))
	assert.Equal(t, s.cfg.OpenRetries, f.opens)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShoot(t *testing.T) {
	f := &fakeController{
		status:    manualStatus(),
		onDo:      captureOnShutter,
		chunks:    []int{4096, 4096, 0},
		openFails: 2,
	}
	s := newTestSession(t, f)

	path, err := s.Shoot()
	require.NoError(t, err)
	assert.Equal(t, "tc1.jpg", filepath.Base(path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), fi.Size())

	assert.Equal(t, 3, f.opens)
	assert.Equal(t, pentax.JPEGBufferKind(3, 3), f.openKind)
	assert.Equal(t, 1, f.deletes)

	st, _ := s.Status()
	assert.Zero(t, st.BufMask)
	assert.False(t, s.downloading.Load())
}

func TestShootRaw(t *testing.T) {
	st := manualStatus()
	st.ImageFormat = pentax.ImageFormatRAW
	st.RawFormat = pentax.RawFormatPEF

	f := &fakeController{status: st, onDo: captureOnShutter, chunks: []int{10, 0}}
	s := newTestSession(t, f)
	require.NoError(t, s.SetString(FileDestination, DestinationBoth))

	path, err := s.Shoot()
	require.NoError(t, err)
	assert.Equal(t, "tc1.pef", filepath.Base(path))
	assert.Equal(t, pentax.BufferPEF, f.openKind)

	// Kept on the camera
	assert.Zero(t, f.deletes)
}

func TestShootShutterFailure(t *testing.T) {
	f := &fakeController{
		status: manualStatus(),
		doErrs: map[string]error{"shutter": &pentax.ProtocolError{Op: "shutter", Code: 0x02}},
	}
	s := newTestSession(t, f)

	path, err := s.Shoot()
	assert.Error(t, err)
	assert.Empty(t, path)
	assert.Zero(t, f.opens)

	entries, err := os.ReadDir(s.cfg.Destination)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShootBusy(t *testing.T) {
	f := &fakeController{status: manualStatus()}
	s := newTestSession(t, f)

	s.downloading.Store(true)
	path, err := s.Shoot()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, path)
	assert.Empty(t, f.sent())
}

func TestDeleteBuffer(t *testing.T) {
	st := manualStatus()
	st.BufMask = 0x3
	f := &fakeController{status: st, deleteFails: 2}
	s := newTestSession(t, f)

	require.NoError(t, s.DeleteBuffer(1))
	assert.Equal(t, 3, f.deletes)

	st, _ = s.Status()
	assert.Equal(t, uint16(0x1), st.BufMask)
}

func TestDeleteBufferNotCleared(t *testing.T) {
	st := manualStatus()
	st.BufMask = 0x1
	f := &fakeController{status: st, keepBuffers: true}
	s := newTestSession(t, f)

	err := s.DeleteBuffer(0)
	assert.ErrorIs(t, err, ErrBufferNotCleared)
	assert.Equal(t, 1, f.deletes)
}

func TestDeleteBufferGivesUp(t *testing.T) {
	f := &fakeController{status: manualStatus(), deleteFails: 100}
	s := newTestSession(t, f)

	err := s.DeleteBuffer(0)
	assert.True(t, pentax.IsProtocolError(err))
	assert.Equal(t, DEFAULT_DELETE_RETRIES, f.deletes)
}
