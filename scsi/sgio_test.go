// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSgIoHdrSize(t *testing.T) {
	// sizeof(struct sg_io_hdr) on 64-bit Linux
	if unsafe.Sizeof(uintptr(0)) == 8 {
		assert.Equal(t, uintptr(88), unsafe.Sizeof(sgIoHdr{}))
	}
}

func TestTransferred(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(8, Transferred(8, 0))
	assert.Equal(6, Transferred(8, 2))
	// Old firmware reports everything as residual although all bytes arrived
	assert.Equal(8, Transferred(8, 8))
	assert.Equal(0, Transferred(8, 12))
	assert.Equal(8, Transferred(8, -1))
}

func TestOpenSGMissing(t *testing.T) {
	_, err := OpenSG(filepath.Join(t.TempDir(), "sg99"))
	require.Error(t, err)

	var devErr *DeviceError
	assert.True(t, errors.As(err, &devErr))
	assert.Equal(t, "open", devErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSgioErrorString(t *testing.T) {
	e := SgioError{ScsiStatus: 0x02, Sense: []byte{0x70, 0x00, 0x05}}
	assert.Contains(t, e.Error(), "70 00 05")
}

func TestSgioErrorUnreachable(t *testing.T) {
	assert := assert.New(t)

	assert.True(SgioError{HostStatus: DID_TIME_OUT, DriverStatus: DRIVER_TIMEOUT}.Unreachable())
	assert.True(SgioError{HostStatus: DID_NO_CONNECT}.Unreachable())
	assert.True(SgioError{DriverStatus: 0x20 | DRIVER_TIMEOUT}.Unreachable())
	// Check condition with sense data is an answer from the device
	assert.False(SgioError{ScsiStatus: 0x02, DriverStatus: 0x08, Sense: []byte{0x70}}.Unreachable())
}

func writeAttr(t *testing.T, path, value string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(value), 0644))
}

func TestScanSysfs(t *testing.T) {
	root := t.TempDir()
	class := filepath.Join(root, "class", "scsi_generic")

	writeAttr(t, filepath.Join(class, "sg1", "device", "vendor"), "PENTAX  \n")
	writeAttr(t, filepath.Join(class, "sg1", "device", "model"), "DSC K10D        \n")
	writeAttr(t, filepath.Join(class, "sg0", "device", "vendor"), "ATA     \n")
	writeAttr(t, filepath.Join(class, "sg0", "device", "model"), "Samsung SSD\n")
	// No vendor attribute, skipped
	require.NoError(t, os.MkdirAll(filepath.Join(class, "sg2"), 0755))

	devices := scanSysfs(root, "/dev")
	require.Len(t, devices, 2)

	assert.Equal(t, "/dev/sg0", devices[0].Name)
	assert.False(t, devices[0].IsCamera())
	assert.Equal(t, "/dev/sg1", devices[1].Name)
	assert.Equal(t, "DSC K10D", devices[1].Model)
	assert.True(t, devices[1].IsCamera())
}

func TestScanSysfsBlockFallback(t *testing.T) {
	root := t.TempDir()
	writeAttr(t, filepath.Join(root, "block", "sdc", "device", "vendor"), "PENTAX\n")

	devices := scanSysfs(root, "/dev")
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/sdc", devices[0].Name)
}
