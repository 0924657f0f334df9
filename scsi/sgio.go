// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI generic IO functions.

package scsi

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dswarbrick/pslr/ioctl"
)

const (
	SG_DXFER_NONE        = -1
	SG_DXFER_TO_DEV      = -2
	SG_DXFER_FROM_DEV    = -3
	SG_DXFER_TO_FROM_DEV = -4

	SG_INFO_OK_MASK = 0x1
	SG_INFO_OK      = 0x0

	SG_IO = 0x2285

	// Host and driver status codes, defined in <scsi/scsi.h>
	DID_NO_CONNECT = 0x01
	DID_TIME_OUT   = 0x03
	DRIVER_TIMEOUT = 0x06

	// Timeout in milliseconds
	DEFAULT_TIMEOUT = 20000

	senseBufLen = 32
)

// SCSI generic IO, defined in <scsi/sg.h>
type sgIoHdr struct {
	interface_id    int32
	dxfer_direction int32
	cmd_len         uint8
	mx_sb_len       uint8
	iovec_count     uint16
	dxfer_len       uint32
	dxferp          uintptr
	cmdp            uintptr // Command pointer
	sbp             uintptr // Sense buf pointer
	timeout         uint32
	flags           uint32
	pack_id         int32
	usr_ptr         uintptr
	status          uint8
	masked_status   uint8
	msg_status      uint8
	sb_len_wr       uint8
	host_status     uint16
	driver_status   uint16
	resid           int32
	duration        uint32
	info            uint32
}

// SgioError is returned when the device completed the request with a non-OK status. The sense
// bytes written by the device, if any, are attached.
type SgioError struct {
	ScsiStatus   uint8
	HostStatus   uint16
	DriverStatus uint16
	Sense        []byte
}

func (e SgioError) Error() string {
	return fmt.Sprintf("SCSI status: %#02x, host status: %#02x, driver status: %#02x, sense: % x",
		e.ScsiStatus, e.HostStatus, e.DriverStatus, e.Sense)
}

// Unreachable reports whether the request never got an answer from the device, either because
// it timed out or because the host adapter lost the device.
func (e SgioError) Unreachable() bool {
	return e.HostStatus == DID_NO_CONNECT || e.HostStatus == DID_TIME_OUT ||
		e.DriverStatus&0x0f == DRIVER_TIMEOUT
}

// DeviceError is returned when the device could not be reached at all, i.e. the open or the
// SG_IO ioctl itself failed, or the request timed out. The camera is most likely unplugged.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Device is a single open SCSI device handle. Transfer blocks until the device responds or the
// request times out.
type Device interface {
	Transfer(cdb []byte, dir Direction, buf []byte) (int, error)
	Close() error
}

// SGDevice is a SCSI device accessed through the Linux sg driver.
type SGDevice struct {
	Name    string
	Timeout uint32 // milliseconds
	fd      int
}

// OpenSG opens a SCSI generic (or block) device node for SG_IO requests.
func OpenSG(name string) (*SGDevice, error) {
	fd, err := unix.Open(name, unix.O_RDWR, 0600)
	if err != nil {
		return nil, &DeviceError{Device: name, Op: "open", Err: err}
	}

	return &SGDevice{Name: name, Timeout: DEFAULT_TIMEOUT, fd: fd}, nil
}

func (d *SGDevice) Close() error {
	return unix.Close(d.fd)
}

// Transfer issues a single SG_IO request and returns the number of bytes transferred.
func (d *SGDevice) Transfer(cdb []byte, dir Direction, buf []byte) (int, error) {
	var sense [senseBufLen]byte

	if len(cdb) == 0 {
		return 0, fmt.Errorf("empty CDB")
	}

	hdr := sgIoHdr{
		interface_id:    'S',
		dxfer_direction: int32(dir),
		cmd_len:         uint8(len(cdb)),
		mx_sb_len:       uint8(len(sense)),
		cmdp:            uintptr(unsafe.Pointer(&cdb[0])),
		sbp:             uintptr(unsafe.Pointer(&sense[0])),
		timeout:         d.Timeout,
	}

	if len(buf) > 0 {
		hdr.dxfer_len = uint32(len(buf))
		hdr.dxferp = uintptr(unsafe.Pointer(&buf[0]))
	} else {
		hdr.dxfer_direction = SG_DXFER_NONE
	}

	err := ioctl.Ioctl(uintptr(d.fd), SG_IO, uintptr(unsafe.Pointer(&hdr)))
	runtime.KeepAlive(cdb)
	runtime.KeepAlive(buf)

	if err != nil {
		return 0, &DeviceError{Device: d.Name, Op: "SG_IO", Err: err}
	}

	if hdr.info&SG_INFO_OK_MASK != SG_INFO_OK {
		sgErr := SgioError{
			ScsiStatus:   hdr.status,
			HostStatus:   hdr.host_status,
			DriverStatus: hdr.driver_status,
			Sense:        append([]byte(nil), sense[:hdr.sb_len_wr]...),
		}
		if sgErr.Unreachable() {
			return 0, &DeviceError{Device: d.Name, Op: "SG_IO", Err: sgErr}
		}
		return 0, sgErr
	}

	if dir == DirFromDevice {
		return Transferred(len(buf), int(hdr.resid)), nil
	}

	return len(buf), nil
}

// Transferred computes the number of bytes actually moved from the requested length and the
// residual count reported by the driver. Older Pentax firmware reports the full length as
// residual even though every byte was transferred, so resid == requested means all bytes.
func Transferred(requested, resid int) int {
	if resid <= 0 || resid == requested {
		return requested
	}
	if resid > requested {
		return 0
	}
	return requested - resid
}
