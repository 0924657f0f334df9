// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI device discovery via sysfs.

package scsi

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DeviceInfo describes a SCSI device node and the INQUIRY strings exported by the kernel.
type DeviceInfo struct {
	Name   string // e.g. /dev/sg2
	Vendor string
	Model  string
}

// IsCamera reports whether the device identifies itself as a Pentax (or Ricoh branded Pentax)
// camera.
func (d DeviceInfo) IsCamera() bool {
	v := strings.ToUpper(d.Vendor)
	return v == "PENTAX" || v == "RICOH" || v == "ASAHI"
}

// ScanDevices lists all SCSI generic devices known to the kernel. If the scsi_generic class is
// not available, block devices are listed instead.
func ScanDevices() []DeviceInfo {
	return scanSysfs("/sys", "/dev")
}

func scanSysfs(sysRoot, devRoot string) []DeviceInfo {
	var devices []DeviceInfo

	classDir := filepath.Join(sysRoot, "class", "scsi_generic")
	entries, err := os.ReadDir(classDir)
	if err != nil {
		classDir = filepath.Join(sysRoot, "block")
		if entries, err = os.ReadDir(classDir); err != nil {
			return devices
		}
	}

	for _, e := range entries {
		name := e.Name()
		vendor, err := readAttr(filepath.Join(classDir, name, "device", "vendor"))
		if err != nil {
			continue
		}
		model, _ := readAttr(filepath.Join(classDir, name, "device", "model"))

		devices = append(devices, DeviceInfo{
			Name:   filepath.Join(devRoot, name),
			Vendor: vendor,
			Model:  model,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })

	return devices
}

func readAttr(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
