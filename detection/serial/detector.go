// go-caflash
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-caflash.
//
// go-caflash is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-caflash is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-caflash; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package serial registers a detector that lists serial ports through the
// operating system's port enumerator. Import it for its side effect:
//
//	import _ "github.com/ZaparooProject/go-caflash/detection/serial"
package serial

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-caflash/detection"
	"go.bug.st/serial/enumerator"
)

// Name is the key this detector is registered and cached under
const Name = "serial"

// knownBridges are USB-serial chips commonly wired to flash headers.
var knownBridges = map[string]string{
	"0403:6001": "FTDI FT232R",
	"0403:6010": "FTDI FT2232",
	"0403:6014": "FTDI FT232H",
	"0403:6015": "FTDI FT-X",
	"067B:2303": "Prolific PL2303",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:7523": "QinHeng CH340",
}

type detector struct {
	listPorts func() ([]*enumerator.PortDetails, error)
}

// New creates a serial port detector
func New() detection.Detector {
	return &detector{listPorts: enumerator.GetDetailedPortsList}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the detector name
func (*detector) Transport() string {
	return Name
}

// Detect lists USB bridges and, with IncludeNative, plain serial ports.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return devices, nil
		}
		if device, ok := classify(port, opts); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// classify turns one enumerated port into a DeviceInfo, or reports that
// the port should be skipped.
func classify(port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	if port == nil || detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	if !port.IsUSB {
		if !opts.IncludeNative {
			return detection.DeviceInfo{}, false
		}
		return detection.DeviceInfo{
			Transport:  "tty",
			Path:       port.Name,
			Name:       "serial port",
			Confidence: detection.Low,
			Metadata:   map[string]string{},
		}, true
	}

	vidpid := strings.ToUpper(port.VID + ":" + port.PID)
	if detection.IsBlocked(vidpid, opts.Blocklist) {
		return detection.DeviceInfo{}, false
	}

	device := detection.DeviceInfo{
		Transport:  "bridge",
		Path:       port.Name,
		Name:       port.Product,
		Confidence: detection.Low,
		Metadata:   map[string]string{"vidpid": vidpid},
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}

	chip, known := knownBridges[vidpid]
	switch {
	case opts.TargetVIDPID != "" && strings.EqualFold(vidpid, opts.TargetVIDPID):
		device.Confidence = detection.High
	case known:
		device.Confidence = detection.Medium
	}
	if device.Name == "" {
		device.Name = chip
	}
	if device.Name == "" {
		device.Name = "USB serial device"
	}
	return device, true
}
