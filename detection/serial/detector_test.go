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

package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-caflash/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func newTestDetector(ports ...*enumerator.PortDetails) *detector {
	return &detector{listPorts: func() ([]*enumerator.PortDetails, error) {
		return ports, nil
	}}
}

func TestDetect_ClassifiesPorts(t *testing.T) {
	t.Parallel()
	d := newTestDetector(
		&enumerator.PortDetails{Name: "/dev/ttyS0"},
		&enumerator.PortDetails{
			Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001",
			SerialNumber: "A50285BI", Product: "FT232R USB UART",
		},
		&enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523"},
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
	)

	opts := detection.DefaultOptions()
	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 4)

	byPath := make(map[string]detection.DeviceInfo, len(devices))
	for _, dev := range devices {
		byPath[dev.Path] = dev
	}

	native := byPath["/dev/ttyS0"]
	assert.Equal(t, "tty", native.Transport)
	assert.Equal(t, detection.Low, native.Confidence)

	target := byPath["/dev/ttyUSB0"]
	assert.Equal(t, "bridge", target.Transport)
	assert.Equal(t, detection.High, target.Confidence)
	assert.Equal(t, "0403:6001", target.Metadata["vidpid"])
	assert.Equal(t, "A50285BI", target.Metadata["serial"])
	assert.Equal(t, "FT232R USB UART", target.Name)

	ch340 := byPath["/dev/ttyUSB1"]
	assert.Equal(t, detection.Medium, ch340.Confidence)
	assert.Equal(t, "QinHeng CH340", ch340.Name)
	assert.Equal(t, "1A86:7523", ch340.Metadata["vidpid"])

	unknown := byPath["/dev/ttyACM0"]
	assert.Equal(t, detection.Low, unknown.Confidence)
	assert.Equal(t, "USB serial device", unknown.Name)
}

func TestDetect_CustomTarget(t *testing.T) {
	t.Parallel()
	d := newTestDetector(
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1A86", PID: "7523"},
	)

	opts := detection.DefaultOptions()
	opts.TargetVIDPID = "1a86:7523"
	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)

	for _, dev := range devices {
		if dev.Path == "/dev/ttyUSB1" {
			assert.Equal(t, detection.High, dev.Confidence)
		} else {
			assert.Equal(t, detection.Medium, dev.Confidence)
		}
	}
}

func TestDetect_Filters(t *testing.T) {
	t.Parallel()
	d := newTestDetector(
		&enumerator.PortDetails{Name: "/dev/ttyS0"},
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "1366", PID: "0105"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
		nil,
	)

	opts := detection.DefaultOptions()
	opts.IncludeNative = false
	opts.IgnorePaths = []string{"/dev/ttyUSB0"}

	_, err := d.Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_EnumerationError(t *testing.T) {
	t.Parallel()
	d := &detector{listPorts: func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no udev")
	}}

	opts := detection.DefaultOptions()
	_, err := d.Detect(context.Background(), &opts)
	require.Error(t, err)
	assert.NotErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_NoPorts(t *testing.T) {
	t.Parallel()
	opts := detection.DefaultOptions()
	_, err := newTestDetector().Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestRegistered(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Name, New().Transport())
}
