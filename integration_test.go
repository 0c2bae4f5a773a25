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

package caflash_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-caflash"
	virt "github.com/ZaparooProject/go-caflash/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_UploadToSimulatedTarget(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	tr := virt.NewSimulatorTransport(sim)

	result, err := caflash.NewUploader(tr).Upload(context.Background(), []byte{0xDE, 0xAD, 0xBE, 0xEF})

	require.NoError(t, err)
	assert.Equal(t, caflash.StateAcked, result.State)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, sim.Image())
	assert.Equal(t, 1, sim.FramesReceived())
	assert.Equal(t, caflash.DefaultLinkConfig(), tr.Link())
	assert.Equal(t, 1, tr.Opens())
	assert.Equal(t, 1, tr.Closes())
}

func TestIntegration_LargeImage(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	image := make([]byte, caflash.MaxImageSize)
	for i := range image {
		image[i] = byte(i)
	}

	result, err := caflash.NewUploader(virt.NewSimulatorTransport(sim)).Upload(context.Background(), image)

	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, image, sim.Image())
}

func TestIntegration_TargetNotInFlashMode(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	sim.SetFlashMode(false)
	tr := virt.NewSimulatorTransport(sim)

	result, err := caflash.NewUploader(tr).Upload(context.Background(), []byte{0x01})

	require.ErrorIs(t, err, caflash.ErrAckTimeout)
	assert.Equal(t, caflash.StateFailed, result.State)
	assert.Equal(t, caflash.HintFlashMode, caflash.Hint(err))
	assert.Equal(t, 1, tr.Closes())

	te := caflash.GetTrace(err)
	require.NotNil(t, te)
	assert.Contains(t, te.FormatTrace(), "wire trace mock sim0")
}

func TestIntegration_UnexpectedResponse(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	sim.SetResponse([]byte("ERR"))
	tr := virt.NewSimulatorTransport(sim)

	result, err := caflash.NewUploader(tr).Upload(context.Background(), []byte{0x01})

	require.ErrorIs(t, err, caflash.ErrAckNotRecognized)
	assert.Equal(t, caflash.StateUnacknowledged, result.State)
	assert.Equal(t, []byte("ERR"), result.Ack)
	assert.Equal(t, 1, tr.Closes())
}

func TestIntegration_ChunkedAckIsPartial(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	sim.SetChunkSize(2)
	tr := virt.NewSimulatorTransport(sim)

	// A single read of a slow target sees only part of the reply.
	result, err := caflash.NewUploader(tr).Upload(context.Background(), []byte{0x01})

	require.ErrorIs(t, err, caflash.ErrAckNotRecognized)
	assert.Equal(t, []byte("AC"), result.Ack)
}

func TestIntegration_DeviceMissing(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	tr := virt.NewSimulatorTransport(sim)
	tr.SetOpenError(caflash.NewDeviceNotFoundError(caflash.OpOpen, "0403:6001"))

	_, err := caflash.NewUploader(tr).Upload(context.Background(), []byte{0x01})

	require.ErrorIs(t, err, caflash.ErrDeviceNotFound)
	assert.Equal(t, caflash.HintDeviceAbsent, caflash.Hint(err))
	assert.Zero(t, sim.FramesReceived())
	assert.Zero(t, tr.Closes())
}

func TestIntegration_WriteFailure(t *testing.T) {
	t.Parallel()
	sim := virt.NewVirtualTarget()
	sim.SetWriteError(virt.ErrInjected)
	tr := virt.NewSimulatorTransport(sim)

	_, err := caflash.NewUploader(tr).Upload(context.Background(), []byte{0x01})

	require.ErrorIs(t, err, caflash.ErrTransportWrite)
	assert.True(t, errors.Is(err, virt.ErrInjected))
	assert.Equal(t, 1, tr.Closes())
}
