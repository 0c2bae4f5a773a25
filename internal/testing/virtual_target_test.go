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

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualTarget_AcksCompleteFrame(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()

	n, err := sim.Write([]byte{0x04, 0x00, 0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	buf := make([]byte, 3)
	n, err = sim.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ACK", string(buf[:n]))
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, sim.Image())
	assert.Equal(t, 1, sim.FramesReceived())
}

func TestVirtualTarget_WaitsForWholeFrame(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()

	_, err := sim.Write([]byte{0x03, 0x00, 0x01})
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "no ack before the payload is complete")
	assert.Equal(t, 3, sim.Pending())

	_, err = sim.Write([]byte{0x02, 0x03})
	require.NoError(t, err)

	n, err = sim.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ACK", string(buf[:n]))
	assert.Zero(t, sim.Pending())
}

func TestVirtualTarget_EmptyFrame(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()

	_, err := sim.Write([]byte{0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 1, sim.FramesReceived())
	assert.Empty(t, sim.Image())
}

func TestVirtualTarget_NotInFlashMode(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()
	sim.SetFlashMode(false)

	_, err := sim.Write([]byte{0x01, 0x00, 0xAA})
	require.NoError(t, err)

	n, err := sim.Read(make([]byte, 3))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVirtualTarget_ChunkedReads(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()
	sim.SetChunkSize(1)

	_, err := sim.Write([]byte{0x00, 0x00})
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('A'), buf[0])
}

func TestVirtualTarget_PurgeDropsNoise(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()
	sim.InjectNoise([]byte("ACK"))
	sim.Purge()

	n, err := sim.Read(make([]byte, 3))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVirtualTarget_InjectedErrors(t *testing.T) {
	t.Parallel()
	sim := NewVirtualTarget()

	sim.SetWriteError(ErrInjected)
	_, err := sim.Write([]byte{0x00, 0x00})
	require.ErrorIs(t, err, ErrInjected)

	sim.SetWriteError(nil)
	sim.SetReadError(ErrInjected)
	_, err = sim.Read(make([]byte, 3))
	require.ErrorIs(t, err, ErrInjected)
}
