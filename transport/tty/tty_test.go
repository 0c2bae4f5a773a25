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

package tty

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/go-caflash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTY_OpenMissingDevice(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ttyNOPE")
	tr := New(path)

	err := tr.Open(context.Background())
	require.ErrorIs(t, err, caflash.ErrDeviceOpen)
	assert.True(t, caflash.IsDeviceAbsent(err))
	assert.Equal(t, caflash.HintDeviceAbsent, caflash.Hint(err))
	assert.NoError(t, tr.Close(), "close after a failed open is a no-op")
}

func TestTTY_NotOpen(t *testing.T) {
	t.Parallel()
	tr := New("/dev/null")
	ctx := context.Background()

	require.ErrorIs(t, tr.Configure(caflash.DefaultLinkConfig()), caflash.ErrTransportNotOpen)
	require.ErrorIs(t, tr.Send(ctx, []byte{0x00, 0x00}), caflash.ErrTransportNotOpen)
	_, err := tr.AwaitAck(ctx)
	require.ErrorIs(t, err, caflash.ErrTransportNotOpen)
}

func TestTTY_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New("/dev/null")
	require.ErrorIs(t, tr.Open(ctx), context.Canceled)
}

func TestTTY_DrainDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frameLen int
		want     time.Duration
	}{
		{name: "empty payload", frameLen: 2, want: 0},
		{name: "four byte payload", frameLen: 6, want: 400 * time.Microsecond},
		{name: "max payload", frameLen: 0xFFFF + 2, want: 0xFFFF * 100 * time.Microsecond},
		{name: "runt", frameLen: 1, want: 0},
	}

	tr := New("/dev/null")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tr.drainDelay(tt.frameLen))
		})
	}
}

func TestTTY_Options(t *testing.T) {
	t.Parallel()
	tr := New("/dev/ttyS1", WithPerByteDelay(0))
	assert.Zero(t, tr.drainDelay(100))
	assert.Equal(t, "/dev/ttyS1", tr.Port())
	assert.Equal(t, caflash.TransportTTY, tr.Type())

	tr = New("/dev/ttyS1", WithPerByteDelay(-time.Second))
	assert.Equal(t, DefaultPerByteDelay, tr.perByteDelay)
}
