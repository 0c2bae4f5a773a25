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

package caflash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firmware.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadImage(t *testing.T) {
	t.Parallel()

	image, err := LoadImage(writeImage(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, image)
}

func TestLoadImage_Empty(t *testing.T) {
	t.Parallel()

	image, err := LoadImage(writeImage(t, nil))
	require.NoError(t, err)
	assert.Empty(t, image)
}

func TestLoadImage_MaxSize(t *testing.T) {
	t.Parallel()

	image, err := LoadImage(writeImage(t, make([]byte, MaxImageSize)))
	require.NoError(t, err)
	assert.Len(t, image, MaxImageSize)
}

func TestLoadImage_TooLarge(t *testing.T) {
	t.Parallel()

	_, err := LoadImage(writeImage(t, make([]byte, MaxImageSize+1)))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.NotErrorIs(t, err, ErrFileAccess)
}

func TestLoadImage_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadImage(filepath.Join(t.TempDir(), "nope.bin"))
	require.ErrorIs(t, err, ErrFileAccess)
	assert.Contains(t, err.Error(), "nope.bin")
	assert.False(t, IsDeviceAbsent(err))
	assert.Empty(t, Hint(err))
}

func TestLoadImage_Directory(t *testing.T) {
	t.Parallel()

	_, err := LoadImage(t.TempDir())
	require.ErrorIs(t, err, ErrFileAccess)
}

func TestReadImage_TooLarge(t *testing.T) {
	t.Parallel()

	_, err := ReadImage(bytes.NewReader(make([]byte, MaxImageSize+10)))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestHexDump(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "de ad be ef ", HexDump([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	assert.Empty(t, HexDump(nil))
}
