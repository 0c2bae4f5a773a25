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
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadImage reads a firmware image from path. Images larger than
// MaxImageSize are rejected with ErrPayloadTooLarge rather than truncated.
func LoadImage(path string) ([]byte, error) {
	file, err := os.Open(path) //nolint:gosec // path is the user's firmware file
	if err != nil {
		return nil, fmt.Errorf("%w: opening file %s failed: %w", ErrFileAccess, path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrFileAccess, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileAccess, path)
	}
	if info.Mode().IsRegular() && info.Size() > MaxImageSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			ErrPayloadTooLarge, path, info.Size(), MaxImageSize)
	}

	image, err := ReadImage(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return image, nil
}

// ReadImage reads at most MaxImageSize bytes from r. Input that is longer
// fails with ErrPayloadTooLarge.
func ReadImage(r io.Reader) ([]byte, error) {
	image, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	if len(image) > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrPayloadTooLarge, MaxImageSize)
	}
	return image, nil
}

// HexDump formats every byte of data as lowercase hex followed by a space,
// the layout printed before an upload.
func HexDump(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for _, b := range data {
		_, _ = fmt.Fprintf(&sb, "%02x ", b)
	}
	return sb.String()
}
