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

// Package frame builds and decodes the length-prefixed upload frame.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned when a payload does not fit the 16-bit length prefix
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrShortFrame is returned when a frame is too short to hold its prefix
	ErrShortFrame = errors.New("frame shorter than length prefix")
	// ErrLengthMismatch is returned when the prefix disagrees with the payload size
	ErrLengthMismatch = errors.New("frame length prefix mismatch")
)

// Build returns a new frame holding payload behind its little-endian length.
// The payload slice is not modified or retained.
func Build(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	frm := make([]byte, PrefixSize+len(payload))
	binary.LittleEndian.PutUint16(frm, uint16(len(payload))) //nolint:gosec // bounded above
	copy(frm[PrefixSize:], payload)
	return frm, nil
}

// PayloadLength decodes the length prefix of frm.
func PayloadLength(frm []byte) (int, error) {
	if len(frm) < PrefixSize {
		return 0, ErrShortFrame
	}
	return int(binary.LittleEndian.Uint16(frm)), nil
}

// Payload returns the payload portion of frm after checking the prefix
// matches the number of bytes that follow it.
func Payload(frm []byte) ([]byte, error) {
	n, err := PayloadLength(frm)
	if err != nil {
		return nil, err
	}
	if got := len(frm) - PrefixSize; got != n {
		return nil, fmt.Errorf("%w: prefix says %d, have %d", ErrLengthMismatch, n, got)
	}
	return frm[PrefixSize:], nil
}

// IsAck reports whether buf is exactly the 3-byte ASCII acknowledgement.
func IsAck(buf []byte) bool {
	return len(buf) == AckSize && bytes.Equal(buf, []byte(Ack))
}
