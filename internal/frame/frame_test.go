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

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{
			name:    "empty payload",
			payload: []byte{},
			want:    []byte{0x00, 0x00},
		},
		{
			name:    "deadbeef",
			payload: []byte{0xDE, 0xAD, 0xBE, 0xEF},
			want:    []byte{0x04, 0x00, 0xDE, 0xAD, 0xBE, 0xEF},
		},
		{
			name:    "length crosses low byte",
			payload: bytes.Repeat([]byte{0x55}, 0x0102),
			want:    append([]byte{0x02, 0x01}, bytes.Repeat([]byte{0x55}, 0x0102)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Build(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_MaxPayload(t *testing.T) {
	t.Parallel()
	payload := make([]byte, MaxPayload)
	payload[len(payload)-1] = 0xAA

	frm, err := Build(payload)
	require.NoError(t, err)
	assert.Len(t, frm, MaxFrame)
	assert.Equal(t, []byte{0xFF, 0xFF}, frm[:2])
	assert.Equal(t, byte(0xAA), frm[len(frm)-1])
}

func TestBuild_TooLarge(t *testing.T) {
	t.Parallel()
	frm, err := Build(make([]byte, MaxPayload+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Nil(t, frm)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	payload := []byte{0x01, 0x02, 0x03}
	original := append([]byte(nil), payload...)

	frm, err := Build(payload)
	require.NoError(t, err)
	frm[2] = 0xFF

	assert.Equal(t, original, payload)
}

func TestPayload(t *testing.T) {
	t.Parallel()
	tests := []struct {
		wantErr error
		name    string
		frame   []byte
		want    []byte
	}{
		{name: "empty frame body", frame: []byte{0x00, 0x00}, want: []byte{}},
		{name: "valid", frame: []byte{0x02, 0x00, 0xAB, 0xCD}, want: []byte{0xAB, 0xCD}},
		{name: "too short", frame: []byte{0x01}, wantErr: ErrShortFrame},
		{name: "prefix too large", frame: []byte{0x03, 0x00, 0xAB}, wantErr: ErrLengthMismatch},
		{name: "trailing bytes", frame: []byte{0x00, 0x00, 0xAB}, wantErr: ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Payload(tt.frame)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAck(t *testing.T) {
	t.Parallel()
	assert.True(t, IsAck([]byte("ACK")))
	assert.False(t, IsAck([]byte("NAK")))
	assert.False(t, IsAck([]byte("AC")))
	assert.False(t, IsAck([]byte("ACKK")))
	assert.False(t, IsAck([]byte{0x00, 0x00, 0x00}))
	assert.False(t, IsAck(nil))
}
