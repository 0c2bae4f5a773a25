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
	"encoding/binary"
	"testing"
)

// =============================================================================
// Fuzz Tests for Frame Construction
// =============================================================================
// Run with: go test -fuzz=FuzzBuild -fuzztime=30s ./internal/frame/

// FuzzBuild checks the prefix and payload invariants for arbitrary input.
func FuzzBuild(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	f.Add([]byte("ACK"))
	f.Add(bytes.Repeat([]byte{0xFF}, 300))

	f.Fuzz(func(t *testing.T, payload []byte) {
		frm, err := Build(payload)
		if len(payload) > MaxPayload {
			if err == nil {
				t.Fatalf("expected error for %d byte payload", len(payload))
			}
			return
		}
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if len(frm) != len(payload)+PrefixSize {
			t.Fatalf("frame length = %d, want %d", len(frm), len(payload)+PrefixSize)
		}
		if got := int(binary.LittleEndian.Uint16(frm)); got != len(payload) {
			t.Fatalf("prefix = %d, want %d", got, len(payload))
		}
		body, err := Payload(frm)
		if err != nil {
			t.Fatalf("Payload() error = %v", err)
		}
		if !bytes.Equal(body, payload) {
			t.Fatal("round trip changed payload")
		}
	})
}

// FuzzPayload makes sure decoding never panics on malformed frames.
func FuzzPayload(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0x00, 0x00})
	f.Add([]byte{0xFF, 0xFF, 0x00})

	f.Fuzz(func(_ *testing.T, frm []byte) {
		_, _ = Payload(frm)
	})
}
