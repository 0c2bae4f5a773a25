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

// Package testing provides test utilities including a wire-level simulator
// of an upload target.
//
// VirtualTarget implements io.ReadWriter and behaves like a microcontroller
// waiting in flash mode: it collects one length-prefixed frame and, once the
// whole payload has arrived, queues its acknowledgement for the host to read.
// Reads with nothing queued return (0, nil), the way a timeout-driven serial
// read does.
package testing

import (
	"bytes"
	"errors"

	"github.com/ZaparooProject/go-caflash/internal/frame"
	"github.com/ZaparooProject/go-caflash/internal/syncutil"
)

// ErrInjected is returned by reads or writes when failure injection is on
var ErrInjected = errors.New("injected I/O failure")

// VirtualTarget simulates the receiving side of an upload.
type VirtualTarget struct {
	writeErr  error
	readErr   error
	response  []byte
	image     []byte
	rxBuffer  bytes.Buffer
	txBuffer  bytes.Buffer
	mu        syncutil.Mutex
	chunkSize int
	frames    int
	flashMode bool
}

// NewVirtualTarget creates a target in flash mode that answers "ACK".
func NewVirtualTarget() *VirtualTarget {
	return &VirtualTarget{
		response:  []byte(frame.Ack),
		flashMode: true,
	}
}

// Write implements io.Writer - receives frame bytes from the host.
func (v *VirtualTarget) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.writeErr != nil {
		return 0, v.writeErr
	}

	_, _ = v.rxBuffer.Write(data)
	v.processFrame()
	return len(data), nil
}

// processFrame consumes a complete frame from rxBuffer, if one is there.
func (v *VirtualTarget) processFrame() {
	buf := v.rxBuffer.Bytes()
	n, err := frame.PayloadLength(buf)
	if err != nil || len(buf) < frame.PrefixSize+n {
		return
	}

	v.image = append([]byte(nil), buf[frame.PrefixSize:frame.PrefixSize+n]...)
	v.rxBuffer.Next(frame.PrefixSize + n)
	v.frames++

	if v.flashMode {
		_, _ = v.txBuffer.Write(v.response)
	}
}

// Read implements io.Reader - returns queued response bytes to the host.
func (v *VirtualTarget) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.readErr != nil {
		return 0, v.readErr
	}
	if v.txBuffer.Len() == 0 {
		return 0, nil
	}

	limit := len(p)
	if v.chunkSize > 0 && v.chunkSize < limit {
		limit = v.chunkSize
	}
	return v.txBuffer.Read(p[:limit]) //nolint:wrapcheck // bytes.Buffer only returns io.EOF here
}

// Purge drops anything queued in either direction, like a driver buffer reset.
func (v *VirtualTarget) Purge() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rxBuffer.Reset()
	v.txBuffer.Reset()
}

// Configuration helpers

// SetResponse sets the bytes sent back after a frame. Empty means silence.
func (v *VirtualTarget) SetResponse(resp []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.response = append([]byte(nil), resp...)
}

// SetFlashMode controls whether the target answers at all.
func (v *VirtualTarget) SetFlashMode(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flashMode = enabled
}

// SetChunkSize limits how many bytes a single Read returns (0 = unlimited).
func (v *VirtualTarget) SetChunkSize(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunkSize = n
}

// SetWriteError makes every Write fail with err (nil clears it).
func (v *VirtualTarget) SetWriteError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writeErr = err
}

// SetReadError makes every Read fail with err (nil clears it).
func (v *VirtualTarget) SetReadError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readErr = err
}

// InjectNoise queues stale bytes for the host to read, as if left over
// from an earlier session.
func (v *VirtualTarget) InjectNoise(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = v.txBuffer.Write(data)
}

// Inspection helpers

// Image returns a copy of the last payload received.
func (v *VirtualTarget) Image() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.image...)
}

// FramesReceived returns how many complete frames arrived.
func (v *VirtualTarget) FramesReceived() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Pending returns the number of host bytes not yet forming a whole frame.
func (v *VirtualTarget) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rxBuffer.Len()
}
