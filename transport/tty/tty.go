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

// Package tty implements the upload transport for a native serial device
// node driven through termios.
//
// Reads go through the raw file descriptor rather than os.File so that a
// VTIME expiry with no data surfaces as a zero-length read instead of io.EOF.
package tty

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-caflash"
	"github.com/ZaparooProject/go-caflash/internal/frame"
	"github.com/ZaparooProject/go-caflash/internal/syncutil"
)

// DefaultPerByteDelay is the drain allowance per payload byte after a write.
const DefaultPerByteDelay = 100 * time.Microsecond

// Transport implements caflash.Transport over a serial device node.
type Transport struct {
	saved        *savedState
	path         string
	perByteDelay time.Duration
	fd           int
	mu           syncutil.Mutex
	open         bool
}

// Option configures a tty Transport
type Option func(*Transport)

// WithPerByteDelay sets the post-write wait per payload byte.
func WithPerByteDelay(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.perByteDelay = d
		}
	}
}

// New creates a transport for the device at path. Nothing is opened until Open.
func New(path string, opts ...Option) *Transport {
	t := &Transport{
		path:         path,
		perByteDelay: DefaultPerByteDelay,
		fd:           -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open opens the device without waiting for carrier, then switches the
// descriptor back to blocking I/O.
func (t *Transport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return nil
	}

	fd, err := openDevice(t.path)
	if err != nil {
		return caflash.NewDeviceOpenError(caflash.OpOpen, t.path, err)
	}

	saved, err := saveState(fd)
	if err != nil {
		_ = closeDevice(fd)
		return caflash.NewConfigurationError(caflash.OpOpen, t.path, err)
	}

	t.fd = fd
	t.saved = saved
	t.open = true
	caflash.Debugf("tty: opened %s (fd %d)", t.path, fd)
	return nil
}

// Configure applies the line parameters. With RawMode set the line is put
// in raw mode first.
func (t *Transport) Configure(link caflash.LinkConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.path, caflash.ErrTransportNotOpen)
	}
	if err := link.Validate(); err != nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.path, err)
	}
	if err := applyLink(t.fd, link); err != nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.path, err)
	}
	caflash.Debugf("tty: %s configured: %s, vmin=%d vtime=%d",
		t.path, link, link.MinReadBytes, link.ReadTimeoutDeciseconds())
	return nil
}

// Send writes the frame and then waits long enough for the payload to
// leave the line.
func (t *Transport) Send(ctx context.Context, frm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return caflash.NewTransportWriteError(caflash.OpSend, t.path, caflash.ErrTransportNotOpen)
	}
	n, err := writeAll(t.fd, frm)
	t.mu.Unlock()

	if err != nil {
		return caflash.NewTransportWriteError(caflash.OpSend, t.path,
			fmt.Errorf("wrote %d of %d bytes: %w", n, len(frm), err))
	}
	caflash.Debugf("tty: wrote %d bytes to %s", n, t.path)

	return caflash.SleepContext(ctx, t.drainDelay(len(frm)))
}

// drainDelay covers the payload bytes only, not the length prefix.
func (t *Transport) drainDelay(frameLen int) time.Duration {
	payload := frameLen - frame.PrefixSize
	if payload < 0 {
		payload = 0
	}
	return time.Duration(payload) * t.perByteDelay
}

// AwaitAck performs one read of up to AckSize bytes. The read returns after
// VTIME with whatever arrived.
func (t *Transport) AwaitAck(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil, caflash.NewTransportReadError(caflash.OpAwaitAck, t.path, caflash.ErrTransportNotOpen)
	}

	buf := make([]byte, caflash.AckSize)
	n, err := readOnce(t.fd, buf)
	if err != nil {
		return nil, caflash.NewTransportReadError(caflash.OpAwaitAck, t.path, err)
	}
	if n == 0 {
		return nil, caflash.NewAckTimeoutError(caflash.OpAwaitAck, t.path)
	}
	caflash.Debugf("tty: read %d ack bytes from %s", n, t.path)
	return buf[:n], nil
}

// Close restores the original line settings and closes the descriptor.
// It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false

	if t.saved != nil {
		if err := restoreState(t.fd, t.saved); err != nil {
			caflash.Debugf("tty: restoring settings on %s: %v", t.path, err)
		}
		t.saved = nil
	}

	err := closeDevice(t.fd)
	t.fd = -1
	if err != nil {
		return fmt.Errorf("tty close failed: %w", err)
	}
	return nil
}

// Port returns the device path
func (t *Transport) Port() string {
	return t.path
}

// Type returns the transport type
func (*Transport) Type() caflash.TransportType {
	return caflash.TransportTTY
}

// Ensure Transport implements caflash.Transport
var _ caflash.Transport = (*Transport)(nil)
