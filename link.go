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
	"context"
	"fmt"
	"time"
)

// Parity selects the parity bit of the serial line
type Parity int

const (
	// ParityNone disables the parity bit
	ParityNone Parity = iota
	// ParityOdd enables odd parity
	ParityOdd
	// ParityEven enables even parity
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// StopBits selects the number of stop bits
type StopBits int

const (
	// StopBitsOne is one stop bit
	StopBitsOne StopBits = 1
	// StopBitsTwo is two stop bits
	StopBitsTwo StopBits = 2
)

// Link parameters shared by both transports
const (
	DefaultBaudRate     = 4800
	DefaultDataBits     = 8
	DefaultReadTimeout  = time.Second // 10 deciseconds
	DefaultMinReadBytes = 0
)

// LinkConfig holds the serial line parameters applied after opening a device.
type LinkConfig struct {
	// ReadTimeout bounds a single acknowledgement read
	ReadTimeout time.Duration
	// BaudRate in bits per second
	BaudRate int
	// DataBits per character
	DataBits int
	// MinReadBytes is the minimum byte count a read waits for (VMIN).
	// Zero makes reads purely timeout driven.
	MinReadBytes int
	Parity       Parity
	StopBits     StopBits
	// FlowControl enables RTS/CTS hardware flow control
	FlowControl bool
	// RawMode disables canonical processing, echo and signal characters
	RawMode bool
}

// DefaultLinkConfig returns the fixed upload link: 4800 8N1, no flow
// control, raw mode, reads that return after one second or the first byte.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		BaudRate:     DefaultBaudRate,
		DataBits:     DefaultDataBits,
		Parity:       ParityNone,
		StopBits:     StopBitsOne,
		FlowControl:  false,
		RawMode:      true,
		ReadTimeout:  DefaultReadTimeout,
		MinReadBytes: DefaultMinReadBytes,
	}
}

// Validate checks the configuration is something the transports can apply.
func (c LinkConfig) Validate() error {
	switch {
	case c.BaudRate <= 0:
		return fmt.Errorf("%w: invalid baud rate %d", ErrConfiguration, c.BaudRate)
	case c.DataBits < 5 || c.DataBits > 8:
		return fmt.Errorf("%w: invalid data bits %d", ErrConfiguration, c.DataBits)
	case c.StopBits != StopBitsOne && c.StopBits != StopBitsTwo:
		return fmt.Errorf("%w: invalid stop bits %d", ErrConfiguration, c.StopBits)
	case c.Parity < ParityNone || c.Parity > ParityEven:
		return fmt.Errorf("%w: invalid parity %d", ErrConfiguration, c.Parity)
	case c.ReadTimeout < 0:
		return fmt.Errorf("%w: negative read timeout", ErrConfiguration)
	case c.MinReadBytes < 0 || c.MinReadBytes > 255:
		return fmt.Errorf("%w: invalid minimum read bytes %d", ErrConfiguration, c.MinReadBytes)
	}
	return nil
}

// ReadTimeoutDeciseconds converts ReadTimeout to termios VTIME units,
// clamped to the 0..255 range the field can hold.
func (c LinkConfig) ReadTimeoutDeciseconds() uint8 {
	ds := c.ReadTimeout / (100 * time.Millisecond)
	if ds > 255 {
		return 255
	}
	if ds < 0 {
		return 0
	}
	return uint8(ds)
}

func (c LinkConfig) String() string {
	return fmt.Sprintf("%d baud, %d data bits, parity %s, %d stop bit(s)",
		c.BaudRate, c.DataBits, c.Parity, c.StopBits)
}

// SleepContext waits for d or until ctx is done, whichever is first.
func SleepContext(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
