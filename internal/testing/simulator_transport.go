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
	"context"
	"fmt"

	caflash "github.com/ZaparooProject/go-caflash"
	"github.com/ZaparooProject/go-caflash/internal/frame"
)

// SimulatorTransport wraps VirtualTarget and implements caflash.Transport.
// This lets upload sessions and the CLI run end to end without hardware.
type SimulatorTransport struct {
	sim        *VirtualTarget
	openErr    error
	link       caflash.LinkConfig
	port       string
	opens      int
	closes     int
	opened     bool
	configured bool
}

// NewSimulatorTransport creates a new transport backed by sim
func NewSimulatorTransport(sim *VirtualTarget) *SimulatorTransport {
	return &SimulatorTransport{
		sim:  sim,
		port: "sim0",
	}
}

// SetOpenError makes Open fail with err
func (t *SimulatorTransport) SetOpenError(err error) {
	t.openErr = err
}

// Open implements caflash.Transport
func (t *SimulatorTransport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.opens++
	if t.openErr != nil {
		return t.openErr
	}
	t.opened = true
	return nil
}

// Configure implements caflash.Transport
func (t *SimulatorTransport) Configure(link caflash.LinkConfig) error {
	if !t.opened {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.port, caflash.ErrTransportNotOpen)
	}
	if err := link.Validate(); err != nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.port, err)
	}
	t.link = link
	t.configured = true
	return nil
}

// Send implements caflash.Transport
func (t *SimulatorTransport) Send(ctx context.Context, frm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.configured {
		return caflash.NewTransportWriteError(caflash.OpSend, t.port, caflash.ErrTransportNotOpen)
	}
	n, err := t.sim.Write(frm)
	if err != nil {
		return caflash.NewTransportWriteError(caflash.OpSend, t.port, err)
	}
	if n != len(frm) {
		return caflash.NewTransportWriteError(caflash.OpSend, t.port,
			fmt.Errorf("short write: %d of %d bytes", n, len(frm)))
	}
	return nil
}

// AwaitAck implements caflash.Transport with a single read of up to
// AckSize bytes.
func (t *SimulatorTransport) AwaitAck(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ack := make([]byte, frame.AckSize)
	n, err := t.sim.Read(ack)
	if err != nil {
		return nil, caflash.NewTransportReadError(caflash.OpAwaitAck, t.port, err)
	}
	if n == 0 {
		return nil, caflash.NewAckTimeoutError(caflash.OpAwaitAck, t.port)
	}
	return ack[:n], nil
}

// Close implements caflash.Transport
func (t *SimulatorTransport) Close() error {
	t.closes++
	t.opened = false
	t.configured = false
	return nil
}

// Port implements caflash.Transport
func (t *SimulatorTransport) Port() string {
	return t.port
}

// Type implements caflash.Transport
func (*SimulatorTransport) Type() caflash.TransportType {
	return caflash.TransportMock
}

// Opens returns how many times Open was called
func (t *SimulatorTransport) Opens() int {
	return t.opens
}

// Closes returns how many times Close was called
func (t *SimulatorTransport) Closes() int {
	return t.closes
}

// Link returns the last applied link configuration
func (t *SimulatorTransport) Link() caflash.LinkConfig {
	return t.link
}

// Ensure SimulatorTransport implements caflash.Transport
var _ caflash.Transport = (*SimulatorTransport)(nil)
