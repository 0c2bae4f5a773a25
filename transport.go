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

	"github.com/ZaparooProject/go-caflash/internal/syncutil"
)

// Transport is one physical or virtual serial link to the target.
// It is implemented by the USB bridge and native serial backends.
//
// A transport is used for exactly one upload: Open, Configure, Send,
// AwaitAck, then Close. Close must be safe to call more than once.
type Transport interface {
	// Open acquires the device
	Open(ctx context.Context) error

	// Configure applies the link parameters
	Configure(link LinkConfig) error

	// Send writes the whole frame
	Send(ctx context.Context, frame []byte) error

	// AwaitAck reads up to AckSize bytes of acknowledgement. An empty
	// read must be reported as ErrNoAcknowledge or ErrAckTimeout.
	AwaitAck(ctx context.Context) ([]byte, error)

	// Close releases the device
	Close() error

	// Port returns the device identifier for diagnostics
	Port() string

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportBridge is a USB-to-serial bridge found by vendor/product ID.
	TransportBridge TransportType = "bridge"
	// TransportTTY is a native serial device driven through termios.
	TransportTTY TransportType = "tty"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// ParseTransportType converts a user supplied name to a TransportType.
func ParseTransportType(name string) (TransportType, error) {
	switch TransportType(name) {
	case TransportBridge, TransportTTY:
		return TransportType(name), nil
	case "usb", "ftdi":
		return TransportBridge, nil
	case "serial":
		return TransportTTY, nil
	default:
		return "", fmt.Errorf("unsupported transport type: %q", name)
	}
}

// Stage names used as TransportError.Op and for injected mock errors
const (
	OpOpen      = "open"
	OpConfigure = "configure"
	OpSend      = "send"
	OpAwaitAck  = "await_ack"
	OpClose     = "close"
)

// MockTransport provides a scripted Transport for testing
type MockTransport struct {
	errs       map[string]error
	calls      map[string]int
	ack        []byte
	sent       []byte
	link       LinkConfig
	delay      time.Duration
	port       string
	mu         syncutil.Mutex
	opened     bool
	closeCount int
}

// NewMockTransport creates a mock transport that acknowledges with "ACK"
func NewMockTransport() *MockTransport {
	return &MockTransport{
		errs:  make(map[string]error),
		calls: make(map[string]int),
		ack:   []byte("ACK"),
		port:  "mock0",
	}
}

// Open implements Transport
func (m *MockTransport) Open(ctx context.Context) error {
	if err := m.enter(ctx, OpOpen); err != nil {
		return err
	}
	m.mu.Lock()
	m.opened = true
	m.mu.Unlock()
	return nil
}

// Configure implements Transport
func (m *MockTransport) Configure(link LinkConfig) error {
	if err := m.enter(context.Background(), OpConfigure); err != nil {
		return err
	}
	m.mu.Lock()
	m.link = link
	m.mu.Unlock()
	return nil
}

// Send implements Transport
func (m *MockTransport) Send(ctx context.Context, frm []byte) error {
	if err := m.enter(ctx, OpSend); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append([]byte(nil), frm...)
	m.mu.Unlock()
	return nil
}

// AwaitAck implements Transport
func (m *MockTransport) AwaitAck(ctx context.Context) ([]byte, error) {
	if err := m.enter(ctx, OpAwaitAck); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ack) == 0 {
		return nil, NewNoAckError(OpAwaitAck, m.port)
	}
	return append([]byte(nil), m.ack...), nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.calls[OpClose]++
	m.closeCount++
	m.opened = false
	err := m.errs[OpClose]
	m.mu.Unlock()
	return err
}

// Port implements Transport
func (m *MockTransport) Port() string {
	return m.port
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// enter counts the call, applies the configured delay and returns any
// injected error for op.
func (m *MockTransport) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	delay := m.delay
	err := m.errs[op]
	m.mu.Unlock()

	if delay > 0 {
		if sleepErr := sleepContext(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Test helper methods

// SetAck configures the bytes returned by AwaitAck. Empty means no response.
func (m *MockTransport) SetAck(ack []byte) {
	m.mu.Lock()
	m.ack = append([]byte(nil), ack...)
	m.mu.Unlock()
}

// SetError configures an error to be returned for a stage (OpOpen, OpSend...)
func (m *MockTransport) SetError(op string, err error) {
	m.mu.Lock()
	m.errs[op] = err
	m.mu.Unlock()
}

// SetDelay configures a delay applied to every stage
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a stage was called
func (m *MockTransport) GetCallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// CloseCount returns how many times Close was called
func (m *MockTransport) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// Sent returns a copy of the last frame passed to Send
func (m *MockTransport) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.sent...)
}

// Link returns the link configuration passed to Configure
func (m *MockTransport) Link() LinkConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link
}

// IsOpen reports whether Open succeeded and Close has not been called since
func (m *MockTransport) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Ensure MockTransport implements Transport
var _ Transport = (*MockTransport)(nil)
