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

// Package bridge implements the upload transport for a USB-to-serial bridge
// chip located by its USB vendor and product IDs.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-caflash"
	"github.com/ZaparooProject/go-caflash/internal/syncutil"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// FTDI FT232 identifiers
const (
	DefaultVID = 0x0403
	DefaultPID = 0x6001
)

// DefaultSettleDelay is how long the target gets to answer before the ack read
const DefaultSettleDelay = 10 * time.Millisecond

type (
	openFunc func(name string, mode *serial.Mode) (serial.Port, error)
	listFunc func() ([]*enumerator.PortDetails, error)
)

// Transport implements caflash.Transport over a USB bridge serial port.
type Transport struct {
	port        serial.Port
	openPort    openFunc
	listPorts   listFunc
	portName    string
	vid         string
	pid         string
	settleDelay time.Duration
	mu          syncutil.Mutex
	closed      bool
}

// Option configures a bridge Transport
type Option func(*Transport)

// WithVIDPID selects the bridge by USB vendor and product ID.
func WithVIDPID(vid, pid uint16) Option {
	return func(t *Transport) {
		t.vid = FormatID(vid)
		t.pid = FormatID(pid)
	}
}

// WithPortName skips enumeration and opens name directly.
func WithPortName(name string) Option {
	return func(t *Transport) {
		t.portName = name
	}
}

// WithSettleDelay sets the pause between the write and the ack read.
func WithSettleDelay(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.settleDelay = d
		}
	}
}

// New creates a bridge transport. Nothing is opened until Open.
func New(opts ...Option) *Transport {
	t := &Transport{
		openPort:    serial.Open,
		listPorts:   enumerator.GetDetailedPortsList,
		vid:         FormatID(DefaultVID),
		pid:         FormatID(DefaultPID),
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FormatID renders a USB ID the way the enumerator reports it.
func FormatID(id uint16) string {
	return fmt.Sprintf("%04X", id)
}

// VIDPID returns the "VID:PID" pair this transport looks for.
func (t *Transport) VIDPID() string {
	return t.vid + ":" + t.pid
}

// Open finds the bridge, opens it and purges stale bytes in both directions.
func (t *Transport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return nil
	}

	name := t.portName
	if name == "" {
		found, err := t.findPort()
		if err != nil {
			return err
		}
		name = found
	}

	port, err := t.openPort(name, toMode(caflash.DefaultLinkConfig()))
	if err != nil {
		return classifyOpenError(name, err)
	}
	t.port = port
	t.portName = name
	t.closed = false
	caflash.Debugf("bridge: opened %s (%s)", name, t.VIDPID())

	if err := t.purge(); err != nil {
		_ = t.port.Close()
		t.port = nil
		return err
	}
	return nil
}

// findPort returns the first USB serial port whose IDs match.
func (t *Transport) findPort() (string, error) {
	ports, err := t.listPorts()
	if err != nil {
		return "", caflash.NewDeviceOpenError(caflash.OpOpen, t.VIDPID(),
			fmt.Errorf("enumerating serial ports: %w", err))
	}
	for _, p := range ports {
		if MatchesIDs(p, t.vid, t.pid) {
			return p.Name, nil
		}
	}
	return "", caflash.NewDeviceNotFoundError(caflash.OpOpen, t.VIDPID())
}

// MatchesIDs reports whether a USB port carries the given vendor and product IDs.
func MatchesIDs(p *enumerator.PortDetails, vid, pid string) bool {
	return p != nil && p.IsUSB &&
		strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid)
}

func classifyOpenError(name string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound {
		return caflash.NewTransportError(caflash.OpOpen, name, caflash.ErrDeviceNotFound, err)
	}
	return caflash.NewDeviceOpenError(caflash.OpOpen, name, err)
}

// purge discards anything queued in either direction so earlier noise
// cannot be mistaken for an acknowledgement. Callers hold mu.
func (t *Transport) purge() error {
	if err := t.port.ResetInputBuffer(); err != nil {
		return caflash.NewConfigurationError("purge", t.portName, err)
	}
	if err := t.port.ResetOutputBuffer(); err != nil {
		return caflash.NewConfigurationError("purge", t.portName, err)
	}
	return nil
}

// Configure applies baud rate, framing and read timeout.
func (t *Transport) Configure(link caflash.LinkConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.portName, caflash.ErrTransportNotOpen)
	}
	if err := link.Validate(); err != nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.portName, err)
	}
	if link.FlowControl {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.portName,
			errors.New("hardware flow control is not supported by the bridge driver"))
	}

	if err := t.port.SetMode(toMode(link)); err != nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.portName, err)
	}
	if err := t.port.SetReadTimeout(link.ReadTimeout); err != nil {
		return caflash.NewConfigurationError(caflash.OpConfigure, t.portName, err)
	}
	caflash.Debugf("bridge: %s configured: %s", t.portName, link)
	return nil
}

func toMode(link caflash.LinkConfig) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: link.BaudRate,
		DataBits: link.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch link.Parity {
	case caflash.ParityOdd:
		mode.Parity = serial.OddParity
	case caflash.ParityEven:
		mode.Parity = serial.EvenParity
	case caflash.ParityNone:
	}
	if link.StopBits == caflash.StopBitsTwo {
		mode.StopBits = serial.TwoStopBits
	}
	return mode
}

// Send writes the whole frame in one call and waits for it to leave the port.
func (t *Transport) Send(ctx context.Context, frm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return caflash.NewTransportWriteError(caflash.OpSend, t.portName, caflash.ErrTransportNotOpen)
	}

	n, err := t.port.Write(frm)
	if err != nil {
		return caflash.NewTransportWriteError(caflash.OpSend, t.portName, err)
	} else if n != len(frm) {
		return caflash.NewTransportWriteError(caflash.OpSend, t.portName,
			fmt.Errorf("short write: %d of %d bytes", n, len(frm)))
	}

	if err := t.port.Drain(); err != nil {
		return caflash.NewTransportWriteError(caflash.OpSend, t.portName, fmt.Errorf("drain: %w", err))
	}
	caflash.Debugf("bridge: wrote %d bytes to %s", n, t.portName)
	return nil
}

// AwaitAck waits the settle delay, then reads until AckSize bytes arrive
// or a read times out empty.
func (t *Transport) AwaitAck(ctx context.Context) ([]byte, error) {
	if err := caflash.SleepContext(ctx, t.settleDelay); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, caflash.NewTransportReadError(caflash.OpAwaitAck, t.portName, caflash.ErrTransportNotOpen)
	}

	ack := make([]byte, caflash.AckSize)
	got := 0
	for got < len(ack) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := t.port.Read(ack[got:])
		if err != nil {
			return nil, caflash.NewTransportReadError(caflash.OpAwaitAck, t.portName, err)
		}
		if n == 0 {
			break
		}
		got += n
	}

	if got == 0 {
		return nil, caflash.NewNoAckError(caflash.OpAwaitAck, t.portName)
	}
	caflash.Debugf("bridge: read %d ack bytes from %s", got, t.portName)
	return ack[:got], nil
}

// Close releases the port. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil || t.closed {
		return nil
	}
	t.closed = true
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("bridge close failed: %w", err)
	}
	return nil
}

// Port returns the opened port name, or the VID:PID before Open
func (t *Transport) Port() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.portName != "" {
		return t.portName
	}
	return t.VIDPID()
}

// Type returns the transport type
func (*Transport) Type() caflash.TransportType {
	return caflash.TransportBridge
}

// Ensure Transport implements caflash.Transport
var _ caflash.Transport = (*Transport)(nil)
