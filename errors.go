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
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/ZaparooProject/go-caflash/internal/frame"
)

// Error categories, one per stage of an upload
var (
	// Image errors
	ErrFileAccess      = errors.New("firmware image cannot be read")
	ErrPayloadTooLarge = frame.ErrPayloadTooLarge

	// Link errors
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceOpen          = errors.New("device open failed")
	ErrConfiguration       = errors.New("link configuration rejected")
	ErrTransportNotOpen    = errors.New("transport is not open")
	ErrTransportClosed     = errors.New("transport is closed")
	ErrUnsupportedPlatform = errors.New("platform not supported")

	// Transfer errors
	ErrTransportWrite = errors.New("transport write failed")
	ErrTransportRead  = errors.New("transport read failed")

	// Acknowledgement errors
	ErrNoAcknowledge    = errors.New("no acknowledge received")
	ErrAckTimeout       = errors.New("acknowledge timed out")
	ErrAckNotRecognized = errors.New("ack not recognized")
)

// User hints for the two most common failure causes
const (
	HintDeviceAbsent = "is the power on and the usb plugged in?"
	HintFlashMode    = "are you in flash mode?"
)

// TransportError wraps transport-level errors with the failing operation and port
type TransportError struct {
	Err  error  // Underlying error
	Op   string // Operation that failed
	Port string // Port or device identifier
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AckError reports a response that was read successfully but is not "ACK".
type AckError struct {
	Got []byte
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%v: got %s %q", ErrAckNotRecognized, formatHexBytes(e.Got), e.Got)
}

func (*AckError) Unwrap() error {
	return ErrAckNotRecognized
}

// NewTransportError creates a transport error. Cause, when non-nil, is kept
// in the chain next to the category sentinel so both match errors.Is.
func NewTransportError(op, port string, category, cause error) *TransportError {
	err := category
	if cause != nil {
		err = fmt.Errorf("%w: %w", category, cause)
	}
	return &TransportError{Op: op, Port: port, Err: err}
}

// NewDeviceNotFoundError creates a "device not found" error
func NewDeviceNotFoundError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDeviceNotFound, nil)
}

// NewDeviceOpenError creates a device open error
func NewDeviceOpenError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, ErrDeviceOpen, cause)
}

// NewConfigurationError creates a link configuration error
func NewConfigurationError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, ErrConfiguration, cause)
}

// NewTransportWriteError creates a write error
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, cause)
}

// NewTransportReadError creates a read error
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, cause)
}

// NewNoAckError creates a "no acknowledge received" error
func NewNoAckError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoAcknowledge, nil)
}

// NewAckTimeoutError creates an acknowledge timeout error
func NewAckTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrAckTimeout, nil)
}

// IsDeviceAbsent reports whether err means the target link could not be
// acquired, which usually means the device is unplugged or unpowered.
func IsDeviceAbsent(err error) bool {
	if err == nil || errors.Is(err, ErrFileAccess) {
		return false
	}
	if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrDeviceOpen) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist) || isDeviceGoneError(err)
}

// IsNoAck reports whether the device returned nothing within the read window.
func IsNoAck(err error) bool {
	return errors.Is(err, ErrNoAcknowledge) || errors.Is(err, ErrAckTimeout)
}

// isDeviceGoneError checks for OS-level errors raised when a USB device
// disappears mid-operation.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}

// Hint returns the contextual user hint for err, or "" when none applies.
func Hint(err error) string {
	switch {
	case IsDeviceAbsent(err):
		return HintDeviceAbsent
	case IsNoAck(err):
		return HintFlashMode
	default:
		return ""
	}
}
