//go:build linux || darwin

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

package tty

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-caflash"
	"golang.org/x/sys/unix"
)

// savedState holds the line settings found at open time.
type savedState struct {
	termios unix.Termios
}

// openDevice opens path with O_NONBLOCK so a missing carrier cannot hang
// the open, then clears O_NONBLOCK again.
func openDevice(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open: %w", err)
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("clear O_NONBLOCK: %w", err)
	}
	return fd, nil
}

func closeDevice(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func saveState(fd int) (*savedState, error) {
	tio, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}
	return &savedState{termios: *tio}, nil
}

func restoreState(fd int, s *savedState) error {
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &s.termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// applyLink rewrites the termios settings of fd to match link.
func applyLink(fd int, link caflash.LinkConfig) error {
	tio, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	if link.RawMode {
		makeRaw(tio)
	}

	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS
	tio.Cflag |= unix.CREAD | unix.CLOCAL

	switch link.DataBits {
	case 5:
		tio.Cflag |= unix.CS5
	case 6:
		tio.Cflag |= unix.CS6
	case 7:
		tio.Cflag |= unix.CS7
	default:
		tio.Cflag |= unix.CS8
	}

	switch link.Parity {
	case caflash.ParityOdd:
		tio.Cflag |= unix.PARENB | unix.PARODD
	case caflash.ParityEven:
		tio.Cflag |= unix.PARENB
	case caflash.ParityNone:
	}

	if link.StopBits == caflash.StopBitsTwo {
		tio.Cflag |= unix.CSTOPB
	}
	if link.FlowControl {
		tio.Cflag |= unix.CRTSCTS
	}

	tio.Cc[unix.VMIN] = uint8(link.MinReadBytes) //nolint:gosec // validated to 0..255
	tio.Cc[unix.VTIME] = link.ReadTimeoutDeciseconds()

	if err := setSpeed(tio, link.BaudRate); err != nil {
		return err
	}

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, tio); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// makeRaw is cfmakeraw(3).
func makeRaw(tio *unix.Termios) {
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
}

func writeAll(fd int, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := unix.Write(fd, data[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("write: %w", err)
		}
		if n == 0 {
			return written, errors.New("write: device accepted no bytes")
		}
		written += n
	}
	return written, nil
}

// readOnce returns what a single read yields. Zero bytes with a nil error
// means VTIME expired.
func readOnce(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read: %w", err)
		}
		return n, nil
	}
}
