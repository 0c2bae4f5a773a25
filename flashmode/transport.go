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

package flashmode

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-caflash"
)

// Transport wraps another transport so that opening it enters flash mode
// and closing it leaves flash mode.
type Transport struct {
	caflash.Transport
	ctrl *Controller
}

// Wrap returns inner with flash mode sequencing around Open and Close.
func Wrap(inner caflash.Transport, ctrl *Controller) *Transport {
	return &Transport{Transport: inner, ctrl: ctrl}
}

// Open enters flash mode, then opens the inner transport. Flash mode is
// left again if either step fails.
func (t *Transport) Open(ctx context.Context) error {
	if err := t.ctrl.Enter(ctx); err != nil {
		_ = t.ctrl.Exit(context.Background())
		return caflash.NewDeviceOpenError(caflash.OpOpen, t.Port(), fmt.Errorf("enter flash mode: %w", err))
	}
	if err := t.Transport.Open(ctx); err != nil {
		_ = t.ctrl.Exit(context.Background())
		return err //nolint:wrapcheck // inner transport errors are already categorized
	}
	return nil
}

// Close closes the inner transport, then leaves flash mode.
func (t *Transport) Close() error {
	closeErr := t.Transport.Close()
	exitErr := t.ctrl.Exit(context.Background())
	if exitErr != nil {
		exitErr = fmt.Errorf("leave flash mode: %w", exitErr)
	}
	return errors.Join(closeErr, exitErr)
}

// Ensure Transport implements caflash.Transport
var _ caflash.Transport = (*Transport)(nil)
