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

// Package flashmode puts a target into its bootloader through GPIO lines
// before an upload and releases it afterwards.
//
// The usual wiring is a BOOT line held asserted while RESET is pulsed, so the
// microcontroller comes up waiting for a frame. Either line may be absent.
package flashmode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-caflash"
	"github.com/ZaparooProject/go-caflash/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Default timings
const (
	DefaultResetPulse  = 50 * time.Millisecond
	DefaultSettleDelay = 100 * time.Millisecond
)

var (
	// ErrPinNotFound is returned when a named GPIO line does not exist
	ErrPinNotFound = errors.New("gpio pin not found")
	// ErrNoPins is returned when neither a boot nor a reset line is configured
	ErrNoPins = errors.New("no flash mode pins configured")
)

// Config names the GPIO lines used to enter flash mode.
type Config struct {
	// BootPin is held asserted for the whole upload (e.g. "GPIO17")
	BootPin string
	// ResetPin is pulsed after BootPin is asserted (e.g. "GPIO27")
	ResetPin string
	// ResetPulse is how long reset stays asserted (0 = DefaultResetPulse)
	ResetPulse time.Duration
	// SettleDelay is the wait after reset before the first byte is sent
	// (0 = DefaultSettleDelay)
	SettleDelay time.Duration
	// ActiveLow asserts lines by driving them low
	ActiveLow bool
}

// Enabled reports whether any pin is configured
func (c Config) Enabled() bool {
	return c.BootPin != "" || c.ResetPin != ""
}

// Controller drives the boot and reset lines.
type Controller struct {
	boot      gpio.PinOut
	reset     gpio.PinOut
	pulse     time.Duration
	settle    time.Duration
	mu        syncutil.Mutex
	activeLow bool
	entered   bool
}

// Open initializes the host drivers and looks up the configured pins.
func Open(cfg Config) (*Controller, error) {
	if !cfg.Enabled() {
		return nil, ErrNoPins
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init: %w", err)
	}

	var boot, reset gpio.PinOut
	if cfg.BootPin != "" {
		p := gpioreg.ByName(cfg.BootPin)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrPinNotFound, cfg.BootPin)
		}
		boot = p
	}
	if cfg.ResetPin != "" {
		p := gpioreg.ByName(cfg.ResetPin)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrPinNotFound, cfg.ResetPin)
		}
		reset = p
	}
	return New(boot, reset, cfg), nil
}

// New creates a controller for already resolved pins. Either may be nil.
func New(boot, reset gpio.PinOut, cfg Config) *Controller {
	c := &Controller{
		boot:      boot,
		reset:     reset,
		pulse:     cfg.ResetPulse,
		settle:    cfg.SettleDelay,
		activeLow: cfg.ActiveLow,
	}
	if c.pulse <= 0 {
		c.pulse = DefaultResetPulse
	}
	if c.settle <= 0 {
		c.settle = DefaultSettleDelay
	}
	return c
}

func (c *Controller) asserted() gpio.Level {
	if c.activeLow {
		return gpio.Low
	}
	return gpio.High
}

func (c *Controller) released() gpio.Level {
	return !c.asserted()
}

// Enter asserts boot, pulses reset and waits for the target to settle.
func (c *Controller) Enter(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.boot != nil {
		if err := c.boot.Out(c.asserted()); err != nil {
			return fmt.Errorf("assert boot %s: %w", c.boot, err)
		}
	}
	c.entered = true
	caflash.Debugf("flashmode: boot asserted")

	if err := c.pulseReset(ctx); err != nil {
		return err
	}
	return caflash.SleepContext(ctx, c.settle)
}

// Exit releases boot and pulses reset so the new firmware starts.
// It does nothing unless Enter was called.
func (c *Controller) Exit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.entered {
		return nil
	}
	c.entered = false

	if c.boot != nil {
		if err := c.boot.Out(c.released()); err != nil {
			return fmt.Errorf("release boot %s: %w", c.boot, err)
		}
	}
	caflash.Debugf("flashmode: boot released")
	return c.pulseReset(ctx)
}

func (c *Controller) pulseReset(ctx context.Context) error {
	if c.reset == nil {
		return nil
	}
	if err := c.reset.Out(c.asserted()); err != nil {
		return fmt.Errorf("assert reset %s: %w", c.reset, err)
	}
	sleepErr := caflash.SleepContext(ctx, c.pulse)
	if err := c.reset.Out(c.released()); err != nil {
		return fmt.Errorf("release reset %s: %w", c.reset, err)
	}
	return sleepErr
}
