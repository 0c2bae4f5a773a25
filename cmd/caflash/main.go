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

// Command caflash uploads a firmware image to a target device over a serial
// link and waits for the device to acknowledge it.
//
//	caflash firmware.bin                 # USB bridge found by VID:PID
//	caflash firmware.bin /dev/ttyS1      # native serial device
//	caflash -list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	caflash "github.com/ZaparooProject/go-caflash"
	"github.com/ZaparooProject/go-caflash/detection"
	_ "github.com/ZaparooProject/go-caflash/detection/serial"
	"github.com/ZaparooProject/go-caflash/flashmode"
	"github.com/ZaparooProject/go-caflash/transport/bridge"
	"github.com/ZaparooProject/go-caflash/transport/tty"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// transportFactory builds the link for a resolved configuration
type transportFactory func(cfg *config) (caflash.Transport, error)

type detectFunc func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)

// app carries the process I/O and the pieces tests replace
type app struct {
	stdout       io.Writer
	stderr       io.Writer
	newTransport transportFactory
	detect       detectFunc
}

func newApp() *app {
	return &app{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		newTransport: newTransport,
		detect:       detection.DetectAll,
	}
}

// newTransport returns the bridge or tty transport, wrapped in flash mode
// control when GPIO pins are configured.
func newTransport(cfg *config) (caflash.Transport, error) {
	var t caflash.Transport
	switch cfg.transport {
	case caflash.TransportBridge:
		opts := []bridge.Option{bridge.WithVIDPID(cfg.vid, cfg.pid)}
		if cfg.device != "" {
			opts = append(opts, bridge.WithPortName(cfg.device))
		}
		t = bridge.New(opts...)
	case caflash.TransportTTY:
		t = tty.New(cfg.device)
	case caflash.TransportMock:
		return nil, fmt.Errorf("transport %q is only available in tests", cfg.transport)
	default:
		return nil, fmt.Errorf("unsupported transport type: %q", cfg.transport)
	}

	if !cfg.flash.Enabled() {
		return t, nil
	}
	ctrl, err := flashmode.Open(cfg.flash)
	if err != nil {
		return nil, fmt.Errorf("flash mode: %w", err)
	}
	return flashmode.Wrap(t, ctrl), nil
}

// upload loads the image and runs one upload session.
func (a *app) upload(ctx context.Context, cfg *config) error {
	image, err := caflash.LoadImage(cfg.imagePath)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.stdout, "program: %s\n", caflash.HexDump(image))
	_, _ = fmt.Fprintf(a.stdout, "length: %d\n", len(image))

	t, err := a.newTransport(cfg)
	if err != nil {
		return err
	}

	up := caflash.NewUploader(t, caflash.WithStateCallback(func(s caflash.State) {
		switch s {
		case caflash.StateOpened:
			_, _ = fmt.Fprintf(a.stdout, "opened %s\n", t.Port())
		case caflash.StateConfigured:
			_, _ = fmt.Fprintln(a.stdout, "uploading")
		case caflash.StateAwaitingAck:
			_, _ = fmt.Fprintln(a.stdout, "waiting for ack...")
		case caflash.StateIdle, caflash.StateSent, caflash.StateAcked,
			caflash.StateUnacknowledged, caflash.StateFailed:
		}
	}))

	result, err := up.Upload(ctx, image)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.stdout, "upload successful (%d bytes in %s)\n",
		result.FrameSize, result.Elapsed.Round(time.Millisecond))
	return nil
}

// list prints candidate devices, best match first.
func (a *app) list(ctx context.Context, cfg *config) error {
	opts := detection.DefaultOptions()
	opts.Blocklist = cfg.blocklist
	opts.IgnorePaths = cfg.ignorePaths
	opts.TargetVIDPID = cfg.usbID()
	opts.EnableCache = false

	devices, err := a.detect(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		_, _ = fmt.Fprintln(a.stdout, "no serial devices found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("detecting devices: %w", err)
	}
	for _, d := range devices {
		_, _ = fmt.Fprintln(a.stdout, d.String())
	}
	return nil
}

func (a *app) run(ctx context.Context, cfg *config) error {
	if cfg.debug {
		caflash.SetDebugEnabled(true)
	}
	if cfg.sessionLog {
		path, err := caflash.InitSessionLog(cfg.logDir)
		if err != nil {
			return fmt.Errorf("session log: %w", err)
		}
		_, _ = fmt.Fprintf(a.stderr, "session log: %s\n", path)
		defer func() {
			if err := caflash.CloseSessionLog(); err != nil {
				_, _ = fmt.Fprintf(a.stderr, "Failed to close session log: %v\n", err)
			}
		}()
	}

	if cfg.list {
		return a.list(ctx, cfg)
	}
	return a.upload(ctx, cfg)
}

// report prints the failure summary for err.
func (a *app) report(cfg *config, err error) {
	_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
	if hint := caflash.Hint(err); hint != "" {
		_, _ = fmt.Fprintln(a.stderr, hint)
	}
	if te := caflash.GetTrace(err); te != nil && cfg.debug {
		_, _ = fmt.Fprint(a.stderr, te.FormatTrace())
	}
	_, _ = fmt.Fprintln(a.stderr, "upload failed")
}

func (a *app) main(ctx context.Context, args []string, getenv func(string) string) int {
	cfg, err := parseArgs(args, getenv, a.stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if errors.Is(err, errUsage) {
		_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
		_, _ = fmt.Fprintln(a.stderr, "usage: caflash [flags] firmware.bin [serial-device]")
		return exitUsage
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	if err := a.run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(a.stderr, "upload cancelled")
			return exitFailure
		}
		if cfg.list {
			_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return exitFailure
		}
		a.report(cfg, err)
		return exitFailure
	}
	return exitOK
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return newApp().main(ctx, os.Args[1:], os.Getenv)
}
