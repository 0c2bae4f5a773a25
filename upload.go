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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-caflash/internal/frame"
)

// Frame and acknowledgement sizes
const (
	MaxImageSize = frame.MaxPayload
	AckSize      = frame.AckSize
)

// BuildFrame returns payload prefixed with its 2-byte little-endian length.
// Payloads over MaxImageSize bytes are rejected with ErrPayloadTooLarge.
func BuildFrame(payload []byte) ([]byte, error) {
	frm, err := frame.Build(payload)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	return frm, nil
}

// Result describes how an upload ended
type Result struct {
	// Ack holds the bytes read back from the device, if any
	Ack []byte
	// State is the terminal session state
	State State
	// FrameSize is the number of bytes written, prefix included
	FrameSize int
	// Elapsed is the wall time from open to the final state
	Elapsed time.Duration
}

// Succeeded reports whether the device acknowledged the frame
func (r *Result) Succeeded() bool {
	return r != nil && r.State == StateAcked
}

// Config holds uploader options
type Config struct {
	// OnState is called on every state transition (optional)
	OnState func(State)
	// Link is applied to the transport after opening
	Link LinkConfig
	// TraceSize bounds the wire trace attached to failures
	TraceSize int
}

func defaultConfig() Config {
	return Config{
		Link:      DefaultLinkConfig(),
		TraceSize: 16,
	}
}

// Option is a functional option for configuring the Uploader.
type Option func(*Config)

// WithLinkConfig overrides the link parameters.
func WithLinkConfig(link LinkConfig) Option {
	return func(c *Config) {
		c.Link = link
	}
}

// WithStateCallback sets a callback invoked on each state transition.
//
//	up := caflash.NewUploader(t, caflash.WithStateCallback(func(s caflash.State) {
//	    fmt.Println("state:", s)
//	}))
func WithStateCallback(fn func(State)) Option {
	return func(c *Config) {
		c.OnState = fn
	}
}

// WithTraceSize sets how many wire trace entries are kept.
func WithTraceSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.TraceSize = n
		}
	}
}

// Uploader drives one send-and-acknowledge exchange over a Transport.
type Uploader struct {
	transport Transport
	config    Config
}

// NewUploader creates an uploader for transport.
func NewUploader(transport Transport, opts ...Option) *Uploader {
	if transport == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Uploader{
		transport: transport,
		config:    cfg,
	}
}

// session tracks one upload's state and wire trace
type session struct {
	started time.Time
	onState func(State)
	trace   *TraceBuffer
	result  *Result
}

func (s *session) advance(to State) {
	if !canTransition(s.result.State, to) {
		// Programming error; keep the state machine honest.
		panic(fmt.Sprintf("invalid upload transition %s -> %s", s.result.State, to))
	}
	Debugf("upload: %s -> %s", s.result.State, to)
	s.result.State = to
	if s.onState != nil {
		s.onState(to)
	}
}

func (s *session) fail(err error) (*Result, error) {
	s.advance(StateFailed)
	s.result.Elapsed = time.Since(s.started)
	return s.result, s.trace.WrapError(err)
}

// Upload sends image as one frame and waits for the device to answer "ACK".
//
// The result is returned on every path and the error is non-nil unless the
// state is StateAcked. A response other than "ACK" ends in
// StateUnacknowledged with an *AckError. The transport is closed exactly
// once if it was opened; a close failure after an acknowledged upload is
// still returned as an error. The image is not retained.
func (u *Uploader) Upload(ctx context.Context, image []byte) (result *Result, err error) {
	s := &session{
		started: time.Now(),
		onState: u.config.OnState,
		trace:   NewTraceBuffer(string(u.transport.Type()), u.transport.Port(), u.config.TraceSize),
		result:  &Result{State: StateIdle},
	}

	frm, err := BuildFrame(image)
	if err != nil {
		return s.fail(err)
	}
	s.result.FrameSize = len(frm)

	if err := u.config.Link.Validate(); err != nil {
		return s.fail(err)
	}

	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	if err := u.transport.Open(ctx); err != nil {
		return s.fail(fmt.Errorf("open: %w", err))
	}
	s.advance(StateOpened)
	s.trace.SetPort(u.transport.Port())

	defer func() {
		if closeErr := u.transport.Close(); closeErr != nil {
			Debugf("upload: close %s failed: %v", u.transport.Port(), closeErr)
			if err == nil {
				err = fmt.Errorf("close: %w", closeErr)
			}
		}
	}()

	return u.exchange(ctx, s, frm)
}

// exchange runs the configure, send and acknowledge stages on an open link.
func (u *Uploader) exchange(ctx context.Context, s *session, frm []byte) (*Result, error) {
	if err := u.transport.Configure(u.config.Link); err != nil {
		return s.fail(fmt.Errorf("configure: %w", err))
	}
	s.advance(StateConfigured)

	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	s.trace.RecordTX(frm, fmt.Sprintf("frame, %d byte payload", len(frm)-frame.PrefixSize))
	if err := u.transport.Send(ctx, frm); err != nil {
		return s.fail(fmt.Errorf("send: %w", err))
	}
	s.advance(StateSent)

	s.advance(StateAwaitingAck)
	ack, err := u.transport.AwaitAck(ctx)
	switch {
	case err != nil:
		if IsNoAck(err) {
			s.trace.RecordTimeout("ack")
		}
		return s.fail(fmt.Errorf("await ack: %w", err))
	case len(ack) == 0:
		s.trace.RecordTimeout("ack")
		return s.fail(fmt.Errorf("await ack: %w", NewNoAckError(OpAwaitAck, u.transport.Port())))
	}

	s.trace.RecordRX(ack, "ack")
	s.result.Ack = ack
	s.result.Elapsed = time.Since(s.started)

	if !frame.IsAck(ack) {
		s.advance(StateUnacknowledged)
		return s.result, s.trace.WrapError(&AckError{Got: ack})
	}

	s.advance(StateAcked)
	return s.result, nil
}

// IsAckNotRecognized reports whether err is a successful read of an
// unexpected response.
func IsAckNotRecognized(err error) bool {
	return errors.Is(err, ErrAckNotRecognized)
}
