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
	"slices"
	"strings"
	"time"
)

// maxTraceBytes caps how many bytes of one entry are shown
const maxTraceBytes = 32

// TraceEvent classifies one wire trace entry
type TraceEvent string

const (
	// TraceTX is a frame written to the device
	TraceTX TraceEvent = "TX"
	// TraceRX is a response read from the device
	TraceRX TraceEvent = "RX"
	// TraceTimeout is a read that returned nothing
	TraceTimeout TraceEvent = "TIMEOUT"
)

// TraceEntry is one write or read during an upload.
type TraceEntry struct {
	Event TraceEvent
	Note  string
	Data  []byte
	// Offset is the time since the trace started
	Offset time.Duration
}

func (e TraceEntry) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "+%-10s %-7s", e.Offset.Round(time.Microsecond), e.Event)
	if e.Event != TraceTimeout {
		_, _ = sb.WriteString(" " + formatHexBytes(e.Data))
	}
	if e.Note != "" {
		_, _ = fmt.Fprintf(&sb, " (%s)", e.Note)
	}
	return sb.String()
}

// TraceableError carries the wire trace of a failed upload.
//
//	if te := caflash.GetTrace(err); te != nil {
//	    fmt.Fprint(os.Stderr, te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one entry per line.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("wire trace %s %s: no entries\n", e.Transport, e.Port)
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "wire trace %s %s (%d entries)\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		_, _ = sb.WriteString("  " + entry.String() + "\n")
	}
	return sb.String()
}

// GetTrace returns the trace attached to err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

// TraceBuffer records the most recent wire events of one upload.
type TraceBuffer struct {
	started   time.Time
	transport string
	port      string
	entries   []TraceEntry
	limit     int
}

// NewTraceBuffer creates a buffer that keeps the last limit entries
// (16 when limit is not positive).
func NewTraceBuffer(transport, port string, limit int) *TraceBuffer {
	if limit <= 0 {
		limit = 16
	}
	return &TraceBuffer{
		started:   time.Now(),
		transport: transport,
		port:      port,
		entries:   make([]TraceEntry, 0, limit),
		limit:     limit,
	}
}

// SetPort updates the port name reported with the trace, for transports
// that only learn their device path on open.
func (tb *TraceBuffer) SetPort(port string) {
	tb.port = port
}

// RecordTX records bytes written to the device
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.add(TraceTX, data, note)
}

// RecordRX records bytes read from the device
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.add(TraceRX, data, note)
}

// RecordTimeout records a read that came back empty
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.add(TraceTimeout, nil, note)
}

func (tb *TraceBuffer) add(ev TraceEvent, data []byte, note string) {
	if len(tb.entries) == tb.limit {
		tb.entries = slices.Delete(tb.entries, 0, 1)
	}
	tb.entries = append(tb.entries, TraceEntry{
		Event:  ev,
		Note:   note,
		Data:   slices.Clone(data),
		Offset: time.Since(tb.started),
	})
}

// Len returns the number of entries held
func (tb *TraceBuffer) Len() int {
	return len(tb.entries)
}

// WrapError attaches a copy of the trace to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     slices.Clone(tb.entries),
	}
}

// formatHexBytes renders data as upper-case hex pairs, showing at most
// maxTraceBytes of it.
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	shown := data
	if len(shown) > maxTraceBytes {
		shown = shown[:maxTraceBytes]
	}
	var sb strings.Builder
	for i, b := range shown {
		if i > 0 {
			_ = sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02X", b)
	}
	if len(data) > maxTraceBytes {
		_, _ = fmt.Fprintf(&sb, " ... (%d bytes total)", len(data))
	}
	return sb.String()
}
