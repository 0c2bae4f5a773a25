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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-caflash/internal/syncutil"
)

const logTimeFormat = "15:04:05.000"

// debugSink is where Debugf output goes: the console when debug is enabled
// and the session log file when one is open.
type debugSink struct {
	console io.Writer
	session io.Writer
	file    *os.File
	path    string
	mu      syncutil.Mutex
	enabled bool
}

var sink = &debugSink{console: os.Stderr}

func init() {
	if os.Getenv("CAFLASH_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		sink.enabled = true
	}
}

func (s *debugSink) write(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		_, _ = fmt.Fprintf(s.session, "%s DEBUG: %s\n", time.Now().Format(logTimeFormat), message)
	}
	if s.enabled && s.console != nil {
		_, _ = fmt.Fprintf(s.console, "DEBUG: %s\n", message)
	}
}

// Debugf logs a formatted message. It always reaches the session log, if
// one is open, and reaches stderr only when debug output is enabled.
func Debugf(format string, args ...any) {
	sink.write(fmt.Sprintf(format, args...))
}

// Debugln logs its operands separated by spaces, like Debugf.
func Debugln(args ...any) {
	sink.write(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// SetDebugEnabled turns console debug output on or off
func SetDebugEnabled(enabled bool) {
	sink.mu.Lock()
	sink.enabled = enabled
	sink.mu.Unlock()
}

// DebugEnabled reports whether console debug output is on
func DebugEnabled() bool {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.enabled
}

// InitSessionLog starts a session log named caflash_YYYYMMDD_HHMMSS.log in
// dir ("" means the current directory) and returns its path. A session
// that is already open is closed first.
func InitSessionLog(dir string) (string, error) {
	if err := CloseSessionLog(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "caflash_"+time.Now().Format("20060102_150405")+".log")
	file, err := os.Create(path) //nolint:gosec // name is built here, dir is the user's choice
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sink.mu.Lock()
	sink.file = file
	sink.session = file
	sink.path = path
	writeSessionHeader(file)
	sink.mu.Unlock()

	return path, nil
}

// CloseSessionLog writes the footer and closes the session log. It does
// nothing when no session is open.
func CloseSessionLog() error {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	if sink.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(sink.session, "\n%s === Session ended ===\n", time.Now().Format(logTimeFormat))

	err := sink.file.Close()
	sink.file = nil
	sink.session = nil
	sink.path = ""
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log path, or "".
func GetSessionLogPath() string {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.path
}

// writeSessionHeader records the process and the fixed upload link so a
// log can be read without the terminal output next to it.
func writeSessionHeader(w io.Writer) {
	link := DefaultLinkConfig()
	lines := []string{
		"=== caflash Debug Session Log ===",
		"Started: " + time.Now().Format(time.RFC3339),
		fmt.Sprintf("PID: %d", os.Getpid()),
		fmt.Sprintf("OS: %s/%s", runtime.GOOS, runtime.GOARCH),
		"Go Version: " + runtime.Version(),
		"Command Line: " + strings.Join(os.Args, " "),
		fmt.Sprintf("Link: %s, vmin=%d vtime=%d", link, link.MinReadBytes, link.ReadTimeoutDeciseconds()),
		fmt.Sprintf("Max Image: %d bytes", MaxImageSize),
		"==================================",
		"",
	}
	_, _ = io.WriteString(w, strings.Join(lines, "\n")+"\n")
}
