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

package detection

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultBlocklist returns USB devices that enumerate as serial ports but
// are never upload targets.
func DefaultBlocklist() []string {
	return []string{
		"1366:0105", // SEGGER J-Link CDC
		"0483:374B", // ST-LINK/V2-1 virtual COM port
	}
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))

	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// FormatVIDPID renders a vendor and product ID pair as "VVVV:PPPP".
func FormatVIDPID(vid, pid uint16) string {
	return fmt.Sprintf("%04X:%04X", vid, pid)
}

// SplitVIDPID parses "VVVV:PPPP" (hex, optional 0x prefixes) into its IDs.
func SplitVIDPID(s string) (vid, pid uint16, err error) {
	v, p, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid VID:PID %q: missing ':'", s)
	}
	if vid, err = ParseID(v); err != nil {
		return 0, 0, fmt.Errorf("invalid VID:PID %q: %w", s, err)
	}
	if pid, err = ParseID(p); err != nil {
		return 0, 0, fmt.Errorf("invalid VID:PID %q: %w", s, err)
	}
	return vid, pid, nil
}

// ParseID parses a 16-bit USB ID written in hex, with or without 0x.
func ParseID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if !isHex(s) {
		return 0, fmt.Errorf("%q is not a hex USB ID", s)
	}
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parse USB ID %q: %w", s, err)
	}
	return uint16(id), nil
}

// ParseVIDPID extracts VID:PID from various USB descriptor formats:
// "VID:1234 PID:5678", "1234:5678" and "vendor=1234 product=5678".
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(descriptor)

	var vid, pid string
	if idx := strings.Index(descriptor, "VID:"); idx >= 0 {
		vid = extractHex(descriptor[idx+4:])
	} else if idx := strings.Index(descriptor, "VENDOR="); idx >= 0 {
		vid = extractHex(descriptor[idx+7:])
	}
	if idx := strings.Index(descriptor, "PID:"); idx >= 0 {
		pid = extractHex(descriptor[idx+4:])
	} else if idx := strings.Index(descriptor, "PRODUCT="); idx >= 0 {
		pid = extractHex(descriptor[idx+8:])
	}
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if v, p, ok := strings.Cut(descriptor, ":"); ok && isHex(v) && isHex(p) {
		return descriptor
	}
	return ""
}

// extractHex extracts the first run of hex digits from an upper-case string.
func extractHex(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			_, _ = result.WriteRune(r)
		} else if result.Len() > 0 {
			break
		}
	}
	return result.String()
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// IsPathIgnored checks if a device path should be ignored.
// Paths are compared cleaned and case-insensitively.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

// normalizedPath cleans path and lower-cases it for Windows COM names
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
