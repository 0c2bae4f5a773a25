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

// Package detection locates serial links an upload target may be attached to.
//
// Detection is passive: it reads port descriptors only and never writes to a
// port, since any byte sent to a target waiting in flash mode would be taken
// as the start of a frame.
package detection

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Confidence represents how likely a port leads to an upload target
type Confidence int

const (
	// Low confidence - a serial port with nothing pointing at a target
	Low Confidence = iota
	// Medium confidence - a known USB-serial bridge, but not the configured one
	Medium
	// High confidence - the configured bridge VID:PID
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo represents a detected serial link
type DeviceInfo struct {
	// Additional metadata ("vidpid", "serial", "product")
	Metadata map[string]string
	// Transport to use: "bridge" or "tty"
	Transport string
	// Connection path (e.g., "/dev/ttyUSB0", "COM3")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	s := fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
	if vidpid, ok := d.Metadata["vidpid"]; ok {
		s += " [" + vidpid + "]"
	}
	return s
}

// Options configures the detection behavior
type Options struct {
	// USB VID:PID pairs to skip (e.g., ["1234:5678", "ABCD:EF01"])
	Blocklist []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Which detectors to run (empty = all)
	Transports []string
	// TargetVIDPID is the bridge the uploader will look for
	TargetVIDPID string
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to wait for detection
	Timeout time.Duration
	// IncludeNative lists non-USB serial ports as well
	IncludeNative bool
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		TargetVIDPID:  "0403:6001",
		Timeout:       5 * time.Second,
		Blocklist:     DefaultBlocklist(),
		IncludeNative: true,
		EnableCache:   true,
		CacheTTL:      30 * time.Second,
	}
}

// Detector interface for source-specific device detection
type Detector interface {
	// Detect searches for devices using the given options
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport returns the name this detector is registered and cached under
	Transport() string
}

// Errors
var (
	// ErrNoDevicesFound indicates no candidate ports were detected
	ErrNoDevicesFound = errors.New("no serial devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrNoDetectors indicates no registered detector matched Options.Transports
	ErrNoDetectors = errors.New("no detectors available for specified transports")
)

// registry holds all registered detectors
var registry []Detector

// RegisterDetector adds a detector to the registry
func RegisterDetector(d Detector) {
	registry = append(registry, d)
}

// getDetectors returns detectors filtered by transport types
func getDetectors(transports []string) []Detector {
	if len(transports) == 0 {
		return registry
	}

	var filtered []Detector
	for _, d := range registry {
		for _, t := range transports {
			if d.Transport() == t {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs every matching detector concurrently and merges the results.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := getDetectors(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, d := range detectors {
		go func(d Detector) {
			results <- runSingleDetector(ctx, d, opts)
		}(d)
	}
	return collectDetectionResults(ctx, results, len(detectors))
}

// runSingleDetector performs detection for a single detector
func runSingleDetector(ctx context.Context, detector Detector, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, found := getCached(detector.Transport(), opts.CacheTTL); found {
			// Cached results skipped Detect, so filter them again.
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := detector.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectionResult{err: err}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(detector.Transport(), devices)
		} else {
			// A stale entry would point at an unplugged bridge until TTL expiry.
			clearCacheForTransport(detector.Transport())
		}
	}

	return detectionResult{devices: devices}
}

// collectDetectionResults gathers results from all detector goroutines
func collectDetectionResults(
	ctx context.Context,
	results chan detectionResult,
	numDetectors int,
) ([]DeviceInfo, error) {
	var allDevices []DeviceInfo
	var errs []error

	for range numDetectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
			} else {
				allDevices = append(allDevices, res.devices...)
			}
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	if len(allDevices) > 0 {
		SortByConfidence(allDevices)
		return allDevices, nil
	}
	if ctx.Err() != nil {
		return nil, ErrDetectionTimeout
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return nil, ErrNoDevicesFound
}

// SortByConfidence orders devices best first, then by path.
func SortByConfidence(devices []DeviceInfo) {
	slices.SortStableFunc(devices, func(a, b DeviceInfo) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}

// ClearDetectionCacheForTransport removes cached results for one detector
func ClearDetectionCacheForTransport(transport string) {
	clearCacheForTransport(transport)
}
