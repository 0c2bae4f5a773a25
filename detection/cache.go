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
	"time"

	"github.com/ZaparooProject/go-caflash/internal/syncutil"
)

// cacheEntry is one detector's last non-empty result.
type cacheEntry struct {
	stored  time.Time
	devices []DeviceInfo
}

// resultCache maps detector names to their last results.
type resultCache struct {
	entries map[string]cacheEntry
	mu      syncutil.RWMutex
}

var cache = &resultCache{entries: make(map[string]cacheEntry)}

// getCached returns a copy of the detector's results if younger than ttl.
func getCached(detector string, ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	entry, ok := cache.entries[detector]
	if !ok || time.Since(entry.stored) > ttl {
		return nil, false
	}
	return cloneDevices(entry.devices), true
}

func setCached(detector string, devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[detector] = cacheEntry{devices: cloneDevices(devices), stored: time.Now()}
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries = make(map[string]cacheEntry)
}

func clearCacheForTransport(detector string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, detector)
}

// cloneDevices copies the slice and each metadata map.
func cloneDevices(devices []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		out[i] = d
		if d.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(d.Metadata))
			for k, v := range d.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}
