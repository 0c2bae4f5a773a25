//go:build !deadlock

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

// Package syncutil provides the mutex types used by transports and the
// detection cache. Build with -tags=deadlock to get lock-order checking
// from github.com/sasha-s/go-deadlock instead of the standard library.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex unless built with -tags=deadlock.
type RWMutex struct {
	sync.RWMutex
}
