//go:build deadlock

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
// detection cache. This file is compiled with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// LockTimeout is how long a lock may be waited on before go-deadlock
// reports it. No lock is held across more than one ack read window.
const LockTimeout = 10 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = LockTimeout
}

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting read/write mutex.
type RWMutex struct {
	deadlock.RWMutex
}
