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

import "fmt"

// State is the position of an upload session in its one-way handshake.
//
//	Idle -> Opened -> Configured -> Sent -> AwaitingAck -> Acked
//	                                                    -> Unacknowledged
//	any state                                           -> Failed
type State int

const (
	StateIdle State = iota
	StateOpened
	StateConfigured
	StateSent
	StateAwaitingAck
	StateAcked
	StateUnacknowledged
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateOpened:         "opened",
	StateConfigured:     "configured",
	StateSent:           "sent",
	StateAwaitingAck:    "awaiting_ack",
	StateAcked:          "acked",
	StateUnacknowledged: "unacknowledged",
	StateFailed:         "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsTerminal reports whether no further transition can happen from s.
func (s State) IsTerminal() bool {
	return s == StateAcked || s == StateUnacknowledged || s == StateFailed
}

// canTransition encodes the strictly sequential session: each state may
// only advance to the next one, or drop to Failed. There are no retry edges.
func canTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	switch from {
	case StateIdle:
		return to == StateOpened
	case StateOpened:
		return to == StateConfigured
	case StateConfigured:
		return to == StateSent
	case StateSent:
		return to == StateAwaitingAck
	case StateAwaitingAck:
		return to == StateAcked || to == StateUnacknowledged
	default:
		return false
	}
}
