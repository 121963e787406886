// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import "context"

// EventKind tells what happened on a source.
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one item of the sequence a Source produces.
type Event struct {
	Kind EventKind
	Data []byte // EventMessage: one envelope
	Err  error  // EventError, and EventClose when the peer closed with a reason

	CloseCode int
	CloseText string
}

// Source produces envelopes until ctx is cancelled.
// Run owns the connection lifecycle (including reconnects) and never closes events.
type Source interface {
	Run(ctx context.Context, events chan<- Event) error
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
