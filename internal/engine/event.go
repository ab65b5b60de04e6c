// Package engine contains the event-multiplexing core: the merged event
// stream, the modal command interpreter, the application state machine, and
// the dispatcher that drives them.
package engine

import (
	"sync/atomic"

	"rove/internal/task"
)

// EventKind tags the source of an event on the merged stream.
type EventKind int

const (
	// KeyEvent is a decoded key press from the terminal driver.
	KeyEvent EventKind = iota
	// TickEvent is a periodic clock tick.
	TickEvent
	// TaskResultEvent carries the outcome of background filesystem work.
	TaskResultEvent
	// ExternalDoneEvent reports that a suspended shell/editor returned.
	ExternalDoneEvent
	// FsChangeEvent reports a filesystem notification for a watched path.
	FsChangeEvent
)

// Event is one element of the merged stream. Seq is assigned at ingestion
// and used only for ordering diagnostics; correctness comes from the
// single-consumer channel.
type Event struct {
	Seq  uint64
	Kind EventKind

	Key     string        // KeyEvent: decoded key name ("j", "enter", "ctrl+c", ...)
	Outcome *task.Outcome // TaskResultEvent
	Err     error         // ExternalDoneEvent: process failure, if any
	Message string        // ExternalDoneEvent: status to show on success
	Path    string        // FsChangeEvent
}

// Bridge tags raw input with sequence numbers and forwards it into the
// merged stream. It does no filtering and blocks only on stream
// backpressure.
type Bridge struct {
	seq    atomic.Uint64
	events chan<- Event
	closed <-chan struct{}
}

func newBridge(events chan<- Event, closed <-chan struct{}) *Bridge {
	return &Bridge{events: events, closed: closed}
}

// SubmitKey forwards one decoded key press.
func (b *Bridge) SubmitKey(key string) {
	b.push(Event{Kind: KeyEvent, Key: key})
}

// SubmitTick forwards one clock tick.
func (b *Bridge) SubmitTick() {
	b.push(Event{Kind: TickEvent})
}

func (b *Bridge) push(ev Event) {
	ev.Seq = b.seq.Add(1)
	select {
	case b.events <- ev:
	case <-b.closed:
	}
}
