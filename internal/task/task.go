// Package task runs filesystem work off the dispatcher thread. Scan
// requests are debounced and cancellable; mutating operations are
// serialized per path and always run to completion once started.
package task

import (
	"sync/atomic"

	"rove/internal/fsops"
)

// Kind identifies the filesystem operation a task performs.
type Kind int

const (
	Scan Kind = iota
	Copy
	Move
	Delete
	Rename
	Mkdir
	Touch
)

func (k Kind) String() string {
	switch k {
	case Scan:
		return "scan"
	case Copy:
		return "copy"
	case Move:
		return "move"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	case Mkdir:
		return "mkdir"
	case Touch:
		return "touch"
	default:
		return "unknown"
	}
}

// Mutating reports whether the kind changes the filesystem.
func (k Kind) Mutating() bool {
	return k != Scan
}

// Task is one unit of filesystem work.
type Task struct {
	ID         uint64
	Kind       Kind
	Path       string
	Dest       string // copy/move/rename destination
	Generation uint64 // scan freshness token
	List       fsops.ListOptions

	cancelled atomic.Bool
}

// Cancel flags the task for cooperative cancellation. Mutating tasks check
// the flag only before taking effect; once a mutation is underway it runs
// to completion or failure.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether the task has been flagged.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Status describes how a task finished.
type Status int

const (
	StatusScanned Status = iota
	StatusMutated
	StatusFailed
	StatusCancelled
)

// Outcome is the asynchronous result of a task, delivered on the queue's
// outcome channel.
type Outcome struct {
	TaskID     uint64
	Kind       Kind
	Status     Status
	Path       string
	Dest       string
	Generation uint64
	Entries    []fsops.Entry // populated for StatusScanned
	Err        error         // populated for StatusFailed
}
