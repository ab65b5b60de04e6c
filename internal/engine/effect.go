package engine

import (
	"rove/internal/fsops"
	"rove/internal/task"
)

// Effect is a side-effecting request emitted by the state machine and
// carried out by the dispatcher.
type Effect interface {
	isEffect()
}

// ScanEffect requests a directory listing through the task queue.
type ScanEffect struct {
	Path       string
	Generation uint64
	Options    fsops.ListOptions
}

// MutateEffect requests a mutating filesystem operation.
type MutateEffect struct {
	Kind task.Kind
	Path string
	Dest string
}

// ExternalKind selects which foreground process to hand the terminal to.
type ExternalKind int

const (
	ExternalShell ExternalKind = iota
	ExternalEditor
)

// ExternalEffect suspends the UI and runs a shell or editor. This is a
// synchronous handoff executed by the terminal collaborator, not a
// background task.
type ExternalEffect struct {
	Kind ExternalKind
	Dir  string // working directory for the shell
	Path string // file to edit
}

// WatchEffect points the directory watcher at Path without scanning.
// Emitted when a failed directory change rolls back, since the watcher was
// already retargeted at the directory that could not be entered.
type WatchEffect struct {
	Path string
}

// QuitEffect ends the session.
type QuitEffect struct{}

func (ScanEffect) isEffect()     {}
func (MutateEffect) isEffect()   {}
func (ExternalEffect) isEffect() {}
func (WatchEffect) isEffect()    {}
func (QuitEffect) isEffect()     {}
