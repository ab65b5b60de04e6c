package engine

import (
	"sync"

	"rove/internal/fsops"
	"rove/internal/log"
	"rove/internal/task"
)

// Frame is one render snapshot handed to the terminal collaborator after
// every processed event.
type Frame struct {
	State   AppState
	Pending PendingSequence
	Done    bool
}

// Notifier receives frames and external-process requests from the
// dispatcher. The TUI implements it.
type Notifier interface {
	Notify(Frame)
	RunExternal(ExternalEffect)
}

// Watcher is retargeted as the displayed directory changes. The fsnotify
// adapter implements it.
type Watcher interface {
	Retarget(dir string) error
}

// Tasks is the background queue surface the dispatcher drives.
// *task.Queue implements it.
type Tasks interface {
	EnqueueScan(path string, generation uint64, opts fsops.ListOptions) uint64
	EnqueueMutation(kind task.Kind, path, dest string) uint64
	Cancel(id uint64)
	Shutdown()
	Outcomes() <-chan task.Outcome
}

// Dispatcher owns the merged event channel and is the only goroutine that
// touches the Machine and the Interpreter.
type Dispatcher struct {
	machine *Machine
	interp  *Interpreter
	queue   Tasks
	notify  Notifier
	watcher Watcher

	events chan Event
	stop   chan struct{}
	done   chan struct{}
	bridge *Bridge

	// Last requested scan, so changing directory can cancel the previous
	// directory's in-flight scan instead of letting it run to completion.
	lastScanID   uint64
	lastScanPath string

	stopOnce sync.Once
}

// NewDispatcher wires the machine, interpreter, and queue together. The
// notifier and watcher may be nil in tests.
func NewDispatcher(m *Machine, in *Interpreter, q Tasks, notify Notifier, w Watcher) *Dispatcher {
	d := &Dispatcher{
		machine: m,
		interp:  in,
		queue:   q,
		notify:  notify,
		watcher: w,
		events:  make(chan Event, 64),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	d.bridge = newBridge(d.events, d.stop)
	return d
}

// Bridge returns the input bridge for the terminal driver.
func (d *Dispatcher) Bridge() *Bridge {
	return d.bridge
}

// SetWatcher installs the directory watcher. Must be called before Run.
func (d *Dispatcher) SetWatcher(w Watcher) {
	d.watcher = w
}

// ExternalFinished reports that a suspended shell/editor run returned.
func (d *Dispatcher) ExternalFinished(err error, message string) {
	d.bridge.push(Event{Kind: ExternalDoneEvent, Err: err, Message: message})
}

// FsChanged reports a filesystem notification for path.
func (d *Dispatcher) FsChanged(path string) {
	d.bridge.push(Event{Kind: FsChangeEvent, Path: path})
}

// Run processes the merged stream until a QuitEffect. It owns all state
// transitions; callers interact only through the bridge and the queue.
func (d *Dispatcher) Run() {
	defer close(d.done)

	go d.pumpOutcomes()

	dir := d.machine.Snapshot().Dir
	d.retarget(dir)
	if d.execute(d.machine.Start()) {
		return
	}
	d.publish(false)

	for {
		select {
		case ev := <-d.events:
			if d.handle(ev) {
				d.publish(true)
				return
			}
			d.publish(false)
		case <-d.stop:
			return
		}
	}
}

// Stop aborts the loop without waiting for a Quit action. Used on terminal
// driver teardown.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
	d.queue.Shutdown()
}

// pumpOutcomes forwards queue outcomes onto the merged stream so the loop
// sees a single ordered sequence of events.
func (d *Dispatcher) pumpOutcomes() {
	for o := range d.queue.Outcomes() {
		outcome := o
		d.bridge.push(Event{Kind: TaskResultEvent, Outcome: &outcome})
	}
}

func (d *Dispatcher) handle(ev Event) bool {
	switch ev.Kind {
	case KeyEvent, TickEvent:
		for _, action := range d.interp.Feed(ev, d.machine.Mode()) {
			if d.execute(d.machine.Apply(action)) {
				return true
			}
		}
	case TaskResultEvent:
		if ev.Outcome == nil {
			return false
		}
		return d.execute(d.machine.HandleOutcome(*ev.Outcome))
	case ExternalDoneEvent:
		return d.execute(d.machine.HandleExternalDone(ev.Err, ev.Message))
	case FsChangeEvent:
		return d.execute(d.machine.HandleFsChange(ev.Path))
	}
	return false
}

// execute carries out effects and reports whether a QuitEffect was seen.
func (d *Dispatcher) execute(effects []Effect) bool {
	quit := false
	for _, effect := range effects {
		switch e := effect.(type) {
		case ScanEffect:
			if d.lastScanID != 0 && d.lastScanPath != e.Path {
				d.queue.Cancel(d.lastScanID)
			}
			d.lastScanID = d.queue.EnqueueScan(e.Path, e.Generation, e.Options)
			d.lastScanPath = e.Path
			d.retarget(e.Path)
		case WatchEffect:
			d.retarget(e.Path)
		case MutateEffect:
			d.queue.EnqueueMutation(e.Kind, e.Path, e.Dest)
		case ExternalEffect:
			if d.notify != nil {
				d.notify.RunExternal(e)
			}
		case QuitEffect:
			quit = true
		}
	}
	if quit {
		// Closing stop first keeps the outcome pump from blocking on the
		// event channel while Shutdown waits for workers.
		d.stopOnce.Do(func() { close(d.stop) })
		d.queue.Shutdown()
	}
	return quit
}

func (d *Dispatcher) retarget(dir string) {
	if d.watcher == nil {
		return
	}
	if err := d.watcher.Retarget(dir); err != nil {
		log.Warnf("Could not watch %s: %v", dir, err)
	}
}

func (d *Dispatcher) publish(done bool) {
	if d.notify == nil {
		return
	}
	d.notify.Notify(Frame{
		State:   d.machine.Snapshot(),
		Pending: d.interp.Pending(),
		Done:    done,
	})
}
