package task

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rove/internal/fsops"
	"rove/internal/log"
)

// Queue owns all filesystem task bookkeeping. It exposes only the
// enqueue/cancel/outcome interface; ids, debounce timers, and conflict
// tables live behind its scheduler goroutine.
type Queue struct {
	debounce time.Duration

	submitCh chan *Task
	fireCh   chan *Task
	doneCh   chan *Task
	cancelCh chan uint64

	runq     chan *Task
	outcomes chan Outcome

	shutdownCh chan struct{}
	stopped    chan struct{}

	nextID  atomic.Uint64
	workers sync.WaitGroup
	once    sync.Once
}

// pendingScan is a debounced scan waiting for its window to expire.
type pendingScan struct {
	task  *Task
	timer *time.Timer
}

// NewQueue starts the scheduler and a pool of workers.
func NewQueue(debounce time.Duration, workerCount int) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	q := &Queue{
		debounce:   debounce,
		submitCh:   make(chan *Task),
		fireCh:     make(chan *Task, 32),
		doneCh:     make(chan *Task, 32),
		cancelCh:   make(chan uint64, 32),
		runq:       make(chan *Task, 128),
		outcomes:   make(chan Outcome, 64),
		shutdownCh: make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	go q.schedule()
	return q
}

// Outcomes returns the channel on which task results are delivered.
func (q *Queue) Outcomes() <-chan Outcome {
	return q.outcomes
}

// EnqueueScan requests a directory listing. Requests for the same path
// arriving within the debounce window collapse into one; only the newest
// generation is executed.
func (q *Queue) EnqueueScan(path string, generation uint64, opts fsops.ListOptions) uint64 {
	t := &Task{
		ID:         q.nextID.Add(1),
		Kind:       Scan,
		Path:       filepath.Clean(path),
		Generation: generation,
		List:       opts,
	}
	return q.submit(t)
}

// EnqueueMutation requests a mutating operation. Mutations touching the
// same path, or an ancestor or descendant of it, run one at a time in
// submission order.
func (q *Queue) EnqueueMutation(kind Kind, path, dest string) uint64 {
	t := &Task{
		ID:   q.nextID.Add(1),
		Kind: kind,
		Path: filepath.Clean(path),
	}
	if dest != "" {
		t.Dest = filepath.Clean(dest)
	}
	return q.submit(t)
}

func (q *Queue) submit(t *Task) uint64 {
	select {
	case q.submitCh <- t:
		return t.ID
	case <-q.stopped:
		return 0
	}
}

// Cancel flags the task with the given id. Debounced scans and queued
// mutations are dropped; in-flight scans are flagged for cooperative
// cancellation; in-flight mutations are left to finish.
func (q *Queue) Cancel(id uint64) {
	select {
	case q.cancelCh <- id:
	case <-q.stopped:
	}
}

// Shutdown cancels all outstanding scans, waits for in-flight mutating
// tasks to finish, then closes the outcome channel.
func (q *Queue) Shutdown() {
	q.once.Do(func() {
		close(q.shutdownCh)
		<-q.stopped
		q.workers.Wait()
		close(q.outcomes)
	})
}

// schedule is the single goroutine that owns all queue state.
func (q *Queue) schedule() {
	pending := make(map[string]*pendingScan) // path -> debouncing scan
	inflightScans := make(map[uint64]*Task)
	var activeMut []*Task
	var waitingMut []*Task
	draining := false

	dispatchScan := func(t *Task) {
		inflightScans[t.ID] = t
		q.runq <- t
	}

	startReady := func() {
		kept := waitingMut[:0]
		for _, w := range waitingMut {
			blocked := false
			for _, a := range activeMut {
				if tasksConflict(w, a) {
					blocked = true
					break
				}
			}
			if !blocked {
				// Preserve submission order among conflicting waiters.
				for _, k := range kept {
					if tasksConflict(w, k) {
						blocked = true
						break
					}
				}
			}
			if blocked {
				kept = append(kept, w)
				continue
			}
			activeMut = append(activeMut, w)
			q.runq <- w
		}
		waitingMut = kept
	}

	handleSubmit := func(t *Task) {
		if draining {
			q.outcomes <- cancelledOutcome(t)
			return
		}
		if t.Kind == Scan {
			// A newer request supersedes anything in flight for this path.
			for _, s := range inflightScans {
				if s.Path == t.Path {
					s.Cancel()
				}
			}
			if prior, ok := pending[t.Path]; ok {
				prior.timer.Stop()
				q.outcomes <- cancelledOutcome(prior.task)
			}
			if q.debounce <= 0 {
				dispatchScan(t)
				return
			}
			ps := &pendingScan{task: t}
			ps.timer = time.AfterFunc(q.debounce, func() {
				select {
				case q.fireCh <- t:
				case <-q.stopped:
				}
			})
			pending[t.Path] = ps
			return
		}

		waitingMut = append(waitingMut, t)
		startReady()
	}

	handleFire := func(t *Task) {
		ps, ok := pending[t.Path]
		if !ok || ps.task != t {
			return // superseded after the timer fired
		}
		delete(pending, t.Path)
		if draining {
			q.outcomes <- cancelledOutcome(t)
			return
		}
		dispatchScan(t)
	}

	handleDone := func(t *Task) {
		if t.Kind == Scan {
			delete(inflightScans, t.ID)
			return
		}
		for i, a := range activeMut {
			if a == t {
				activeMut = append(activeMut[:i], activeMut[i+1:]...)
				break
			}
		}
		if !draining {
			startReady()
		}
	}

	handleCancel := func(id uint64) {
		if ps := findPending(pending, id); ps != nil {
			ps.timer.Stop()
			delete(pending, ps.task.Path)
			q.outcomes <- cancelledOutcome(ps.task)
			return
		}
		if s, ok := inflightScans[id]; ok {
			s.Cancel()
			return
		}
		for i, w := range waitingMut {
			if w.ID == id {
				waitingMut = append(waitingMut[:i], waitingMut[i+1:]...)
				q.outcomes <- cancelledOutcome(w)
				return
			}
		}
		// In-flight mutations are not abortable.
	}

	drain := func() {
		draining = true
		for path, ps := range pending {
			ps.timer.Stop()
			q.outcomes <- cancelledOutcome(ps.task)
			delete(pending, path)
		}
		for _, s := range inflightScans {
			s.Cancel()
		}
		for _, w := range waitingMut {
			q.outcomes <- cancelledOutcome(w)
		}
		waitingMut = nil
	}

	for {
		select {
		case t := <-q.submitCh:
			handleSubmit(t)
		case t := <-q.fireCh:
			handleFire(t)
		case t := <-q.doneCh:
			handleDone(t)
		case id := <-q.cancelCh:
			handleCancel(id)
		case <-q.shutdownCh:
			drain()
		}
		if draining && len(activeMut) == 0 && len(inflightScans) == 0 {
			close(q.runq)
			close(q.stopped)
			return
		}
	}
}

func (q *Queue) worker() {
	defer q.workers.Done()
	for t := range q.runq {
		q.outcomes <- q.execute(t)
		select {
		case q.doneCh <- t:
		case <-q.stopped:
		}
	}
}

func (q *Queue) execute(t *Task) Outcome {
	if t.Cancelled() {
		return cancelledOutcome(t)
	}
	switch t.Kind {
	case Scan:
		entries, err := fsops.ListDirectory(t.Path, t.List)
		if t.Cancelled() {
			return cancelledOutcome(t)
		}
		if err != nil {
			return failedOutcome(t, err)
		}
		return Outcome{
			TaskID:     t.ID,
			Kind:       Scan,
			Status:     StatusScanned,
			Path:       t.Path,
			Generation: t.Generation,
			Entries:    entries,
		}
	case Copy:
		return mutationOutcome(t, fsops.Copy(t.Path, t.Dest, t.Cancelled))
	case Move:
		return mutationOutcome(t, fsops.Move(t.Path, t.Dest, t.Cancelled))
	case Delete:
		return mutationOutcome(t, fsops.Delete(t.Path))
	case Rename:
		return mutationOutcome(t, fsops.Rename(t.Path, t.Dest))
	case Mkdir:
		return mutationOutcome(t, fsops.Mkdir(t.Path))
	case Touch:
		return mutationOutcome(t, fsops.Touch(t.Path))
	default:
		log.Warnf("unknown task kind %d", t.Kind)
		return failedOutcome(t, fsops.NewOpError(fsops.Unknown, t.Path, "unknown task kind", nil))
	}
}

func mutationOutcome(t *Task, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{TaskID: t.ID, Kind: t.Kind, Status: StatusMutated, Path: t.Path, Dest: t.Dest}
	case err == fsops.ErrCancelled:
		return cancelledOutcome(t)
	default:
		return failedOutcome(t, err)
	}
}

func cancelledOutcome(t *Task) Outcome {
	return Outcome{TaskID: t.ID, Kind: t.Kind, Status: StatusCancelled, Path: t.Path, Generation: t.Generation}
}

func failedOutcome(t *Task, err error) Outcome {
	return Outcome{TaskID: t.ID, Kind: t.Kind, Status: StatusFailed, Path: t.Path, Dest: t.Dest, Generation: t.Generation, Err: err}
}

func findPending(pending map[string]*pendingScan, id uint64) *pendingScan {
	for _, ps := range pending {
		if ps.task.ID == id {
			return ps
		}
	}
	return nil
}

// tasksConflict reports whether two tasks touch overlapping filesystem
// state. Ancestor/descendant relationships count as overlap.
func tasksConflict(a, b *Task) bool {
	for _, pa := range taskPaths(a) {
		for _, pb := range taskPaths(b) {
			if pathsRelated(pa, pb) {
				return true
			}
		}
	}
	return false
}

func taskPaths(t *Task) []string {
	if t.Dest == "" {
		return []string{t.Path}
	}
	return []string{t.Path, t.Dest}
}

func pathsRelated(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}
