// Package watch adapts fsnotify to the single-directory model of the file
// manager: at any moment exactly one directory (the one on screen) is
// watched, and changes inside it are forwarded as plain paths.
package watch

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"rove/internal/log"
)

// Sink receives change notifications. The dispatcher implements it.
type Sink interface {
	FsChanged(path string)
}

// Watcher monitors the currently displayed directory for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	sink      Sink

	// Lock for current and running; Retarget can race with Stop.
	mutex   sync.Mutex
	current string
	running bool

	stopChan chan struct{}
}

// New creates a watcher that forwards change notifications to sink.
func New(sink Sink) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		sink:      sink,
		stopChan:  make(chan struct{}),
	}, nil
}

// Retarget switches the watched directory to dir, dropping the previous
// one. Retargeting to the current directory is a no-op.
func (w *Watcher) Retarget(dir string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if dir == w.current {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if w.current != "" {
		if err := w.fsWatcher.Remove(w.current); err != nil {
			// The old directory may already be gone; nothing to do.
			log.LogWithFields(log.F("directory", w.current), log.F("error", err)).
				Debug("Could not unwatch previous directory")
		}
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		w.current = ""
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.current = dir
	log.LogWithFields(log.F("directory", dir)).Debug("Watching directory")
	return nil
}

// Start begins forwarding events. It is an error to start twice.
func (w *Watcher) Start() error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mutex.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-w.fsWatcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
					event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
					w.sink.FsChanged(event.Name)
				}

			case err, ok := <-w.fsWatcher.Errors:
				if !ok {
					return
				}
				log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

			case <-w.stopChan:
				return
			}
		}
	}()
	return nil
}

// Stop halts event forwarding and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.running {
		return
	}
	close(w.stopChan)
	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("error", err)).Error("Error closing fsnotify watcher")
	}
	w.running = false
}

// Current returns the directory being watched, if any.
func (w *Watcher) Current() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.current
}
