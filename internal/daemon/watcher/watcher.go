// Package watcher wakes the capture engine when a local log directory
// changes, so bench runs do not wait for the next poll.
package watcher

import (
	"log"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event.
type EventType int

// Event types for file system changes.
const (
	EventLogChanged EventType = iota
	EventSettingsChanged
)

func (t EventType) String() string {
	switch t {
	case EventLogChanged:
		return "log"
	case EventSettingsChanged:
		return "settings"
	default:
		return "unknown"
	}
}

// DebounceDelay is how long a path must be quiet before its event fires.
const DebounceDelay = 100 * time.Millisecond

// Event represents a debounced file system change.
type Event struct {
	Type EventType
	Path string
}

// Watcher watches a log directory and, optionally, the settings file.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	pattern      *regexp.Regexp
	settingsPath string

	eventsChan chan Event
	wake       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	debounce   map[string]*time.Timer
	debounceMu sync.Mutex
}

// New creates a watcher that reports log files whose base name matches
// pattern. A nil pattern matches every file.
func New(pattern *regexp.Regexp) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher:  fsWatcher,
		pattern:    pattern,
		eventsChan: make(chan Event, 100),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		debounce:   make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel for receiving events.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Wake returns a channel that receives after each log change. Wakes that
// arrive while one is already queued are coalesced.
func (w *Watcher) Wake() <-chan struct{} {
	return w.wake
}

// WatchDir adds a log directory.
func (w *Watcher) WatchDir(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	log.Printf("[watcher] Watching %s", dir)
	return nil
}

// WatchSettings adds the directory holding the settings file. Editors
// replace files by rename, so the directory is watched rather than the file.
func (w *Watcher) WatchSettings(path string) error {
	w.settingsPath = filepath.Clean(path)
	if err := w.fsWatcher.Add(filepath.Dir(w.settingsPath)); err != nil {
		return err
	}
	log.Printf("[watcher] Watching %s", w.settingsPath)
	return nil
}

// Start starts processing events.
func (w *Watcher) Start() {
	go w.processEvents()
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()

		w.debounceMu.Lock()
		for path, timer := range w.debounce {
			timer.Stop()
			delete(w.debounce, path)
		}
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Rename covers atomic replace (write tmp, rename to target).
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	ev, ok := w.classify(filepath.Clean(event.Name))
	if !ok {
		return
	}
	w.debounceEvent(ev.Path, func() {
		w.emit(ev)
	})
}

func (w *Watcher) classify(path string) (Event, bool) {
	if w.settingsPath != "" && path == w.settingsPath {
		return Event{Type: EventSettingsChanged, Path: path}, true
	}
	if w.settingsPath != "" && filepath.Dir(path) == filepath.Dir(w.settingsPath) && w.pattern == nil {
		// Other files next to the settings file are not logs.
		return Event{}, false
	}
	if w.pattern != nil && !w.pattern.MatchString(filepath.Base(path)) {
		return Event{}, false
	}
	return Event{Type: EventLogChanged, Path: path}, true
}

// debounceEvent debounces events for the same path.
func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(DebounceDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}

func (w *Watcher) emit(ev Event) {
	select {
	case <-w.done:
		return
	default:
	}

	log.Printf("[watcher] %s changed: %s", ev.Type, ev.Path)
	select {
	case w.eventsChan <- ev:
	default:
		log.Printf("[watcher] Dropping event for %s, channel full", ev.Path)
	}
	if ev.Type == EventLogChanged {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}
