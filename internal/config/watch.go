package config

import (
	"os"
	"sync"
	"time"
)

// Watcher polls a set of files and calls a callback when any of them is
// modified. It is used to re-run a digitization while tuning a config file.
type Watcher struct {
	paths    []string
	interval time.Duration
	onChange func(path string)

	mu       sync.Mutex
	baseline map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher records the current modification time of each path. Paths that
// do not exist yet are watched for creation.
func NewWatcher(interval time.Duration, onChange func(path string), paths ...string) *Watcher {
	w := &Watcher{
		paths:    paths,
		interval: interval,
		onChange: onChange,
		baseline: make(map[string]time.Time, len(paths)),
	}
	for _, p := range paths {
		w.baseline[p] = modTime(p)
	}
	return w
}

// Start begins polling in a background goroutine. The callback runs on that
// goroutine.
func (w *Watcher) Start() {
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watchLoop()
}

// Stop ends polling and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			for _, p := range w.Changed() {
				if w.onChange != nil {
					w.onChange(p)
				}
			}
		}
	}
}

// Changed returns the paths modified since the last check and moves their
// baseline forward.
func (w *Watcher) Changed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var changed []string
	for _, p := range w.paths {
		mt := modTime(p)
		if mt.After(w.baseline[p]) {
			w.baseline[p] = mt
			changed = append(changed, p)
		}
	}
	return changed
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
