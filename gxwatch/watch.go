// Package gxwatch watches a fixed set of source files for changes and re-runs a build
// whenever one of them is modified. Grounded on Please's src/watch package: the debounce
// loop (drain and discard further events for a short interval before acting, so a single
// save that touches several files only triggers one rebuild) is lifted nearly unchanged,
// since `fsnotify` behaves the same regardless of what's consuming its events.
//
// No Non-goal in this project excludes watch mode, and fsnotify is already part of the
// retrieved pack's dependency stack (see SPEC_FULL.md), so it gets a real home here rather
// than sitting unused.
package gxwatch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("gxwatch")

// debounceInterval bounds how long a burst of filesystem events is collapsed into a single
// rebuild.
const debounceInterval = 50 * time.Millisecond

// Watch watches the directories containing each of paths and calls rebuild once whenever
// any of paths itself changes. It returns an error only if the underlying watcher can't be
// created; otherwise the debounced event loop runs until fsnotify closes its event or error
// channel, and Watch then returns nil.
func Watch(paths []string, rebuild func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := make(map[string]struct{}, len(paths))
	dirs := map[string]struct{}{}
	for _, p := range paths {
		watched[p] = struct{}{}
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			log.Errorf("failed to add watch on %s: %s", dir, err)
		}
	}

	log.Notice("watching for changes...")
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, interesting := watched[event.Name]; !interesting {
				continue
			}
			log.Infof("change detected: %s", event)
			drainDebounce(watcher)
			rebuild()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch error: %s", err)
		}
	}
}

// drainDebounce discards further events for debounceInterval, so a burst of saves (an
// editor writing a temp file then renaming it, several files touched by one commit) folds
// into a single rebuild instead of one per event.
func drainDebounce(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-watcher.Events:
		case <-time.After(debounceInterval):
			return
		}
	}
}
