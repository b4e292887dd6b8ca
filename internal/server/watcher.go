package server

import (
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay collapses the burst of events editors emit on save.
const debounceDelay = 100 * time.Millisecond

// Watcher watches page sources and triggers reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	rootDir  string
	onReload func(filePath string) error
	done     chan struct{}
	stopOnce sync.Once
	debug    bool
}

// NewWatcher creates a new file watcher for the given directory.
func NewWatcher(rootDir string, onReload func(string) error, debug bool) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		rootDir:  rootDir,
		onReload: onReload,
		done:     make(chan struct{}),
		debug:    debug,
	}

	if err := w.addTree(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// addTree adds dir and its subdirectories, skipping hidden ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		if w.debug {
			log.Printf("[Watch] Added directory: %s", path)
		}
		return nil
	})
}

// relevant reports whether an event should trigger a reload.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Ext(event.Name) {
	case ".md", ".yaml", ".yml":
		return true
	}
	return false
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		var (
			timer   *time.Timer
			pending string
			fire    <-chan time.Time
		)

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				// New directories need their own watch
				if event.Has(fsnotify.Create) {
					if err := w.addTree(event.Name); err == nil && w.debug {
						log.Printf("[Watch] Watching new path: %s", event.Name)
					}
				}

				if !relevant(event) {
					continue
				}

				relPath, err := filepath.Rel(w.rootDir, event.Name)
				if err != nil {
					relPath = event.Name
				}
				if w.debug {
					log.Printf("[Watch] %s: %s", event.Op, relPath)
				}

				pending = relPath
				if timer == nil {
					timer = time.NewTimer(debounceDelay)
				} else {
					timer.Reset(debounceDelay)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if err := w.onReload(pending); err != nil {
					log.Printf("[Watch] Reload failed for %s: %v", pending, err)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Watch] Error: %v", err)

			case <-w.done:
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}
	}()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
