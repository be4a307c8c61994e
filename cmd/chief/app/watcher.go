package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"chiefkit/internal/logging"
)

// draftWatcher watches the drafts directory for externally edited
// mirror files and reports settled changes as bare draft names on the
// out channel. Events settle through a short debounce window so an
// editor's save burst arrives as one notification.
type draftWatcher struct {
	fw  *fsnotify.Watcher
	dir string
	out chan<- string

	mu         sync.Mutex
	pending    map[string]time.Time
	selfWrites map[string]time.Time

	settleAfter time.Duration
	closeOnce   sync.Once
	stopCh      chan struct{}
	doneCh      chan struct{}
}

const selfWriteGrace = 2 * time.Second

func newDraftWatcher(dir string, out chan string) (*draftWatcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create drafts directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	dw := &draftWatcher{
		fw:          fw,
		dir:         dir,
		out:         out,
		pending:     make(map[string]time.Time),
		selfWrites:  make(map[string]time.Time),
		settleAfter: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	go dw.run()

	logging.GameData("Draft watcher: watching %s", dir)
	return dw, nil
}

// MarkSelfWrite suppresses the events our own mirror write is about to
// raise. Call it before writing the file.
func (dw *draftWatcher) MarkSelfWrite(path string) {
	dw.mu.Lock()
	dw.selfWrites[path] = time.Now()
	dw.mu.Unlock()
}

// Close stops the event loop and closes the out channel. Safe to call
// more than once.
func (dw *draftWatcher) Close() {
	dw.closeOnce.Do(func() {
		close(dw.stopCh)
		<-dw.doneCh
		if err := dw.fw.Close(); err != nil {
			logging.GameDataError("Draft watcher: close failed: %v", err)
		}
		close(dw.out)
	})
}

func (dw *draftWatcher) run() {
	defer close(dw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-dw.stopCh:
			return

		case event, ok := <-dw.fw.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)

		case err, ok := <-dw.fw.Errors:
			if !ok {
				return
			}
			logging.GameDataError("Draft watcher: %v", err)

		case <-ticker.C:
			dw.flush()
		}
	}
}

func (dw *draftWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()
	if written, ok := dw.selfWrites[event.Name]; ok && time.Since(written) < selfWriteGrace {
		return
	}
	dw.pending[event.Name] = time.Now()
}

// flush forwards events that have settled past the debounce window and
// prunes expired self-write markers.
func (dw *draftWatcher) flush() {
	now := time.Now()

	dw.mu.Lock()
	var settled []string
	for path, at := range dw.pending {
		if now.Sub(at) >= dw.settleAfter {
			settled = append(settled, path)
			delete(dw.pending, path)
		}
	}
	for path, at := range dw.selfWrites {
		if now.Sub(at) >= selfWriteGrace {
			delete(dw.selfWrites, path)
		}
	}
	dw.mu.Unlock()

	for _, path := range settled {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		logging.GameDataDebug("Draft watcher: external change to %s", name)
		select {
		case dw.out <- name:
		default:
		}
	}
}
