package ui

import (
	"sync"
	"time"
)

// DefaultResizeDuration is the debounce window for terminal resize
// storms.
const DefaultResizeDuration = 300 * time.Millisecond

// Debouncer coalesces rapid events into one deferred call.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn after the quiet period. A new call resets the
// timer, dropping the previously scheduled fn.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// ResizeDebouncer keeps only the newest window size while the terminal
// is being dragged, then delivers it once.
type ResizeDebouncer struct {
	debouncer     *Debouncer
	mu            sync.Mutex
	lastWidth     int
	lastHeight    int
	pendingWidth  int
	pendingHeight int
}

func NewResizeDebouncer(duration time.Duration) *ResizeDebouncer {
	return &ResizeDebouncer{debouncer: NewDebouncer(duration)}
}

// Resize records the newest size and schedules the handler with it
// after the quiet period.
func (rd *ResizeDebouncer) Resize(width, height int, handler func(int, int)) {
	rd.mu.Lock()
	rd.pendingWidth = width
	rd.pendingHeight = height
	rd.mu.Unlock()

	rd.debouncer.Debounce(func() {
		rd.mu.Lock()
		w, h := rd.pendingWidth, rd.pendingHeight
		rd.lastWidth = w
		rd.lastHeight = h
		rd.mu.Unlock()

		handler(w, h)
	})
}

// LastSize returns the last delivered size.
func (rd *ResizeDebouncer) LastSize() (width, height int) {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	return rd.lastWidth, rd.lastHeight
}

// Cancel drops any pending resize delivery.
func (rd *ResizeDebouncer) Cancel() {
	rd.debouncer.Cancel()
}
