package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow is the hot-reload coalescing window.
const debounceWindow = 200 * time.Millisecond

// watcher drives hot reload: an fsnotify watch on the config file's parent
// directory (fsnotify does not reliably track a watch across a file being
// replaced rather than written in place, so the directory is watched and
// events are filtered by name), coalesced through a single timer reset on
// every event, grounded in the single-timer reset-on-event shape of the
// debouncer found in the retrieved corpus's watcher package — simplified
// here to one pending path rather than a per-path map, since a Loader only
// ever watches its own single config file.
type watcher struct {
	fsw       *fsnotify.Watcher
	loader    *Loader
	callbacks []ReloadCallback
	mu        sync.Mutex

	timer *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Watch starts hot-reload: on every write/create/rename event for the
// config file, debounce for 200ms, then reload. On a successful reload
// every registered callback (plus cb) observes the new snapshot; on a
// validation failure they all observe the fallback default instead. Watch
// may be called only once per Loader; the returned stop function is
// idempotent.
func (l *Loader) Watch(ctx context.Context, cb ReloadCallback) (stop func(), err error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(l.absPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &watcher{fsw: fsw, loader: l, callbacks: []ReloadCallback{cb}, stopCh: make(chan struct{})}
	l.watcher = w

	w.wg.Add(1)
	go w.run(ctx)

	return func() { w.stop() }, nil
}

// AddCallback registers an additional reload observer on an already-started
// watch.
func (l *Loader) AddCallback(cb ReloadCallback) {
	if l.watcher == nil {
		return
	}
	l.watcher.mu.Lock()
	l.watcher.callbacks = append(l.watcher.callbacks, cb)
	l.watcher.mu.Unlock()
}

func (w *watcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.loader.absPath) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.scheduleReload()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors never terminate the session; they are simply
			// not surfaced to reload callbacks, which only observe
			// Snapshot values.
		}
	}
}

func (w *watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, w.reload)
}

func (w *watcher) reload() {
	snap, err := w.loader.Load(context.Background())
	if err != nil {
		snap = Default()
	}

	w.mu.Lock()
	cbs := append([]ReloadCallback(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(snap)
	}
}

func (w *watcher) stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}
