package envsync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent is one debounced local change: the net difference from the
// watcher's baseline to the file's current content, plus that content.
type ChangeEvent struct {
	Changes  ChangeSet
	Snapshot Snapshot
}

// Watcher detects local edits to the env file. Raw filesystem
// notifications are debounced with a single timer: each notification
// cancels and restarts it, so a burst of edits coalesces into one event
// carrying only the net change against the baseline.
//
// The baseline is private to the watcher. It advances when an event is
// emitted, and is explicitly resynchronized via ResyncBaseline after a
// pull-driven write so the engine's own writes never echo back as local
// edits.
type Watcher struct {
	file     *EnvFile
	debounce time.Duration
	logger   *slog.Logger
	events   chan ChangeEvent

	mu       sync.Mutex
	baseline Snapshot
}

// NewWatcher creates a watcher for the given env file.
func NewWatcher(file *EnvFile, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		file:     file,
		debounce: debounce,
		logger:   logger,
		events:   make(chan ChangeEvent, 1),
	}
}

// Events returns the channel of debounced change events. Closed when
// Watch returns.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// ResyncBaseline replaces the baseline with the given snapshot. Called by
// the poller immediately after it writes pulled content over the file, so
// the resulting filesystem notification diffs to nothing.
func (w *Watcher) ResyncBaseline(snap Snapshot) {
	w.mu.Lock()
	w.baseline = snap.Clone()
	w.mu.Unlock()
}

func (w *Watcher) currentBaseline() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.baseline
}

// Watch records the current file content as the baseline and monitors for
// changes until the context is cancelled. The events channel is closed on
// return, and the filesystem subscription and any pending debounce timer
// are released before it returns.
func (w *Watcher) Watch(ctx context.Context) error {
	defer close(w.events)

	initial, err := w.file.Snapshot()
	if err != nil {
		return fmt.Errorf("reading initial baseline: %w", err)
	}
	w.ResyncBaseline(initial)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the parent directory rather than the file itself: editors and
	// our own atomic writes replace the file via rename, which would
	// otherwise drop the watch.
	dir := filepath.Dir(w.file.Path())
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.logger.Info("watching for local changes",
		slog.String("file", w.file.Path()),
		slog.Duration("debounce", w.debounce),
	)

	// Single debounce timer, created stopped. Each relevant notification
	// cancels and restarts it; it only fires after a quiet period.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}
			if filepath.Clean(event.Name) != w.file.Path() {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			if err := w.emitIfChanged(ctx); err != nil {
				// Read failures do not stop the watcher; the next
				// notification re-arms the timer and retries.
				w.logger.Warn("reading env file after change",
					slog.String("file", w.file.Path()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// emitIfChanged re-reads the file, diffs it against the baseline, and
// emits a change event when the diff is non-empty. The baseline advances
// only when an event is emitted.
func (w *Watcher) emitIfChanged(ctx context.Context) error {
	current, err := w.file.Snapshot()
	if err != nil {
		return err
	}

	changes := Diff(w.currentBaseline(), current)
	if changes.Empty() {
		return nil
	}

	select {
	case w.events <- ChangeEvent{Changes: changes, Snapshot: current}:
		w.ResyncBaseline(current)
		w.logger.Debug("local change detected",
			slog.Int("added", len(changes.Added)),
			slog.Int("modified", len(changes.Modified)),
			slog.Int("removed", len(changes.Removed)),
		)
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
