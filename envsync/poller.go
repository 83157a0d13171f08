package envsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// baselineResyncer is the subset of Watcher the poller needs to keep the
// local change detector from echoing pull-driven writes back as edits.
type baselineResyncer interface {
	ResyncBaseline(Snapshot)
}

// Poller detects remote edits by polling. The remote store has no push
// notification, so the poll interval is the sole latency bound on
// remote-change visibility.
type Poller struct {
	store       RemoteStore
	cipher      *Cipher
	file        *EnvFile
	project     string
	environment string
	interval    time.Duration
	logger      *slog.Logger

	// gate is the session's single in-flight-operation guard, shared
	// with the push path so a merge never races a push on the file.
	gate *semaphore.Weighted

	// resync is nil in pull-only sessions where no watcher runs.
	resync baselineResyncer
}

// NewPoller creates a poller for one (project, environment) pair.
func NewPoller(store RemoteStore, cipher *Cipher, file *EnvFile, project, environment string,
	interval time.Duration, gate *semaphore.Weighted, resync baselineResyncer, logger *slog.Logger) *Poller {
	return &Poller{
		store:       store,
		cipher:      cipher,
		file:        file,
		project:     project,
		environment: environment,
		interval:    interval,
		gate:        gate,
		resync:      resync,
		logger:      logger,
	}
}

// Run polls on the configured interval until the context is cancelled.
// A failed tick is logged and skipped; only cancellation stops the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("polling remote for changes",
		slog.String("environment", p.environment),
		slog.Duration("interval", p.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Warn("poll tick failed",
					slog.String("environment", p.environment),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Poll performs one pull-and-merge under the session gate.
func (p *Poller) Poll(ctx context.Context) error {
	if err := p.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.gate.Release(1)

	changes, found, err := mergeRemote(ctx, p.store, p.cipher, p.file, p.project, p.environment, p.resync)
	if err != nil {
		return err
	}

	if found && !changes.Empty() {
		p.logger.Info("merged remote changes",
			slog.String("environment", p.environment),
			slog.Int("added", len(changes.Added)),
			slog.Int("modified", len(changes.Modified)),
			slog.Int("removed", len(changes.Removed)),
		)
	}

	return nil
}

// mergeRemote pulls the remote snapshot, decrypts it, and diffs it against
// the file's current content (read directly, not the watcher's baseline).
// When the diff is non-empty it writes the decrypted snapshot over the
// file and resynchronizes the watcher baseline before returning, so the
// write cannot be mistaken for an independent local edit. Shared by the
// poller and one-shot pull.
func mergeRemote(ctx context.Context, store RemoteStore, cipher *Cipher, file *EnvFile,
	project, environment string, resync baselineResyncer) (ChangeSet, bool, error) {
	records, found, err := store.PullSnapshot(ctx, project, environment)
	if err != nil {
		return ChangeSet{}, false, err
	}
	if !found {
		return ChangeSet{}, false, nil
	}

	remote, err := DecryptSnapshot(cipher, records)
	if err != nil {
		return ChangeSet{}, true, fmt.Errorf("decrypting remote snapshot: %w", err)
	}

	local, err := file.Snapshot()
	if err != nil {
		return ChangeSet{}, true, err
	}

	changes := Diff(local, remote)
	if changes.Empty() {
		return changes, true, nil
	}

	// A failed write here is fatal for the merge: a half-applied local
	// state must not be silently accepted.
	if err := file.WriteSnapshot(remote); err != nil {
		return changes, true, err
	}

	if resync != nil {
		resync.ResyncBaseline(remote)
	}

	return changes, true, nil
}
