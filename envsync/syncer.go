package envsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/envsync/envsync/internal/state"
)

// Direction selects which way a sync session moves data.
type Direction string

const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
	DirectionBoth Direction = "both"
)

// ParseDirection validates a direction flag value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionPush, DirectionPull, DirectionBoth:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("invalid direction %q (want push, pull, or both)", s)
	}
}

// SyncerConfig holds the parameters for one sync session.
type SyncerConfig struct {
	Store        RemoteStore
	Cipher       *Cipher
	File         *EnvFile
	State        *state.State // optional; cursor recording is skipped when nil
	Project      string
	Environment  string
	Direction    Direction
	Debounce     time.Duration
	PollInterval time.Duration
}

// Syncer owns one sync session, one-shot or watch mode. All push and pull
// operations in a session go through a single weight-1 semaphore, so at
// most one is in flight at any instant and the poller's merge writes never
// race a push reading the same file.
type Syncer struct {
	store       RemoteStore
	cipher      *Cipher
	file        *EnvFile
	state       *state.State
	logger      *slog.Logger
	project     string
	environment string
	direction   Direction

	debounce     time.Duration
	pollInterval time.Duration

	gate *semaphore.Weighted
}

// NewSyncer creates a sync session from the given configuration.
func NewSyncer(cfg SyncerConfig, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:        cfg.Store,
		cipher:       cfg.Cipher,
		file:         cfg.File,
		state:        cfg.State,
		logger:       logger,
		project:      cfg.Project,
		environment:  cfg.Environment,
		direction:    cfg.Direction,
		debounce:     cfg.Debounce,
		pollInterval: cfg.PollInterval,
		gate:         semaphore.NewWeighted(1),
	}
}

// Run performs a one-shot sync: push then pull, restricted by direction,
// strictly sequential. The first fatal error is returned annotated with
// the failing phase and environment.
func (s *Syncer) Run(ctx context.Context) error {
	if s.direction != DirectionPull {
		if err := s.Push(ctx); err != nil {
			return fmt.Errorf("push failed for environment %s: %w", s.environment, err)
		}
	}

	if s.direction != DirectionPush {
		if err := s.Pull(ctx); err != nil {
			return fmt.Errorf("pull failed for environment %s: %w", s.environment, err)
		}
	}

	return nil
}

// Watch runs a continuous sync session: the watcher pushes debounced local
// edits (unless pull-only) and the poller merges remote edits (unless
// push-only). It blocks until the context is cancelled, then tears both
// down and returns nil.
func (s *Syncer) Watch(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var watcher *Watcher
	if s.direction != DirectionPull {
		watcher = NewWatcher(s.file, s.debounce, s.logger)
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
		g.Go(func() error {
			return s.pushLoop(gctx, watcher.Events())
		})
	}

	if s.direction != DirectionPush {
		// The resyncer is nil in pull-only mode: with no watcher running
		// there is no baseline to protect.
		var resync baselineResyncer
		if watcher != nil {
			resync = watcher
		}
		poller := NewPoller(s.store, s.cipher, s.file, s.project, s.environment,
			s.pollInterval, s.gate, resync, s.logger)
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	s.logger.Info("watch session started",
		slog.String("project", s.project),
		slog.String("environment", s.environment),
		slog.String("direction", string(s.direction)),
	)

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		// External cancellation is the normal way a watch session ends.
		s.logger.Info("watch session stopped")
		return nil
	}

	return err
}

// pushLoop drains debounced change events and pushes the file content they
// carry. Events that queue up behind an in-flight push are coalesced down
// to the newest one: each event already carries the full net snapshot, so
// pushing an intermediate state would only waste a full-replace round trip.
// Push failures in watch mode are logged and the session continues; the
// next local or remote event retries.
func (s *Syncer) pushLoop(ctx context.Context, events <-chan ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			// Coalesce anything already queued; the latest snapshot
			// supersedes the rest.
			for drained := false; !drained; {
				select {
				case next, ok := <-events:
					if !ok {
						drained = true
						break
					}
					ev = next
				default:
					drained = true
				}
			}

			if err := s.pushSnapshot(ctx, ev.Snapshot); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("push failed, will retry on next change",
					slog.String("environment", s.environment),
					slog.String("error", err.Error()),
				)
				continue
			}

			s.logger.Info("pushed local changes",
				slog.String("environment", s.environment),
				slog.Int("added", len(ev.Changes.Added)),
				slog.Int("modified", len(ev.Changes.Modified)),
				slog.Int("removed", len(ev.Changes.Removed)),
			)
		}
	}
}

// Push encrypts the current file content and pushes it as a full-replace
// snapshot, under the session gate.
func (s *Syncer) Push(ctx context.Context) error {
	snap, err := s.file.Snapshot()
	if err != nil {
		return err
	}

	return s.pushSnapshot(ctx, snap)
}

func (s *Syncer) pushSnapshot(ctx context.Context, snap Snapshot) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	records, err := EncryptSnapshot(s.cipher, snap)
	if err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}

	if err := s.store.PushSnapshot(ctx, s.project, s.environment, records); err != nil {
		return err
	}

	s.recordCursor(snap, func(sc *state.SyncCursor, now int64) { sc.PushedAt = now })

	return nil
}

// Pull performs one pull-and-merge under the session gate. There is no
// watcher in one-shot mode, so no baseline resync is needed.
func (s *Syncer) Pull(ctx context.Context) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	changes, found, err := mergeRemote(ctx, s.store, s.cipher, s.file, s.project, s.environment, nil)
	if err != nil {
		return err
	}

	if !found {
		s.logger.Info("nothing to pull",
			slog.String("environment", s.environment),
		)
		return nil
	}

	snap, err := s.file.Snapshot()
	if err == nil {
		s.recordCursor(snap, func(sc *state.SyncCursor, now int64) { sc.PulledAt = now })
	}

	s.logger.Info("pull complete",
		slog.String("environment", s.environment),
		slog.Int("added", len(changes.Added)),
		slog.Int("modified", len(changes.Modified)),
		slog.Int("removed", len(changes.Removed)),
	)

	return nil
}

// recordCursor persists the sync cursor after a successful push or pull.
// Cursor failures are logged, never fatal: the cursor is advisory and
// self-corrects on the next successful sync.
func (s *Syncer) recordCursor(snap Snapshot, stamp func(*state.SyncCursor, int64)) {
	if s.state == nil {
		return
	}

	h := sha256.Sum256(MarshalEnv(snap))
	now := time.Now().UnixMilli()

	existing, err := s.state.GetCursor(s.project, s.environment)
	if err != nil {
		s.logger.Warn("reading sync cursor", slog.String("error", err.Error()))
	}

	sc := state.SyncCursor{Project: s.project, Environment: s.environment}
	if existing != nil {
		sc = *existing
	}
	sc.ContentHash = hex.EncodeToString(h[:])
	sc.RecordCount = len(snap)
	stamp(&sc, now)

	if err := s.state.SetCursor(sc); err != nil {
		s.logger.Warn("persisting sync cursor", slog.String("error", err.Error()))
	}
}
