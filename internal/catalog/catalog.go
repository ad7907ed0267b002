package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tordrt/schemaguard/internal/db"
)

// Fingerprinter computes the live structural fingerprint of a set of schemas
type Fingerprinter interface {
	Fingerprint(ctx context.Context, schemas []string) (string, error)
}

// Catalog owns the process cache of schema cards.
// It is the only writer; readers get immutable snapshots and never block on a rebuild.
type Catalog struct {
	builder *Builder
	live    Fingerprinter
	store   *Store
	history *History
	logger  *zap.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// Option configures a Catalog
type Option func(*Catalog)

// WithHistory records every rebuild in h
func WithHistory(h *History) Option {
	return func(c *Catalog) {
		c.history = h
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a catalog. Nothing is loaded until Load or Refresh is called.
func New(builder *Builder, live Fingerprinter, store *Store, opts ...Option) *Catalog {
	c := &Catalog{
		builder: builder,
		live:    live,
		store:   store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the published snapshot, or nil before the first load
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// loadKey coalesces every caller that may rebuild, so at most one build runs at a time
const loadKey = "catalog"

// Load returns a snapshot that matches the live schema.
// While the on-disk index fingerprint equals the published snapshot's, the snapshot is returned
// without touching the database. force skips every cache and rebuilds.
func (c *Catalog) Load(ctx context.Context, force bool) (*Snapshot, error) {
	if force {
		return c.do(ctx, true, func(ctx context.Context) (*Snapshot, error) {
			schemas, err := c.builder.EligibleSchemas(ctx)
			if err != nil {
				return nil, err
			}
			return c.rebuild(ctx, schemas, "", ReasonForced)
		})
	}

	if cur := c.current.Load(); cur != nil {
		if index, err := c.store.ReadIndex(); err == nil && index.Fingerprint == cur.Fingerprint {
			return cur, nil
		}
	}
	return c.Refresh(ctx)
}

// Refresh rechecks the live fingerprint and reloads or rebuilds when it moved
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.do(ctx, false, c.sync)
}

type outcome struct {
	snap   *Snapshot
	forced bool
}

// do runs fn once for all concurrent callers. The shared run is detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx is done.
// A forced caller that joined a plain sync waits for it, then runs its own rebuild.
func (c *Catalog) do(ctx context.Context, forced bool, fn func(ctx context.Context) (*Snapshot, error)) (*Snapshot, error) {
	for {
		ch := c.group.DoChan(loadKey, func() (any, error) {
			snap, err := fn(context.WithoutCancel(ctx))
			return outcome{snap: snap, forced: forced}, err
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			out := res.Val.(outcome)
			if forced && !out.forced {
				continue
			}
			return out.snap, nil
		}
	}
}

func (c *Catalog) sync(ctx context.Context) (*Snapshot, error) {
	schemas, err := c.builder.EligibleSchemas(ctx)
	if err != nil {
		return nil, err
	}
	live, err := c.live.Fingerprint(ctx, schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to compute live fingerprint: %w", err)
	}

	index, err := c.store.ReadIndex()
	switch {
	case err != nil:
		c.logger.Debug("catalog index unavailable", zap.Error(err))
		return c.rebuild(ctx, schemas, live, reasonFor(err))
	case index.Fingerprint != live:
		c.logger.Debug("catalog fingerprint changed",
			zap.String("stored", short(index.Fingerprint)),
			zap.String("live", short(live)))
		return c.rebuild(ctx, schemas, live, ReasonFingerprintChanged)
	}

	if cur := c.current.Load(); cur != nil && cur.Fingerprint == live {
		c.logger.Debug("catalog cache hit", zap.String("fingerprint", short(live)))
		return cur, nil
	}

	cards, _, err := c.store.Load()
	if err != nil {
		c.logger.Debug("catalog cards unusable", zap.Error(err))
		return c.rebuild(ctx, schemas, live, ReasonCorruptCache)
	}

	snap := NewSnapshot(cards, live, schemas)
	snap.FromDisk = true
	c.current.Store(snap)
	c.logger.Debug("catalog loaded from disk",
		zap.Int("tables", len(cards)),
		zap.String("fingerprint", short(live)))
	return snap, nil
}

// rebuild reflects every table, persists the result and publishes it.
// live is the fingerprint observed before the build, or "" when it was not computed.
func (c *Catalog) rebuild(ctx context.Context, schemas []string, live, reason string) (*Snapshot, error) {
	start := time.Now()

	cards, err := c.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	fingerprint := db.FingerprintCards(cards)
	if live != "" && live != fingerprint {
		c.logger.Warn("reflected cards disagree with live fingerprint",
			zap.String("cards", short(fingerprint)),
			zap.String("live", short(live)))
	}

	if err := c.store.Save(cards, fingerprint); err != nil {
		return nil, fmt.Errorf("failed to persist catalog: %w", err)
	}

	snap := NewSnapshot(cards, fingerprint, schemas)
	c.current.Store(snap)

	c.logger.Info("catalog rebuilt",
		zap.String("reason", reason),
		zap.Int("tables", len(cards)),
		zap.Int("columns", snap.ColumnCount()),
		zap.String("fingerprint", short(fingerprint)),
		zap.Duration("duration", time.Since(start)))

	if c.history != nil {
		if _, err := c.history.Record(ctx, snap, reason); err != nil {
			c.logger.Warn("failed to record catalog build", zap.Error(err))
		}
	}
	return snap, nil
}

func reasonFor(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return ReasonMissingIndex
	}
	return ReasonCorruptCache
}
