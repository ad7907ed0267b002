package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/schemaguard/internal/db"
)

// Rebuild reasons recorded in the history
const (
	ReasonForced             = "forced"
	ReasonMissingIndex       = "missing_index"
	ReasonFingerprintChanged = "fingerprint_changed"
	ReasonCorruptCache       = "corrupt_cache"
)

// History keeps a log of catalog rebuilds in SQLite
type History struct {
	client *db.SQLiteClient
	now    func() time.Time
}

// NewHistory creates a history backed by an opened SQLite client
func NewHistory(client *db.SQLiteClient) *History {
	return &History{client: client, now: time.Now}
}

// Record stores one rebuild of snap
func (h *History) Record(ctx context.Context, snap *Snapshot, reason string) (db.BuildRecord, error) {
	rec := db.BuildRecord{
		ID:          uuid.NewString(),
		Fingerprint: snap.Fingerprint,
		Tables:      len(snap.Cards),
		Columns:     snap.ColumnCount(),
		Schemas:     snap.Schemas,
		Reason:      reason,
		BuiltAt:     h.now().UTC(),
	}
	if err := h.client.InsertBuild(ctx, rec); err != nil {
		return db.BuildRecord{}, err
	}
	return rec, nil
}

// Latest returns the newest record, or nil when nothing was recorded yet
func (h *History) Latest(ctx context.Context) (*db.BuildRecord, error) {
	recs, err := h.client.RecentBuilds(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// List returns up to limit records, newest first
func (h *History) List(ctx context.Context, limit int) ([]db.BuildRecord, error) {
	return h.client.RecentBuilds(ctx, limit)
}

// Close closes the underlying database
func (h *History) Close() error {
	return h.client.Close()
}
