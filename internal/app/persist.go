package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fitgenius-bot/internal/models"
	"fitgenius-bot/internal/store"
	"fitgenius-bot/pkg/logger"
)

// Persister mirrors one user's committed (profile, plan) pair into a store
// under a single key. Every save replaces the previous snapshot.
type Persister struct {
	store  store.Store
	key    string
	logger *logger.Logger
}

func NewPersister(s store.Store, key string, l *logger.Logger) *Persister {
	if l == nil {
		l = logger.NewNop()
	}
	return &Persister{store: s, key: key, logger: l}
}

// StorageKey is the per-user key, e.g. "fitgenius_data_v4:12345".
func StorageKey(prefix string, userID int64) string {
	return fmt.Sprintf("%s:%d", prefix, userID)
}

func (p *Persister) Save(ctx context.Context, profile *models.UserProfile, plan *models.FitnessPlan) error {
	blob, err := json.Marshal(models.Snapshot{UserProfile: profile, FitnessPlan: plan})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := p.store.Put(ctx, p.key, blob); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when there is none. Unreadable
// or structurally invalid snapshots are deleted and reported as absent.
// Only store failures are returned as errors.
func (p *Persister) Load(ctx context.Context) (*models.Snapshot, error) {
	blob, err := p.store.Get(ctx, p.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap, reason := decodeSnapshot(blob)
	if reason != nil {
		p.logger.Warnw("Discarding unreadable snapshot", "key", p.key, "reason", reason)
		if err := p.store.Delete(ctx, p.key); err != nil {
			p.logger.Errorw("Failed to delete unreadable snapshot", "key", p.key, "error", err)
		}
		return nil, nil
	}
	return snap, nil
}

func (p *Persister) Clear(ctx context.Context) error {
	return p.store.Delete(ctx, p.key)
}

func decodeSnapshot(blob []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, err
	}
	if snap.UserProfile == nil || snap.FitnessPlan == nil {
		return nil, errors.New("snapshot incomplete")
	}
	if err := snap.FitnessPlan.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}
