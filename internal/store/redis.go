package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coincademy/sim-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis
// write-through cache. Writes go to the primary and refresh the cache;
// reads check Redis first then fall back to the primary.
//
// Cache failures are never surfaced to the caller: a failed cache write
// is logged, the stale key is dropped, and the write is retried once.
// Only primary-store errors propagate.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func (s *CachedStore) SaveState(ctx context.Context, userID string, state *model.AppState) error {
	if err := s.primary.SaveState(ctx, userID, state); err != nil {
		return err
	}
	s.cacheState(ctx, userID, state)
	return nil
}

func (s *CachedStore) LoadState(ctx context.Context, userID string) (*model.AppState, error) {
	data, err := s.rdb.Get(ctx, stateKey(userID)).Bytes()
	if err == nil {
		var state model.AppState
		if json.Unmarshal(data, &state) == nil {
			return &state, nil
		}
		// Corrupt cache entry: drop it and fall through to the primary.
		s.rdb.Del(ctx, stateKey(userID))
	}

	state, err := s.primary.LoadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheState(ctx, userID, state)
	return state, nil
}

func (s *CachedStore) DeleteState(ctx context.Context, userID string) error {
	if err := s.primary.DeleteState(ctx, userID); err != nil {
		return err
	}
	s.rdb.Del(ctx, stateKey(userID))
	return nil
}

// cacheState writes a document to Redis. On failure the key is cleared
// and the write retried once; a second failure is logged and dropped.
func (s *CachedStore) cacheState(ctx context.Context, userID string, state *model.AppState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}

	if err := s.rdb.Set(ctx, stateKey(userID), data, s.ttl).Err(); err != nil {
		slog.Warn("state cache write failed, clearing and retrying", "user", userID, "err", err)
		s.rdb.Del(ctx, stateKey(userID))
		if err := s.rdb.Set(ctx, stateKey(userID), data, s.ttl).Err(); err != nil {
			slog.Warn("state cache retry failed, serving from primary only", "user", userID, "err", err)
		}
	}
}

func stateKey(userID string) string { return fmt.Sprintf("appstate:%s", userID) }
