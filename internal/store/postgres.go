package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coincademy/sim-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. The whole app-state document is stored as a single JSONB
// column; decimal values survive the round trip as JSON strings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the app_state table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS app_state (
			user_id    TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresStore) SaveState(ctx context.Context, userID string, state *model.AppState) error {
	// Normalize a shallow copy; trimming only reslices, so the caller's
	// document is left untouched.
	doc := *state
	doc.Normalize()
	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal state for %s: %w", userID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO app_state (user_id, doc, updated_at)
		 VALUES ($1, $2::JSONB, now())
		 ON CONFLICT (user_id) DO UPDATE SET doc = $2::JSONB, updated_at = now()`,
		userID, data,
	)
	return err
}

func (s *PostgresStore) LoadState(ctx context.Context, userID string) (*model.AppState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM app_state WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", userID, err)
	}

	var state model.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state for %s: %w", userID, err)
	}
	return &state, nil
}

func (s *PostgresStore) DeleteState(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM app_state WHERE user_id = $1`, userID)
	return err
}
