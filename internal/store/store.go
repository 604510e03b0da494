// Package store persists the application state document (course
// progress, quiz log, sandbox/lab portfolios, scenario results).
// Implementations include PostgreSQL (source of truth), Redis
// (write-through cache with local failure recovery), and in-memory
// (for testing).
package store

import (
	"context"
	"errors"

	"github.com/coincademy/sim-engine/internal/model"
)

// ErrNotFound is returned when no state document exists for a user.
var ErrNotFound = errors.New("store: state not found")

// Store is the persistence interface for app-state documents.
// Documents are normalized (capped collections trimmed) before save.
type Store interface {
	// SaveState persists the full document for a user.
	SaveState(ctx context.Context, userID string, state *model.AppState) error

	// LoadState retrieves the document for a user, or ErrNotFound.
	LoadState(ctx context.Context, userID string) (*model.AppState, error)

	// DeleteState removes the document for a user. Deleting a missing
	// document is a no-op.
	DeleteState(ctx context.Context, userID string) error
}
