package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
)

// ReviewStateStore persists the one ReviewState each card owns.
type ReviewStateStore interface {
	// Get returns the state for a user's card, or ErrReviewStateNotFound.
	Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error)

	// GetForUpdate is Get with a row lock where the backend supports one.
	// Call it inside a transaction when the state is about to be replaced.
	GetForUpdate(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error)

	// Upsert writes the state, replacing any existing row for the card.
	// There is no concurrency token: the last write wins.
	// Returns ErrInvalidEntity if the state fails validation.
	Upsert(ctx context.Context, state *domain.ReviewState) error

	// WithTx returns a store bound to tx.
	WithTx(tx *sql.Tx) ReviewStateStore
}
