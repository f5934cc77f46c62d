package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
)

// CardStore persists cards and answers due-card queries.
type CardStore interface {
	// Create inserts a card. It does not create the card's review state;
	// the service does that in the same transaction.
	Create(ctx context.Context, card *domain.Card) error

	// GetByID returns a card or ErrCardNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// GetNextReviewCard returns the user's card with the earliest due time
	// not after now, or ErrNoCardsDue.
	GetNextReviewCard(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.DueCard, error)

	// ListDue returns up to limit due cards ordered by due time, then card
	// ID. A non-positive limit means no limit.
	ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.DueCard, error)

	// WithTx returns a store bound to tx.
	WithTx(tx *sql.Tx) CardStore
}
