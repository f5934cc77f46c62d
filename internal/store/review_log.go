package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
)

// ReviewLogStore is the append-only history of ratings.
type ReviewLogStore interface {
	Append(ctx context.Context, log *domain.ReviewLog) error

	// ListByCard returns a card's logs in the order they were reviewed.
	ListByCard(ctx context.Context, userID, cardID uuid.UUID) ([]domain.ReviewLog, error)

	WithTx(tx *sql.Tx) ReviewLogStore
}
