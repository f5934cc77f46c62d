package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/store"
)

// PostgresReviewLogStore implements store.ReviewLogStore.
type PostgresReviewLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewLogStore creates a review log store on db.
func NewPostgresReviewLogStore(db store.DBTX, logger *slog.Logger) *PostgresReviewLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReviewLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_log_store")),
	}
}

var _ store.ReviewLogStore = (*PostgresReviewLogStore)(nil)

// WithTx implements store.ReviewLogStore.
func (s *PostgresReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore {
	return &PostgresReviewLogStore{db: tx, logger: s.logger}
}

// Append implements store.ReviewLogStore.
func (s *PostgresReviewLogStore) Append(ctx context.Context, entry *domain.ReviewLog) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !entry.Rating.IsValid() {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidRating)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_logs
			(id, user_id, card_id, rating, state_before, state_after, interval_ns, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.CardID, int(entry.Rating),
		entry.StateBefore.String(), entry.StateAfter.String(),
		int64(entry.Interval), entry.ReviewedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to append review log",
			slog.String("card_id", entry.CardID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("review_log", "append", "insert failed", MapError(err))
	}
	return nil
}

// ListByCard implements store.ReviewLogStore.
func (s *PostgresReviewLogStore) ListByCard(ctx context.Context, userID, cardID uuid.UUID) ([]domain.ReviewLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, card_id, rating, state_before, state_after, interval_ns, reviewed_at
		FROM review_logs
		WHERE user_id = $1 AND card_id = $2
		ORDER BY reviewed_at ASC, id ASC`,
		userID, cardID,
	)
	if err != nil {
		return nil, store.NewStoreError("review_log", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ReviewLog
	for rows.Next() {
		var (
			entry         domain.ReviewLog
			rating        int
			before, after string
			intervalNS    int64
			reviewedAt    time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.CardID, &rating,
			&before, &after, &intervalNS, &reviewedAt); err != nil {
			return nil, store.NewStoreError("review_log", "list", "scan failed", err)
		}
		entry.Rating = domain.Rating(rating)
		if entry.StateBefore, err = domain.ParseState(before); err != nil {
			return nil, store.NewStoreError("review_log", "list", "bad state label", err)
		}
		if entry.StateAfter, err = domain.ParseState(after); err != nil {
			return nil, store.NewStoreError("review_log", "list", "bad state label", err)
		}
		entry.Interval = time.Duration(intervalNS)
		entry.ReviewedAt = reviewedAt.UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_log", "list", "iteration failed", MapError(err))
	}
	return out, nil
}
