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

// PostgresCardStore implements store.CardStore.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a card store on db. If logger is nil,
// slog.Default() is used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

var _ store.CardStore = (*PostgresCardStore)(nil)

// WithTx implements store.CardStore.
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{db: tx, logger: s.logger}
}

// Create implements store.CardStore.
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (id, user_id, content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		card.ID, card.UserID, string(card.Content), card.CreatedAt.UTC(), card.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create card",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("card", "create", "insert failed", MapError(err))
	}

	log.Debug("card created", slog.String("card_id", card.ID.String()))
	return nil
}

// GetByID implements store.CardStore.
func (s *PostgresCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at, updated_at FROM cards WHERE id = $1`, id)

	var card domain.Card
	if err := scanCard(row, &card); err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card",
			slog.String("card_id", id.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", "get", "query failed", mapped)
	}
	return &card, nil
}

// GetNextReviewCard implements store.CardStore.
func (s *PostgresCardStore) GetNextReviewCard(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.DueCard, error) {
	due, err := s.ListDue(ctx, userID, now, 1)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, store.ErrNoCardsDue
	}
	return &due[0], nil
}

// ListDue implements store.CardStore.
func (s *PostgresCardStore) ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.DueCard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// LIMIT NULL is no limit.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.content, c.created_at, c.updated_at,
		       rs.user_id, rs.card_id, rs.state, rs.step, rs.stability, rs.difficulty,
		       rs.due, rs.last_review, rs.review_count
		FROM review_states rs
		JOIN cards c ON c.id = rs.card_id
		WHERE rs.user_id = $1 AND rs.due <= $2
		ORDER BY rs.due ASC, rs.card_id ASC
		LIMIT $3`,
		userID, now.UTC(), limitArg,
	)
	if err != nil {
		log.Error("failed to query due cards",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", "list_due", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.DueCard
	for rows.Next() {
		var (
			dc         domain.DueCard
			content    []byte
			stateLabel string
			lastReview sql.NullTime
		)
		err := rows.Scan(
			&dc.Card.ID, &dc.Card.UserID, &content, &dc.Card.CreatedAt, &dc.Card.UpdatedAt,
			&dc.State.UserID, &dc.State.CardID, &stateLabel, &dc.State.Step,
			&dc.State.Stability, &dc.State.Difficulty, &dc.State.Due, &lastReview,
			&dc.State.ReviewCount,
		)
		if err != nil {
			return nil, store.NewStoreError("card", "list_due", "scan failed", err)
		}
		dc.Card.Content = content
		dc.Card.CreatedAt, dc.Card.UpdatedAt = dc.Card.CreatedAt.UTC(), dc.Card.UpdatedAt.UTC()
		if dc.State.State, err = domain.ParseState(stateLabel); err != nil {
			return nil, store.NewStoreError("card", "list_due", "bad state label", err)
		}
		dc.State.Due = dc.State.Due.UTC()
		if lastReview.Valid {
			t := lastReview.Time.UTC()
			dc.State.LastReview = &t
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("card", "list_due", "iteration failed", MapError(err))
	}

	log.Debug("listed due cards",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(out)))
	return out, nil
}

func scanCard(row rowScanner, card *domain.Card) error {
	var content []byte
	if err := row.Scan(&card.ID, &card.UserID, &content, &card.CreatedAt, &card.UpdatedAt); err != nil {
		return err
	}
	card.Content = content
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()
	return nil
}
