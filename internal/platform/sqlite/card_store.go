package sqlite

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

// SQLiteCardStore implements store.CardStore.
type SQLiteCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteCardStore creates a card store on db.
func NewSQLiteCardStore(db store.DBTX, logger *slog.Logger) *SQLiteCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

var _ store.CardStore = (*SQLiteCardStore)(nil)

// WithTx implements store.CardStore.
func (s *SQLiteCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &SQLiteCardStore{db: tx, logger: s.logger}
}

// Create implements store.CardStore.
func (s *SQLiteCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (id, user_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		card.ID, card.UserID, string(card.Content), formatTime(card.CreatedAt), formatTime(card.UpdatedAt),
	)
	if err != nil {
		log.Error("failed to create card",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("card", "create", "insert failed", MapError(err))
	}
	return nil
}

// GetByID implements store.CardStore.
func (s *SQLiteCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at, updated_at FROM cards WHERE id = ?`, id)

	var card domain.Card
	if err := scanCard(row, &card); err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return nil, store.ErrCardNotFound
		}
		return nil, store.NewStoreError("card", "get", "query failed", mapped)
	}
	return &card, nil
}

// GetNextReviewCard implements store.CardStore.
func (s *SQLiteCardStore) GetNextReviewCard(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.DueCard, error) {
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
func (s *SQLiteCardStore) ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.DueCard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// LIMIT -1 is no limit.
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.content, c.created_at, c.updated_at,
		       rs.user_id, rs.card_id, rs.state, rs.step, rs.stability, rs.difficulty,
		       rs.due, rs.last_review, rs.review_count
		FROM review_states rs
		JOIN cards c ON c.id = rs.card_id
		WHERE rs.user_id = ? AND rs.due <= ?
		ORDER BY rs.due ASC, rs.card_id ASC
		LIMIT ?`,
		userID, formatTime(now), limit,
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
			dc               domain.DueCard
			content          []byte
			created, updated string
			stateLabel, due  string
			lastReview       sql.NullString
		)
		err := rows.Scan(
			&dc.Card.ID, &dc.Card.UserID, &content, &created, &updated,
			&dc.State.UserID, &dc.State.CardID, &stateLabel, &dc.State.Step,
			&dc.State.Stability, &dc.State.Difficulty, &due, &lastReview,
			&dc.State.ReviewCount,
		)
		if err != nil {
			return nil, store.NewStoreError("card", "list_due", "scan failed", err)
		}
		dc.Card.Content = content
		if err := decodeCardTimes(&dc.Card, created, updated); err != nil {
			return nil, store.NewStoreError("card", "list_due", "bad card row", err)
		}
		if err := decodeReviewState(&dc.State, stateLabel, due, lastReview); err != nil {
			return nil, store.NewStoreError("card", "list_due", "bad review state row", err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("card", "list_due", "iteration failed", MapError(err))
	}
	return out, nil
}

func scanCard(row rowScanner, card *domain.Card) error {
	var (
		content          []byte
		created, updated string
	)
	if err := row.Scan(&card.ID, &card.UserID, &content, &created, &updated); err != nil {
		return err
	}
	card.Content = content
	return decodeCardTimes(card, created, updated)
}

func decodeCardTimes(card *domain.Card, created, updated string) error {
	var err error
	if card.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	card.UpdatedAt, err = parseTime(updated)
	return err
}
