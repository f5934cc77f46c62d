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

const reviewStateColumns = `user_id, card_id, state, step, stability, difficulty, due, last_review, review_count`

// SQLiteReviewStateStore implements store.ReviewStateStore.
type SQLiteReviewStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteReviewStateStore creates a review state store on db.
func NewSQLiteReviewStateStore(db store.DBTX, logger *slog.Logger) *SQLiteReviewStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteReviewStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_state_store")),
	}
}

var _ store.ReviewStateStore = (*SQLiteReviewStateStore)(nil)

// WithTx implements store.ReviewStateStore.
func (s *SQLiteReviewStateStore) WithTx(tx *sql.Tx) store.ReviewStateStore {
	return &SQLiteReviewStateStore{db: tx, logger: s.logger}
}

// Get implements store.ReviewStateStore.
func (s *SQLiteReviewStateStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewStateColumns+` FROM review_states WHERE user_id = ? AND card_id = ?`,
		userID, cardID)

	state, err := scanReviewState(row)
	if err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return nil, store.ErrReviewStateNotFound
		}
		log.Error("failed to get review state",
			slog.String("card_id", cardID.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("review_state", "get", "query failed", mapped)
	}
	return state, nil
}

// GetForUpdate implements store.ReviewStateStore. SQLite serialises writers
// at the database level, so no row lock is taken.
func (s *SQLiteReviewStateStore) GetForUpdate(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	return s.Get(ctx, userID, cardID)
}

// Upsert implements store.ReviewStateStore.
func (s *SQLiteReviewStateStore) Upsert(ctx context.Context, state *domain.ReviewState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_states (`+reviewStateColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			state = excluded.state,
			step = excluded.step,
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			due = excluded.due,
			last_review = excluded.last_review,
			review_count = excluded.review_count,
			updated_at = excluded.updated_at`,
		state.UserID,
		state.CardID,
		state.State.String(),
		state.Step,
		state.Stability,
		state.Difficulty,
		formatTime(state.Due),
		nullableTime(state.LastReview),
		state.ReviewCount,
		formatTime(time.Now()),
	)
	if err != nil {
		log.Error("failed to upsert review state",
			slog.String("card_id", state.CardID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("review_state", "upsert", "exec failed", MapError(err))
	}

	log.Debug("review state upserted",
		slog.String("card_id", state.CardID.String()),
		slog.String("state", state.State.String()))
	return nil
}

func scanReviewState(row rowScanner) (*domain.ReviewState, error) {
	var (
		s          domain.ReviewState
		stateLabel string
		due        string
		lastReview sql.NullString
	)
	err := row.Scan(&s.UserID, &s.CardID, &stateLabel, &s.Step,
		&s.Stability, &s.Difficulty, &due, &lastReview, &s.ReviewCount)
	if err != nil {
		return nil, err
	}
	if err := decodeReviewState(&s, stateLabel, due, lastReview); err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeReviewState(s *domain.ReviewState, stateLabel, due string, lastReview sql.NullString) error {
	var err error
	if s.State, err = domain.ParseState(stateLabel); err != nil {
		return err
	}
	if s.Due, err = parseTime(due); err != nil {
		return err
	}
	if lastReview.Valid {
		t, err := parseTime(lastReview.String)
		if err != nil {
			return err
		}
		s.LastReview = &t
	}
	return nil
}
