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

const reviewStateColumns = `user_id, card_id, state, step, stability, difficulty, due, last_review, review_count`

// PostgresReviewStateStore implements store.ReviewStateStore.
type PostgresReviewStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewStateStore creates a review state store on db, which may
// be a pool or a transaction. If logger is nil, slog.Default() is used.
func NewPostgresReviewStateStore(db store.DBTX, logger *slog.Logger) *PostgresReviewStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReviewStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_state_store")),
	}
}

var _ store.ReviewStateStore = (*PostgresReviewStateStore)(nil)

// WithTx implements store.ReviewStateStore.
func (s *PostgresReviewStateStore) WithTx(tx *sql.Tx) store.ReviewStateStore {
	return &PostgresReviewStateStore{db: tx, logger: s.logger}
}

// Get implements store.ReviewStateStore.
func (s *PostgresReviewStateStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	return s.get(ctx, userID, cardID, false)
}

// GetForUpdate implements store.ReviewStateStore with SELECT ... FOR UPDATE.
func (s *PostgresReviewStateStore) GetForUpdate(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	return s.get(ctx, userID, cardID, true)
}

func (s *PostgresReviewStateStore) get(ctx context.Context, userID, cardID uuid.UUID, lock bool) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + reviewStateColumns + ` FROM review_states WHERE user_id = $1 AND card_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}

	state, err := scanReviewState(s.db.QueryRowContext(ctx, query, userID, cardID))
	if err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return nil, store.ErrReviewStateNotFound
		}
		log.Error("failed to get review state",
			slog.String("card_id", cardID.String()),
			slog.Bool("for_update", lock),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("review_state", "get", "query failed", mapped)
	}
	return state, nil
}

// Upsert implements store.ReviewStateStore.
func (s *PostgresReviewStateStore) Upsert(ctx context.Context, state *domain.ReviewState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO review_states (` + reviewStateColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			state = EXCLUDED.state,
			step = EXCLUDED.step,
			stability = EXCLUDED.stability,
			difficulty = EXCLUDED.difficulty,
			due = EXCLUDED.due,
			last_review = EXCLUDED.last_review,
			review_count = EXCLUDED.review_count,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		state.UserID,
		state.CardID,
		state.State.String(),
		state.Step,
		state.Stability,
		state.Difficulty,
		state.Due.UTC(),
		nullTime(state.LastReview),
		state.ReviewCount,
	)
	if err != nil {
		log.Error("failed to upsert review state",
			slog.String("card_id", state.CardID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("review_state", "upsert", "exec failed", MapError(err))
	}

	log.Debug("review state upserted",
		slog.String("card_id", state.CardID.String()),
		slog.String("state", state.State.String()),
		slog.Time("due", state.Due))
	return nil
}

func scanReviewState(row rowScanner) (*domain.ReviewState, error) {
	var (
		s          domain.ReviewState
		stateLabel string
		lastReview sql.NullTime
	)
	err := row.Scan(
		&s.UserID,
		&s.CardID,
		&stateLabel,
		&s.Step,
		&s.Stability,
		&s.Difficulty,
		&s.Due,
		&lastReview,
		&s.ReviewCount,
	)
	if err != nil {
		return nil, err
	}

	if s.State, err = domain.ParseState(stateLabel); err != nil {
		return nil, err
	}
	s.Due = s.Due.UTC()
	if lastReview.Valid {
		t := lastReview.Time.UTC()
		s.LastReview = &t
	}
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
