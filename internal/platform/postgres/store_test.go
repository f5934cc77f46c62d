package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/platform/postgres"
	"github.com/phrazzld/scry-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stateCols = []string{"user_id", "card_id", "state", "step", "stability", "difficulty", "due", "last_review", "review_count"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func reviewedState() *domain.ReviewState {
	last := testNow.Add(-time.Hour)
	return &domain.ReviewState{
		UserID:      uuid.New(),
		CardID:      uuid.New(),
		State:       domain.StateReview,
		Stability:   1.44,
		Difficulty:  4.6,
		Due:         testNow.Add(24 * time.Hour),
		LastReview:  &last,
		ReviewCount: 2,
	}
}

func TestReviewStateStore_Get(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresReviewStateStore(db, nil)
	want := reviewedState()

	mock.ExpectQuery(`SELECT .+ FROM review_states WHERE user_id = \$1 AND card_id = \$2$`).
		WithArgs(want.UserID, want.CardID).
		WillReturnRows(sqlmock.NewRows(stateCols).AddRow(
			want.UserID.String(), want.CardID.String(), "review", 0, 1.44, 4.6,
			want.Due, *want.LastReview, 2,
		))

	got, err := s.Get(context.Background(), want.UserID, want.CardID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewStateStore_GetForUpdate(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresReviewStateStore(db, nil)
	userID, cardID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(userID, cardID).
		WillReturnRows(sqlmock.NewRows(stateCols).AddRow(
			userID.String(), cardID.String(), "new", 0, 1.0, 5.0, testNow, nil, 0,
		))

	got, err := s.GetForUpdate(context.Background(), userID, cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, got.State)
	assert.Nil(t, got.LastReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewStateStore_GetNotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresReviewStateStore(db, nil)

	mock.ExpectQuery(`FROM review_states`).WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrReviewStateNotFound)
}

func TestReviewStateStore_Upsert(t *testing.T) {
	t.Parallel()

	t.Run("writes valid state", func(t *testing.T) {
		db, mock := newMock(t)
		s := postgres.NewPostgresReviewStateStore(db, nil)
		state := reviewedState()

		mock.ExpectExec(`INSERT INTO review_states .+ ON CONFLICT \(user_id, card_id\) DO UPDATE`).
			WithArgs(state.UserID, state.CardID, "review", 0, 1.44, 4.6,
				state.Due, *state.LastReview, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Upsert(context.Background(), state))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid state without touching the database", func(t *testing.T) {
		db, mock := newMock(t)
		s := postgres.NewPostgresReviewStateStore(db, nil)
		state := reviewedState()
		state.Difficulty = 11

		err := s.Upsert(context.Background(), state)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.ErrorIs(t, err, domain.ErrInvalidDifficulty)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps constraint violations", func(t *testing.T) {
		db, mock := newMock(t)
		s := postgres.NewPostgresReviewStateStore(db, nil)

		mock.ExpectExec(`INSERT INTO review_states`).WillReturnError(newPgError("23503"))

		err := s.Upsert(context.Background(), reviewedState())
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		var storeErr *store.StoreError
		assert.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "upsert", storeErr.Operation)
	})
}

func TestCardStore_ListDue(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresCardStore(db, nil)
	userID := uuid.New()
	cardA, cardB := uuid.New(), uuid.New()
	cols := append([]string{"id", "user_id", "content", "created_at", "updated_at"}, stateCols...)

	mock.ExpectQuery(`FROM review_states rs\s+JOIN cards c`).
		WithArgs(userID, testNow, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(cardA.String(), userID.String(), []byte(`{"front":"a"}`), testNow, testNow,
				userID.String(), cardA.String(), "new", 0, 1.0, 5.0, testNow.Add(-time.Hour), nil, 0).
			AddRow(cardB.String(), userID.String(), []byte(`{"front":"b"}`), testNow, testNow,
				userID.String(), cardB.String(), "relearning", 0, 0.72, 5.6, testNow, testNow.Add(-10*time.Minute), 3))

	due, err := s.ListDue(context.Background(), userID, testNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, cardA, due[0].Card.ID)
	assert.Equal(t, json.RawMessage(`{"front":"a"}`), due[0].Card.Content)
	assert.Equal(t, domain.StateNew, due[0].State.State)
	assert.Equal(t, domain.StateRelearning, due[1].State.State)
	require.NotNil(t, due[1].State.LastReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardStore_GetNextReviewCardNoneDue(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresCardStore(db, nil)
	userID := uuid.New()

	mock.ExpectQuery(`FROM review_states rs`).
		WithArgs(userID, testNow, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetNextReviewCard(context.Background(), userID, testNow)
	assert.ErrorIs(t, err, store.ErrNoCardsDue)
	assert.True(t, store.IsNotFoundError(err))
}

func TestCardStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresCardStore(db, nil)
	card, err := domain.NewCard(uuid.New(), json.RawMessage(`{"front":"q","back":"a"}`), testNow)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO cards`).
		WithArgs(card.ID, card.UserID, string(card.Content), testNow, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, user_id, content, created_at, updated_at FROM cards WHERE id = \$1`).
		WithArgs(card.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "content", "created_at", "updated_at"}).
			AddRow(card.ID.String(), card.UserID.String(), []byte(card.Content), testNow, testNow))
	mock.ExpectQuery(`FROM cards WHERE id`).WillReturnError(sql.ErrNoRows)

	require.NoError(t, s.Create(context.Background(), card))

	got, err := s.GetByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, card, got)

	_, err = s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewLogStore(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := postgres.NewPostgresReviewLogStore(db, nil)
	before := reviewedState()
	after := *before
	after.State = domain.StateRelearning
	entry := domain.NewReviewLog(*before, after, domain.RatingAgain, 10*time.Minute, testNow)

	mock.ExpectExec(`INSERT INTO review_logs`).
		WithArgs(entry.ID, entry.UserID, entry.CardID, 1, "review", "relearning", int64(10*time.Minute), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM review_logs\s+WHERE user_id = \$1 AND card_id = \$2\s+ORDER BY reviewed_at`).
		WithArgs(entry.UserID, entry.CardID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "card_id", "rating", "state_before", "state_after", "interval_ns", "reviewed_at"}).
			AddRow(entry.ID.String(), entry.UserID.String(), entry.CardID.String(), 1, "review", "relearning", int64(10*time.Minute), testNow))

	require.NoError(t, s.Append(context.Background(), &entry))
	logs, err := s.ListByCard(context.Background(), entry.UserID, entry.CardID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, entry, logs[0])

	bad := entry
	bad.Rating = 0
	assert.ErrorIs(t, s.Append(context.Background(), &bad), store.ErrInvalidEntity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorsPanicOnNilDB(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "db cannot be nil", func() { postgres.NewPostgresCardStore(nil, nil) })
	assert.PanicsWithValue(t, "db cannot be nil", func() { postgres.NewPostgresReviewStateStore(nil, nil) })
	assert.PanicsWithValue(t, "db cannot be nil", func() { postgres.NewPostgresReviewLogStore(nil, nil) })
}
