package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewFor(cardID uuid.UUID, rating domain.Rating) Review {
	state := domain.ReviewState{UserID: uuid.New(), CardID: cardID, State: domain.StateNew}
	return Review{Before: state, After: state, Rating: rating}
}

func TestAsyncRecorder_PreservesPerCardOrder(t *testing.T) {
	rec := newFakeRecorder()
	_, log := logger.NewTestLogger(t)
	async := NewAsyncRecorder(startPool(t, 3), rec, 4, log)

	cardIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sequence := []domain.Rating{
		domain.RatingAgain, domain.RatingHard, domain.RatingGood, domain.RatingEasy,
		domain.RatingGood, domain.RatingAgain,
	}

	for _, r := range sequence {
		for _, id := range cardIDs {
			require.NoError(t, async.Dispatch(context.Background(), reviewFor(id, r)))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, async.Wait(ctx))

	for _, id := range cardIDs {
		assert.Equal(t, sequence, rec.ratingsFor(id))
	}
}

func TestAsyncRecorder_SubmitFailure(t *testing.T) {
	_, log := logger.NewTestLogger(t)
	pool := task.NewWorkerPool(task.WorkerPoolConfig{WorkerCount: 1, QueueSize: 1}, log)
	require.NoError(t, pool.Shutdown(context.Background()))

	async := NewAsyncRecorder(pool, newFakeRecorder(), 1, log)
	cardID := uuid.New()

	err := async.Dispatch(context.Background(), reviewFor(cardID, domain.RatingGood))
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrQueueClosed)

	f := <-async.Failures()
	assert.Equal(t, cardID, f.Review.After.CardID)
	assert.ErrorIs(t, f.Err, task.ErrQueueClosed)

	submitted, failed := async.Stats()
	assert.Zero(t, submitted)
	assert.Equal(t, int64(1), failed)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, async.Wait(ctx), "a rejected write must not hold Wait")
}

func TestAsyncRecorder_DropsOverflowingFailures(t *testing.T) {
	cardID := uuid.New()
	buf, log := logger.NewTestLogger(t)
	async := NewAsyncRecorder(startPool(t, 1), newFakeRecorder(cardID), 1, log)

	for i := 0; i < 3; i++ {
		require.NoError(t, async.Dispatch(context.Background(), reviewFor(cardID, domain.RatingGood)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, async.Wait(ctx))

	assert.Len(t, async.Failures(), 1)
	_, failed := async.Stats()
	assert.Equal(t, int64(3), failed)
	logger.AssertLogContains(t, buf, ErrFailuresDropped.Error())
}

// blockingRecorder holds every write until its context is cancelled.
type blockingRecorder struct {
	started chan struct{}
	once    sync.Once
}

func (r *blockingRecorder) RecordReview(ctx context.Context, _, _ domain.ReviewState, _ domain.Rating, _ time.Duration) error {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	return ctx.Err()
}

func TestAsyncRecorder_ReportsWritesDiscardedByStop(t *testing.T) {
	_, log := logger.NewTestLogger(t)
	pool := task.NewWorkerPool(task.WorkerPoolConfig{WorkerCount: 1, QueueSize: 8}, log)
	pool.Start()

	rec := &blockingRecorder{started: make(chan struct{})}
	async := NewAsyncRecorder(pool, rec, 8, log)
	cardID := uuid.New()

	for _, r := range []domain.Rating{domain.RatingGood, domain.RatingHard, domain.RatingEasy} {
		require.NoError(t, async.Dispatch(context.Background(), reviewFor(cardID, r)))
	}
	<-rec.started

	pool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, async.Wait(ctx), "stopped writes must not hold Wait")

	submitted, failed := async.Stats()
	assert.Equal(t, int64(3), submitted)
	assert.Equal(t, int64(3), failed)

	require.Len(t, async.Failures(), 3)
	var discarded []domain.Rating
	for i := 0; i < 3; i++ {
		f := <-async.Failures()
		assert.Equal(t, cardID, f.Review.After.CardID)
		if errors.Is(f.Err, task.ErrTaskDiscarded) {
			discarded = append(discarded, f.Review.Rating)
		} else {
			assert.ErrorIs(t, f.Err, context.Canceled)
		}
	}
	assert.Equal(t, []domain.Rating{domain.RatingHard, domain.RatingEasy}, discarded)
}

func TestNewAsyncRecorder_Panics(t *testing.T) {
	_, log := logger.NewTestLogger(t)
	pool := task.NewWorkerPool(task.DefaultWorkerPoolConfig(), log)

	assert.Panics(t, func() { NewAsyncRecorder(nil, newFakeRecorder(), 1, log) })
	assert.Panics(t, func() { NewAsyncRecorder(pool, nil, 1, log) })
}
