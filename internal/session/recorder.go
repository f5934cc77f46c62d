package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/task"
)

// ReviewRecorder persists a computed review. card_review.CardReviewService
// satisfies it.
type ReviewRecorder interface {
	RecordReview(
		ctx context.Context,
		before, after domain.ReviewState,
		rating domain.Rating,
		interval time.Duration,
	) error
}

// Dispatcher accepts a computed review for persistence without blocking on
// the write.
type Dispatcher interface {
	Dispatch(ctx context.Context, review Review) error
}

// Review is one computed rating waiting to be persisted.
type Review struct {
	Before   domain.ReviewState
	After    domain.ReviewState
	Rating   domain.Rating
	Interval time.Duration
}

// Failure reports a review that could not be persisted. After is the state
// the engine computed; the caller may retry it or rate the card again.
type Failure struct {
	Review Review
	Err    error
}

// ErrFailuresDropped is logged when the failure buffer overflows.
var ErrFailuresDropped = errors.New("failure buffer full, failure dropped")

// AsyncRecorder runs ReviewRecorder writes on a keyed worker pool.
type AsyncRecorder struct {
	pool     *task.WorkerPool
	recorder ReviewRecorder
	failures chan Failure
	logger   *slog.Logger

	pending   sync.WaitGroup
	submitted atomic.Int64
	failed    atomic.Int64

	mu       sync.Mutex
	inFlight map[uuid.UUID]Review // queued or running, by task ID
}

var _ Dispatcher = (*AsyncRecorder)(nil)

// NewAsyncRecorder creates a recorder that submits writes to pool and
// installs itself as the pool's error handler, so writes the pool discards on
// Stop are reported as failures. The pool must be started by the caller.
// failureBuffer bounds the Failures channel; failures beyond it are logged
// and dropped but still counted by Stats.
func NewAsyncRecorder(
	pool *task.WorkerPool,
	recorder ReviewRecorder,
	failureBuffer int,
	logger *slog.Logger,
) *AsyncRecorder {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if recorder == nil {
		panic("recorder cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if failureBuffer < 1 {
		failureBuffer = 1
	}
	r := &AsyncRecorder{
		pool:     pool,
		recorder: recorder,
		failures: make(chan Failure, failureBuffer),
		logger:   logger.With(slog.String("component", "async_recorder")),
		inFlight: make(map[uuid.UUID]Review),
	}
	pool.SetErrorHandler(r.handleTaskError)
	return r
}

// Dispatch queues the write on the worker owning the card. It returns an
// error only when the write could not be queued at all; that failure is
// also published on Failures.
func (r *AsyncRecorder) Dispatch(ctx context.Context, review Review) error {
	log := logger.FromContextOrDefault(ctx, r.logger)
	cardID := review.After.CardID.String()

	r.pending.Add(1)
	var t *task.FuncTask
	t = task.NewFuncTask(task.TaskTypeRecordReview, cardID, func(taskCtx context.Context) error {
		defer r.settle(t.ID())
		defer func() {
			if p := recover(); p != nil {
				r.fail(review, fmt.Errorf("recording review panicked: %v", p))
			}
		}()

		taskCtx = logger.WithLogger(taskCtx, log)
		if err := r.recorder.RecordReview(taskCtx, review.Before, review.After, review.Rating, review.Interval); err != nil {
			r.fail(review, err)
		}
		return nil // reported on Failures
	})

	r.mu.Lock()
	r.inFlight[t.ID()] = review
	r.mu.Unlock()

	if err := r.pool.Submit(t); err != nil {
		r.settle(t.ID())
		err = fmt.Errorf("failed to queue review for card %s: %w", cardID, err)
		r.fail(review, err)
		return err
	}
	r.submitted.Add(1)
	return nil
}

// settle marks a write as finished, whether it ran or not.
func (r *AsyncRecorder) settle(id uuid.UUID) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
	r.pending.Done()
}

// handleTaskError receives tasks the pool gave up on. A write discarded by
// Stop never ran, so it is settled and reported here.
func (r *AsyncRecorder) handleTaskError(t task.Task, err error) {
	r.mu.Lock()
	review, ok := r.inFlight[t.ID()]
	r.mu.Unlock()

	if !ok {
		r.logger.Error("task execution failed",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
		return
	}

	r.fail(review, fmt.Errorf("review for card %s was not saved: %w", review.After.CardID, err))
	r.settle(t.ID())
}

func (r *AsyncRecorder) fail(review Review, err error) {
	r.failed.Add(1)
	select {
	case r.failures <- Failure{Review: review, Err: err}:
	default:
		r.logger.Error(ErrFailuresDropped.Error(),
			slog.String("card_id", review.After.CardID.String()),
			slog.String("error", err.Error()))
	}
}

// Failures returns the channel on which failed writes are reported.
func (r *AsyncRecorder) Failures() <-chan Failure {
	return r.failures
}

// Wait blocks until every queued write has finished or ctx ends.
func (r *AsyncRecorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the number of writes queued and the number that failed.
func (r *AsyncRecorder) Stats() (submitted, failed int64) {
	return r.submitted.Load(), r.failed.Load()
}
