package events

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryEventEmitter(t *testing.T) {
	_, log := logger.NewTestLogger(t)

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		event := NewReviewRecordedEvent(testState(t), domain.RatingGood, eventTime)

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewReviewRecordedEvent(testState(t), domain.RatingGood, eventTime)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		failingHandler := &MockEventHandler{HandlerError: errors.New("handler error")}
		successHandler := &MockEventHandler{}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		event := NewReviewRecordedEvent(testState(t), domain.RatingGood, eventTime)
		err := emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "handler error")

		// The second handler still receives the event.
		assert.Equal(t, 1, failingHandler.HandledCount)
		assert.Equal(t, 1, successHandler.HandledCount)
	})
}

func TestLoggingHandler(t *testing.T) {
	buf, log := logger.NewTestLogger(t)
	handler := NewLoggingHandler(log)
	ctx := context.Background()

	failed := NewReviewRecordFailedEvent(testState(t), domain.RatingHard, errors.New("connection reset"), eventTime)
	assert.NoError(t, handler.HandleEvent(ctx, failed))

	entries, err := buf.GetLogEntries()
	assert.NoError(t, err)
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "review not recorded", entries[0]["msg"])
		assert.Equal(t, "WARN", entries[0]["level"])
		assert.Equal(t, "connection reset", entries[0]["error"])
		assert.Equal(t, "hard", entries[0]["rating"])
	}
}
