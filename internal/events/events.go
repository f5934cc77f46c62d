package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
)

// Event types
const (
	TypeReviewRecorded     = "review.recorded"
	TypeReviewRecordFailed = "review.record_failed"
)

// ReviewEvent reports the outcome of persisting one rating.
type ReviewEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is TypeReviewRecorded or TypeReviewRecordFailed
	Type string `json:"type"`

	UserID uuid.UUID     `json:"user_id"`
	CardID uuid.UUID     `json:"card_id"`
	Rating domain.Rating `json:"rating"`

	// State is the computed state that was, or should have been, written.
	State domain.ReviewState `json:"state"`

	// Error describes the failure for TypeReviewRecordFailed.
	Error string `json:"error,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewReviewRecordedEvent builds the event emitted after a successful write.
func NewReviewRecordedEvent(state domain.ReviewState, rating domain.Rating, at time.Time) *ReviewEvent {
	return &ReviewEvent{
		ID:         uuid.New(),
		Type:       TypeReviewRecorded,
		UserID:     state.UserID,
		CardID:     state.CardID,
		Rating:     rating,
		State:      state,
		OccurredAt: at,
	}
}

// NewReviewRecordFailedEvent builds the event emitted when a write fails.
func NewReviewRecordFailedEvent(state domain.ReviewState, rating domain.Rating, err error, at time.Time) *ReviewEvent {
	event := NewReviewRecordedEvent(state, rating, at)
	event.Type = TypeReviewRecordFailed
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// Failed reports whether the event describes a failed write.
func (e *ReviewEvent) Failed() bool {
	return e.Type == TypeReviewRecordFailed
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *ReviewEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *ReviewEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ReviewEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *ReviewEvent) error
}
