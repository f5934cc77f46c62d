// Package card_review drives reviews against persisted state: it selects due
// cards, runs the scheduling engine on a rating and records the result
// together with a review log entry.
package card_review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
)

// ReviewAnswer represents a user's answer to a flashcard review.
type ReviewAnswer struct {
	Rating domain.Rating `json:"rating"`
}

// ReviewResult is the outcome of one recorded rating.
type ReviewResult struct {
	State    domain.ReviewState `json:"state"`
	Interval time.Duration      `json:"interval"`
	Log      domain.ReviewLog   `json:"log"`
}

// CardHistory is a card's review log together with its stored state and the
// state obtained by replaying the log from a new card. The two differ in Due
// only when the card was postponed after its last review.
type CardHistory struct {
	State    domain.ReviewState `json:"state"`
	Replayed domain.ReviewState `json:"replayed"`
	Logs     []domain.ReviewLog `json:"logs"`
}

// CardReviewService provides methods for reviewing flashcards
// using the spaced repetition engine.
type CardReviewService interface {
	// AddCard stores a new card and its initial review state, due
	// immediately, in one transaction.
	AddCard(ctx context.Context, userID uuid.UUID, content json.RawMessage) (*domain.DueCard, error)

	// GetNextCard returns the user's card with the earliest due time, or
	// ErrNoCardsDue. It does not modify any data.
	GetNextCard(ctx context.Context, userID uuid.UUID) (*domain.DueCard, error)

	// ListDueCards returns up to limit due cards in presentation order. A
	// non-positive limit returns all of them.
	ListDueCards(ctx context.Context, userID uuid.UUID, limit int) ([]domain.DueCard, error)

	// SubmitAnswer computes and records the result of a rating in a single
	// transaction. The review state row is locked while it is replaced.
	//
	// Errors: ErrInvalidAnswer, ErrCardNotFound, ErrCardNotOwned, or a
	// ServiceError wrapping the store failure.
	SubmitAnswer(ctx context.Context, userID, cardID uuid.UUID, answer ReviewAnswer) (*ReviewResult, error)

	// PreviewAnswer returns the outcome of every rating for a card without
	// recording anything.
	PreviewAnswer(ctx context.Context, userID, cardID uuid.UUID) ([]srs.Preview, error)

	// PostponeCard moves a card's due time forward by whole days.
	PostponeCard(ctx context.Context, userID, cardID uuid.UUID, days int) (*domain.ReviewState, error)

	// GetCardHistory returns the card's review log in review order and the
	// state rebuilt from it. Errors: ErrCardNotFound, ErrCardNotOwned.
	GetCardHistory(ctx context.Context, userID, cardID uuid.UUID) (*CardHistory, error)

	// RecordReview persists a result the caller already computed with the
	// engine: the new state replaces the stored one and a log entry is
	// appended. There is no concurrency token; the last write wins.
	// Failures wrap ErrRecordFailed.
	RecordReview(
		ctx context.Context,
		before, after domain.ReviewState,
		rating domain.Rating,
		interval time.Duration,
	) error
}

// Common error types for CardReviewService
var (
	// ErrNoCardsDue indicates that the user has no cards due for review.
	ErrNoCardsDue = errors.New("no cards due for review")

	// ErrCardNotFound indicates that the card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrCardNotOwned indicates that the user does not own the card.
	ErrCardNotOwned = errors.New("unauthorized access: card not owned by user")

	// ErrInvalidAnswer indicates an invalid answer was provided.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrInvalidCard indicates the card content was rejected.
	ErrInvalidCard = errors.New("invalid card")

	// ErrRecordFailed indicates a computed review could not be persisted.
	ErrRecordFailed = errors.New("failed to record review")
)

// ServiceError wraps errors from the card review service with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "get_next_card", "submit_answer")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a ServiceError for operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
