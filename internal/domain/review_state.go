package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Defaults for a card that has never been reviewed.
const (
	DefaultStability  = 1.0
	DefaultDifficulty = 5.0

	MinStability  = 0.1
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// Validation errors for ReviewState
var (
	ErrEmptyStateUserID     = errors.New("review state user ID cannot be empty")
	ErrEmptyStateCardID     = errors.New("review state card ID cannot be empty")
	ErrInvalidStep          = errors.New("step must be greater than or equal to 0")
	ErrInvalidStability     = errors.New("stability must be at least 0.1")
	ErrInvalidDifficulty    = errors.New("difficulty must be between 1 and 10")
	ErrInvalidReviewCount   = errors.New("review count must be greater than or equal to 0")
	ErrDueBeforeLastReview  = errors.New("due must not be before last review")
	ErrReviewedStateMissing = errors.New("reviewed card must have a last review time")
)

// ReviewState is the memory-model record the scheduler reads and writes for
// one card. Each card owns exactly one; it is only ever replaced by the
// result of srs.ComputeNext (or a postpone).
type ReviewState struct {
	UserID      uuid.UUID  `json:"user_id"`
	CardID      uuid.UUID  `json:"card_id"`
	State       State      `json:"state"`
	Step        int        `json:"step"`
	Stability   float64    `json:"stability"`  // memory strength in days
	Difficulty  float64    `json:"difficulty"` // 1 (easy) .. 10 (hard)
	Due         time.Time  `json:"due"`
	LastReview  *time.Time `json:"last_review"` // nil until the first rating
	ReviewCount int        `json:"review_count"`
}

// NewReviewState returns the state of a card that has just been created: due
// immediately, never reviewed.
func NewReviewState(userID, cardID uuid.UUID, now time.Time) (*ReviewState, error) {
	state := &ReviewState{
		UserID:     userID,
		CardID:     cardID,
		State:      StateNew,
		Stability:  DefaultStability,
		Difficulty: DefaultDifficulty,
		Due:        now,
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

// IsNew reports whether the card has never been rated.
func (s *ReviewState) IsNew() bool {
	return s.State == StateNew || s.LastReview == nil
}

// IsDue reports whether the card is eligible for presentation at now.
func (s *ReviewState) IsDue(now time.Time) bool {
	return !s.Due.After(now)
}

// Clone returns a deep copy.
func (s ReviewState) Clone() ReviewState {
	out := s
	if s.LastReview != nil {
		t := *s.LastReview
		out.LastReview = &t
	}
	return out
}

// Validate checks the identity fields and the numeric invariants. The upper
// stability bound depends on scheduler configuration and is enforced by the
// scheduler, not here.
func (s *ReviewState) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrEmptyStateUserID
	}
	if s.CardID == uuid.Nil {
		return ErrEmptyStateCardID
	}
	if !s.State.IsValid() {
		return ErrInvalidState
	}
	if s.Step < 0 {
		return ErrInvalidStep
	}
	if s.Stability < MinStability {
		return ErrInvalidStability
	}
	if s.Difficulty < MinDifficulty || s.Difficulty > MaxDifficulty {
		return ErrInvalidDifficulty
	}
	if s.ReviewCount < 0 {
		return ErrInvalidReviewCount
	}
	if s.State != StateNew && s.LastReview == nil {
		return ErrReviewedStateMissing
	}
	if s.LastReview != nil && s.Due.Before(*s.LastReview) {
		return ErrDueBeforeLastReview
	}
	return nil
}
