package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewLog is the append-only record of one rating. Replaying a card's logs
// in order through the scheduler reproduces its current ReviewState.
type ReviewLog struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	CardID      uuid.UUID     `json:"card_id"`
	Rating      Rating        `json:"rating"`
	StateBefore State         `json:"state_before"`
	StateAfter  State         `json:"state_after"`
	Interval    time.Duration `json:"interval"`
	ReviewedAt  time.Time     `json:"reviewed_at"`
}

// NewReviewLog builds the log entry for a transition from before to after.
func NewReviewLog(before, after ReviewState, rating Rating, interval time.Duration, reviewedAt time.Time) ReviewLog {
	return ReviewLog{
		ID:          uuid.New(),
		UserID:      before.UserID,
		CardID:      before.CardID,
		Rating:      rating,
		StateBefore: before.State,
		StateAfter:  after.State,
		Interval:    interval,
		ReviewedAt:  reviewedAt,
	}
}
