package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/scry-scheduler/internal/domain"
)

// Common errors
var (
	ErrNilState       = errors.New("review state cannot be nil")
	ErrInvalidDays    = errors.New("postpone days must be at least 1")
	ErrCardIDMismatch = errors.New("card ID mismatch in review log")
)

// Preview is the outcome a single rating would have.
type Preview struct {
	Rating   domain.Rating      `json:"rating"`
	State    domain.ReviewState `json:"state"`
	Interval time.Duration      `json:"interval"`
}

// Service defines the interface for SRS algorithm operations
type Service interface {
	// CalculateNextReview computes the state that follows a rating.
	CalculateNextReview(
		state *domain.ReviewState,
		rating domain.Rating,
		now time.Time,
	) (*domain.ReviewState, time.Duration, error)

	// PreviewReview computes the outcome of every rating without committing
	// to any of them. Results are ordered Again, Hard, Good, Easy.
	PreviewReview(state *domain.ReviewState, now time.Time) ([]Preview, error)

	// PostponeReview pushes the due time forward by whole days.
	PostponeReview(
		state *domain.ReviewState,
		days int,
		now time.Time,
	) (*domain.ReviewState, error)

	// ReplayReviews rebuilds a state by applying logs in the order given.
	ReplayReviews(initial domain.ReviewState, logs []domain.ReviewLog) (*domain.ReviewState, error)

	// Config returns the scheduler configuration in use.
	Config() *SchedulerConfig
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	cfg *SchedulerConfig
}

var _ Service = (*defaultService)(nil)

// NewDefaultService creates a new SRS service with the default configuration
func NewDefaultService() Service {
	return &defaultService{cfg: DefaultSchedulerConfig()}
}

// NewServiceWithConfig creates a new SRS service with a custom configuration.
// A nil config falls back to the default.
func NewServiceWithConfig(cfg *SchedulerConfig) Service {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	return &defaultService{cfg: cfg}
}

func (s *defaultService) Config() *SchedulerConfig {
	return s.cfg
}

// CalculateNextReview implements the Service interface
func (s *defaultService) CalculateNextReview(
	state *domain.ReviewState,
	rating domain.Rating,
	now time.Time,
) (*domain.ReviewState, time.Duration, error) {
	if state == nil {
		return nil, 0, ErrNilState
	}

	next, interval, err := ComputeNext(*state, rating, now, s.cfg)
	if err != nil {
		return nil, 0, err
	}
	return &next, interval, nil
}

// PreviewReview implements the Service interface
func (s *defaultService) PreviewReview(state *domain.ReviewState, now time.Time) ([]Preview, error) {
	if state == nil {
		return nil, ErrNilState
	}

	previews := make([]Preview, 0, 4)
	for _, r := range domain.Ratings() {
		next, interval, err := ComputeNext(*state, r, now, s.cfg)
		if err != nil {
			return nil, err
		}
		previews = append(previews, Preview{Rating: r, State: next, Interval: interval})
	}
	return previews, nil
}

// PostponeReview implements the Service interface. An overdue card is
// postponed relative to now rather than to its stale due time.
func (s *defaultService) PostponeReview(
	state *domain.ReviewState,
	days int,
	now time.Time,
) (*domain.ReviewState, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if days < 1 {
		return nil, ErrInvalidDays
	}

	next := state.Clone()
	base := state.Due
	if base.Before(now) {
		base = now
	}
	next.Due = base.AddDate(0, 0, days)

	return &next, nil
}

// ReplayReviews implements the Service interface
func (s *defaultService) ReplayReviews(
	initial domain.ReviewState,
	logs []domain.ReviewLog,
) (*domain.ReviewState, error) {
	state := initial.Clone()
	for i, log := range logs {
		if log.CardID != state.CardID {
			return nil, fmt.Errorf("%w: card %s, log %d has card %s",
				ErrCardIDMismatch, state.CardID, i, log.CardID)
		}

		next, _, err := ComputeNext(state, log.Rating, log.ReviewedAt, s.cfg)
		if err != nil {
			return nil, fmt.Errorf("replaying log %d: %w", i, err)
		}
		state = next
	}
	return &state, nil
}
