package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/phrazzld/scry-scheduler/internal/domain"
)

// ComputeNext returns the state a card moves to when it is rated at now,
// together with the interval until its next review.
//
// The input is never modified. A nil cfg means DefaultSchedulerConfig. A
// rating outside Again..Easy is rejected with domain.ErrInvalidRating; the
// current state is then returned unchanged with a zero interval.
//
// Regardless of branch, the result has stability clamped to
// [0.1, MaxIntervalDays], difficulty clamped to [1, 10], Due = now+interval,
// LastReview = now and ReviewCount incremented by one.
func ComputeNext(
	current domain.ReviewState,
	rating domain.Rating,
	now time.Time,
	cfg *SchedulerConfig,
) (domain.ReviewState, time.Duration, error) {
	if !rating.IsValid() {
		return current, 0, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}

	next := current.Clone()
	var interval time.Duration

	switch current.State {
	case domain.StateNew:
		// A card that has never been rated follows the learning table.
		interval = transitionLearning(&next, rating, cfg)
	case domain.StateLearning:
		interval = transitionLearning(&next, rating, cfg)
	case domain.StateRelearning:
		interval = transitionRelearning(&next, rating, cfg)
	case domain.StateReview:
		interval = transitionReview(&next, rating, now, cfg)
	default:
		return current, 0, fmt.Errorf("%w: %s", domain.ErrInvalidState, current.State)
	}

	next.Stability = clamp(next.Stability, domain.MinStability, cfg.maxIntervalDays)
	next.Difficulty = clamp(next.Difficulty, domain.MinDifficulty, domain.MaxDifficulty)
	next.Due = now.Add(interval)
	reviewedAt := now
	next.LastReview = &reviewedAt
	next.ReviewCount++

	return next, interval, nil
}

func transitionLearning(s *domain.ReviewState, rating domain.Rating, cfg *SchedulerConfig) time.Duration {
	steps := cfg.learningSteps
	step := clampStep(s.Step, len(steps))
	last := len(steps) - 1

	switch rating {
	case domain.RatingAgain:
		s.State, s.Step = domain.StateLearning, 0
		adjust(s, 0.6, 1.0)
		return steps[0]

	case domain.RatingHard:
		s.State, s.Step = domain.StateLearning, min(step+1, last)
		adjust(s, 0.9, 0.3)
		return steps[step]

	case domain.RatingGood:
		if step < last {
			s.State, s.Step = domain.StateLearning, step+1
			adjust(s, 1.2, -0.2)
			return steps[step+1]
		}
		interval := days(s.Stability, cfg)
		graduate(s)
		adjust(s, 1.2, -0.2)
		return interval

	default: // Easy
		interval := days(s.Stability*2, cfg)
		graduate(s)
		adjust(s, 1.4, -0.6)
		return interval
	}
}

func transitionRelearning(s *domain.ReviewState, rating domain.Rating, cfg *SchedulerConfig) time.Duration {
	steps := cfg.relearningSteps
	step := clampStep(s.Step, len(steps))
	last := len(steps) - 1

	switch rating {
	case domain.RatingAgain:
		s.State, s.Step = domain.StateRelearning, 0
		adjust(s, 0.6, 0.8)
		return steps[0]

	case domain.RatingHard:
		s.State, s.Step = domain.StateRelearning, min(step+1, last)
		adjust(s, 0.9, 0.3)
		return steps[step]

	case domain.RatingGood:
		interval := days(s.Stability*1.5, cfg)
		graduate(s)
		adjust(s, 1.15, -0.3)
		return interval

	default: // Easy
		interval := days(s.Stability*2.5, cfg)
		graduate(s)
		adjust(s, 1.3, -0.6)
		return interval
	}
}

func transitionReview(s *domain.ReviewState, rating domain.Rating, now time.Time, cfg *SchedulerConfig) time.Duration {
	base := reviewBaseline(s, now)

	switch rating {
	case domain.RatingAgain:
		s.State, s.Step = domain.StateRelearning, 0
		adjust(s, 0.5, 1.0)
		return cfg.relearningSteps[0]

	case domain.RatingHard:
		s.Step = 0
		adjust(s, 1.05, 0.2)
		return days(base*1.2, cfg)

	case domain.RatingGood:
		s.Step = 0
		adjust(s, 1.2, -0.2)
		return days(base*2.5, cfg)

	default: // Easy
		s.Step = 0
		adjust(s, 1.4, -0.6)
		return days(base*3.5, cfg)
	}
}

// reviewBaseline is the day count that Review intervals grow from: the
// stability, or for rows persisted without one, the time since the last
// review, or one day.
func reviewBaseline(s *domain.ReviewState, now time.Time) float64 {
	if s.Stability > 0 {
		return s.Stability
	}
	if s.LastReview != nil {
		if elapsed := now.Sub(*s.LastReview).Hours() / 24; elapsed > 0 {
			return elapsed
		}
	}
	return 1
}

func graduate(s *domain.ReviewState) {
	s.State, s.Step = domain.StateReview, 0
}

// adjust scales stability and shifts difficulty. Interval calculations must
// read the stability before calling it.
func adjust(s *domain.ReviewState, stabilityFactor, difficultyDelta float64) {
	s.Stability *= stabilityFactor
	s.Difficulty += difficultyDelta
}

// days converts a day count into a duration, clamped to [1, MaxIntervalDays].
func days(n float64, cfg *SchedulerConfig) time.Duration {
	n = clamp(n, 1, cfg.maxIntervalDays)
	return time.Duration(math.Round(n * float64(day)))
}

func clampStep(step, n int) int {
	if step < 0 {
		return 0
	}
	if step >= n {
		return n - 1
	}
	return step
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
