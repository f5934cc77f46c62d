package srs

import (
	"math"
	"slices"
	"time"
)

// Fallbacks substituted when a SchedulerConfig is built from unusable input.
const (
	DefaultLearningStep    = time.Minute
	DefaultRelearningStep  = 10 * time.Minute
	DefaultMaxIntervalDays = 36500.0
)

const day = 24 * time.Hour

// maxRepresentableDays is the longest interval a time.Duration can hold.
var maxRepresentableDays = math.Floor(float64(math.MaxInt64) / float64(day))

// SchedulerConfig holds the tunable parameters of the scheduler. It is
// immutable once built and safe to share between goroutines.
type SchedulerConfig struct {
	learningSteps   []time.Duration
	relearningSteps []time.Duration
	maxIntervalDays float64
}

// NewSchedulerConfig builds a config. Invalid input never fails: non-positive
// steps are dropped, an empty step list becomes a single default step, steps
// are sorted ascending, and a ceiling below one day becomes 36500 days.
func NewSchedulerConfig(learningSteps, relearningSteps []time.Duration, maxIntervalDays float64) *SchedulerConfig {
	if !(maxIntervalDays >= 1) {
		maxIntervalDays = DefaultMaxIntervalDays
	}
	if maxIntervalDays > maxRepresentableDays {
		maxIntervalDays = maxRepresentableDays
	}

	return &SchedulerConfig{
		learningSteps:   normalizeSteps(learningSteps, DefaultLearningStep),
		relearningSteps: normalizeSteps(relearningSteps, DefaultRelearningStep),
		maxIntervalDays: maxIntervalDays,
	}
}

// DefaultSchedulerConfig returns learning steps of 1m and 10m, a single
// 10m relearning step and a 36500 day ceiling.
func DefaultSchedulerConfig() *SchedulerConfig {
	return NewSchedulerConfig(
		[]time.Duration{time.Minute, 10 * time.Minute},
		[]time.Duration{10 * time.Minute},
		DefaultMaxIntervalDays,
	)
}

func normalizeSteps(steps []time.Duration, fallback time.Duration) []time.Duration {
	out := make([]time.Duration, 0, len(steps))
	for _, s := range steps {
		if s > 0 {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []time.Duration{fallback}
	}
	slices.Sort(out)
	return out
}

// LearningSteps returns a copy of the learning step durations.
func (c *SchedulerConfig) LearningSteps() []time.Duration {
	return slices.Clone(c.learningSteps)
}

// RelearningSteps returns a copy of the relearning step durations.
func (c *SchedulerConfig) RelearningSteps() []time.Duration {
	return slices.Clone(c.relearningSteps)
}

// MaxIntervalDays is the ceiling on both stability and day-based intervals.
func (c *SchedulerConfig) MaxIntervalDays() float64 {
	return c.maxIntervalDays
}
