package config

import "github.com/phrazzld/scry-scheduler/internal/domain/srs"

// NewScheduler builds the scheduling engine from these settings. Invalid
// steps fall back to the engine defaults.
func (c SchedulerConfig) NewScheduler() srs.Service {
	return srs.NewServiceWithConfig(srs.NewSchedulerConfig(
		c.LearningSteps,
		c.RelearningSteps,
		c.MaxIntervalDays,
	))
}
