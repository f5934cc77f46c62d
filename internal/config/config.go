package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Recorder  RecorderConfig  `mapstructure:"recorder" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port               int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel           string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig selects the store backend. The sqlite driver accepts a file
// path or ":memory:" as URL.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL    string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// SchedulerConfig holds the raw scheduler tunables. Invalid step values are
// not rejected here; the scheduler substitutes its own defaults.
type SchedulerConfig struct {
	LearningSteps   []time.Duration `mapstructure:"learning_steps"`
	RelearningSteps []time.Duration `mapstructure:"relearning_steps"`
	MaxIntervalDays float64         `mapstructure:"max_interval_days" validate:"gte=0"`
}

// RecorderConfig sizes the asynchronous review recorder.
type RecorderConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0,lte=64"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`
}
