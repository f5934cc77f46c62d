// Package config loads server, database, auth, scheduler and recorder
// settings from SCRY_ environment variables, an optional .env file and an
// optional config.yaml, and validates them before anything starts.
package config
