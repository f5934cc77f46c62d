// Package sqlite implements the store interfaces on an embedded SQLite
// database through the pure-Go modernc.org/sqlite driver. It backs the
// command line tool and single-user deployments; the schema mirrors the
// PostgreSQL one with TEXT identifiers and timestamps.
package sqlite
