package testdb

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/scry-scheduler/internal/platform/migrations"
	"github.com/phrazzld/scry-scheduler/internal/platform/postgres"
	"github.com/phrazzld/scry-scheduler/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

// setupTimeout bounds opening and migrating a test database.
const setupTimeout = 30 * time.Second

// urlEnvVars are checked in order by GetTestDatabaseURL.
var urlEnvVars = []string{"DATABASE_URL", "SCRY_TEST_DB_URL", "SCRY_DATABASE_URL"}

// GetTestDatabaseURL returns the first Postgres URL found in the environment,
// or "" when none is set.
func GetTestDatabaseURL() string {
	for _, name := range urlEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether no Postgres URL is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// OpenSQLite returns a fresh, fully migrated in-memory database that is
// closed when the test ends.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	db, err := sqlite.Open(ctx, sqlite.MemoryDSN, nil)
	require.NoError(t, err, "opening in-memory sqlite")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, migrations.DriverSQLite, nil), "migrating sqlite")
	return db
}

// OpenPostgres connects to the configured Postgres server and applies all
// migrations. The test is skipped when no URL is configured.
func OpenPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL not set - skipping postgres test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, dbURL, nil)
	require.NoError(t, err, "connecting to %s", MaskDatabaseURL(dbURL))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, migrations.DriverPostgres, nil), "migrating postgres")
	return db
}

// MaskDatabaseURL hides the password in a connection URL so it can be
// printed in test failures.
func MaskDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
