// Package testdb opens migrated databases for tests.
//
// OpenSQLite gives every test its own in-memory database, so tests that use
// it can run in parallel without sharing rows. OpenPostgres connects to the
// server named by DATABASE_URL and skips the test when no URL is set.
//
// WithTx runs a test body inside a transaction that is always rolled back,
// which keeps Postgres tests isolated from each other:
//
//	func TestCardStore(t *testing.T) {
//	    db := testdb.OpenPostgres(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        cards := postgres.NewPostgresCardStore(db, nil).WithTx(tx)
//	        // ...
//	    })
//	}
package testdb
