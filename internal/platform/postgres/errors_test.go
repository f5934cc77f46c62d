package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-scheduler/internal/platform/postgres"
	"github.com/phrazzld/scry-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "review_states",
		ColumnName:     "stability",
		ConstraintName: "review_states_stability_check",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	other := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		wantIs  error
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "unique", err: newPgError("23505"), wantIs: store.ErrDuplicate},
		{name: "foreign key", err: newPgError("23503"), wantIs: store.ErrInvalidEntity},
		{name: "check", err: fmt.Errorf("exec: %w", newPgError("23514")), wantIs: store.ErrInvalidEntity},
		{name: "not null", err: newPgError("23502"), wantIs: store.ErrInvalidEntity},
		{name: "unmapped pg code", err: newPgError("40001"), wantIs: nil},
		{name: "passthrough", err: other, wantIs: other},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := postgres.MapError(tc.err)
			if tc.wantNil {
				assert.NoError(t, got)
				return
			}
			assert.Error(t, got)
			if tc.wantIs != nil {
				assert.ErrorIs(t, got, tc.wantIs)
			} else {
				assert.False(t, store.IsNotFoundError(got))
				assert.False(t, store.IsDuplicateError(got))
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(newPgError("23505")))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("wrapped: %w", newPgError("23505"))))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503")))
	assert.False(t, postgres.IsUniqueViolation(errors.New("plain")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(sqlmock.NewResult(0, 1), "card"))

	err := postgres.CheckRowsAffected(sqlmock.NewResult(0, 0), "card")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "card not found")

	err = postgres.CheckRowsAffected(sqlmock.NewErrorResult(errors.New("driver")), "card")
	assert.Contains(t, err.Error(), "failed to get rows affected")

	assert.Error(t, postgres.CheckRowsAffected(nil, "card"))
}
