package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestContainsErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, CodeUniqueViolation, false},
		{"code in SQLSTATE suffix", errors.New("duplicate key value (SQLSTATE 23505)"), CodeUniqueViolation, true},
		{"bare code", errors.New("Error 23505 occurred"), CodeUniqueViolation, true},
		{"other code", errors.New("SQLSTATE 23503 foreign key violation"), CodeUniqueViolation, false},
		{"empty message", errors.New(""), CodeUniqueViolation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsErrorCode(tt.err, tt.code))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pg error", &pgconn.PgError{Code: CodeUniqueViolation}, true},
		{"wrapped pg error", fmt.Errorf("insert type: %w", &pgconn.PgError{Code: CodeUniqueViolation}), true},
		{"pg foreign key", &pgconn.PgError{Code: CodeForeignKeyViolation}, false},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
		{"sqlite message", errors.New("UNIQUE constraint failed: types.value, types.entity_type"), true},
		{"string with code", errors.New("pq: duplicate key (SQLSTATE 23505)"), true},
		{"generic", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestOtherViolations(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: CodeForeignKeyViolation}))
	assert.True(t, IsForeignKeyViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}))
	assert.False(t, IsForeignKeyViolation(nil))
	assert.True(t, IsNotNullViolation(errors.New("SQLSTATE 23502")))
	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: CodeCheckViolation}))
	assert.False(t, IsCheckViolation(&pgconn.PgError{Code: CodeNotNullViolation}))
}
