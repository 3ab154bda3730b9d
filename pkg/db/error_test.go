package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: gorm.ErrDuplicatedKey, want: true},
		{name: "postgres", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "postgres other code", err: &pgconn.PgError{Code: "40001"}, want: false},
		{name: "mysql", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, want: true},
		{name: "sqlite", err: errors.New("constraint failed: UNIQUE constraint failed: ledger_transactions.number (2067)"), want: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "other", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsUniqueViolationOn(t *testing.T) {
	hints := []string{"ux_ledger_transactions_number", "ledger_transactions.number"}

	assert.True(t, IsUniqueViolationOn(&pgconn.PgError{Code: "23505", ConstraintName: "ux_ledger_transactions_number"}, hints...))
	assert.False(t, IsUniqueViolationOn(&pgconn.PgError{Code: "23505", ConstraintName: "ledger_transaction_sources_pkey"}, hints...))
	assert.True(t, IsUniqueViolationOn(errors.New("UNIQUE constraint failed: ledger_transactions.number"), hints...))
	assert.False(t, IsUniqueViolationOn(errors.New("UNIQUE constraint failed: ledger_transaction_sources.ledger_transaction_id"), hints...))
	assert.True(t, IsUniqueViolationOn(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'X abcd' for key 'ux_ledger_transactions_number'"}, hints...))
	assert.False(t, IsUniqueViolationOn(errors.New("boom"), hints...))
	assert.True(t, IsUniqueViolationOn(gorm.ErrDuplicatedKey))
}
