package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailed   = "UNIQUE constraint failed"
	pgDuplicateKeyPhrase = "duplicate key value violates unique constraint"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	msg := err.Error()
	if strings.Contains(msg, pgDuplicateKeyPhrase) {
		return true
	}
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	return strings.Contains(msg, sqliteUniqueFailed)
}

// IsUniqueViolationOn reports whether err is a duplicate-key error raised by one
// of the given constraints. Hints are matched against the constraint name
// (postgres), the key name (mysql) or the "table.column" list (sqlite).
func IsUniqueViolationOn(err error, hints ...string) bool {
	if !IsDuplicateKeyErr(err) {
		return false
	}
	if len(hints) == 0 {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		for _, hint := range hints {
			if pgErr.ConstraintName == hint {
				return true
			}
		}
		return false
	}

	msg := err.Error()
	for _, hint := range hints {
		if hint != "" && strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
