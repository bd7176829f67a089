package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the callers branch on.
const (
	CodeUniqueViolation   = "23505"
	CodeDuplicateDatabase = "42P04"
	CodeDuplicateObject   = "42710"
)

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}
	return false
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsDuplicateObject reports whether err means a database or role already
// exists, as happens when two instances race on the same create statement.
func IsDuplicateObject(err error) bool {
	return hasCode(err, CodeDuplicateDatabase, CodeDuplicateObject, CodeUniqueViolation)
}
