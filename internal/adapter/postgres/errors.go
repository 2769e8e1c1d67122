package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation   = "23505"
	codeUndefinedTable    = "42P01"
	codeDuplicateDatabase = "42P04"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation reports a lost insert race on a unique constraint.
func isUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// isMissingRelation returns true when a query failed because a table does not
// exist yet (schema not bootstrapped).
func isMissingRelation(err error) bool { return pgCode(err) == codeUndefinedTable }

func isDuplicateDatabase(err error) bool { return pgCode(err) == codeDuplicateDatabase }
