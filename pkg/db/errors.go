package db

import (
	"strings"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// A non-empty constraint narrows the match to that index on postgres. SQLite
// names columns rather than indexes in its message, so any unique failure
// matches there.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PGError(err); ok {
		return pg.Code == pgUniqueViolation && (constraint == "" || pg.Constraint == constraint)
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
