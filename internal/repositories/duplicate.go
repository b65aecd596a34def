package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Unique columns in reporting order.
var uniqueColumns = []string{"email", "registration"}

const pgUniqueViolation = "23505"

// duplicateFields reports the unique columns a store error complains about.
// ok is false when err is not a unique violation.
func duplicateFields(err error) (fields []string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return nil, false
		}
		return columnsIn(pgErr.ConstraintName + " " + pgErr.Detail), true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
			return nil, false
		}
		// "UNIQUE constraint failed: users.email"
		return columnsIn(liteErr.Error()), true
	}

	return nil, false
}

func columnsIn(s string) []string {
	var fields []string
	for _, col := range uniqueColumns {
		if strings.Contains(s, col) {
			fields = append(fields, col)
		}
	}
	return fields
}
