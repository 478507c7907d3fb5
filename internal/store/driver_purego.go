//go:build !cgo

package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const driverName = "sqlite"

// isConstraintErr reports whether err is a SQLite constraint failure
// (UNIQUE, CHECK, NOT NULL or FOREIGN KEY).
func isConstraintErr(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		// Extended result codes keep the primary code in the low byte.
		return serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
