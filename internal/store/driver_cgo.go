//go:build cgo

package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// isConstraintErr reports whether err is a SQLite constraint failure
// (UNIQUE, CHECK, NOT NULL or FOREIGN KEY).
func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
