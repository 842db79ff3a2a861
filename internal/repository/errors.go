package repository

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, NoSQL, etc.)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with a unique key
// (same wallet, same matric number, or same voter+election pair).
var ErrDuplicate = errors.New("duplicate record")

// isUniqueViolation reports whether err is a SQLite unique or primary key violation
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
