package storage

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	// The explicit device ID is already taken.
	ErrDuplicateID = errors.New("device id already exists")
	// A stored value could not be decoded into its typed field.
	ErrMalformedRecord   = errors.New("malformed record")
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)

func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		return true
	}
	return false
}
