package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when creating an entity whose key is taken.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrConflict is returned when a concurrent writer won the race for the same record.
	ErrConflict = errors.New("concurrent modification")

	// ErrDuplicateOrder is returned when a ledger entry for the same order and kind already exists.
	ErrDuplicateOrder = errors.New("duplicate order entry")
)
