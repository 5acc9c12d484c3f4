package postgres

import (
	"errors"

	"github.com/lib/pq"

	"fleet/internal/repository"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	orderKindConstraint = "wallet_transactions_order_kind_key"
)

// mapError translates driver-level errors into repository sentinels.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeUniqueViolation:
		if pqErr.Constraint == orderKindConstraint {
			return repository.ErrDuplicateOrder
		}
		return repository.ErrAlreadyExists
	case codeSerializationFailure, codeDeadlockDetected:
		return repository.ErrConflict
	}
	return err
}

// isRetryable reports whether the whole transaction may be attempted again.
func isRetryable(err error) bool {
	return errors.Is(err, repository.ErrConflict)
}
