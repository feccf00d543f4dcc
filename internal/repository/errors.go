package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"bookshelf/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations
const uniqueViolation = pq.ErrorCode("23505")

// storageError tags err as the single storage failure kind.
func storageError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, model.ErrStorage, err)
}

// mapUniqueViolation turns a users unique violation into the matching rejection.
// The constraint name decides between username and email; other errors are
// reported as storage failures.
func mapUniqueViolation(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch {
		case strings.Contains(pqErr.Constraint, "email"):
			return model.ErrEmailExists
		case strings.Contains(pqErr.Constraint, "username"):
			return model.ErrUsernameExists
		}
		return fmt.Errorf("failed to %s: %w", op, model.ErrDuplicate)
	}
	return storageError(op, err)
}
