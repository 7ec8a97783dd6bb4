package rent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrValidation marks leases or inputs that break the required-fields contract.
	ErrValidation = errors.New("rent: validation failed")
	// ErrStorage marks an unreachable or failing invoice store; it aborts a run.
	ErrStorage = errors.New("rent: storage unavailable")
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = errors.New("rent: invoice not found")
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("rent: invalid status transition")
)

const pgUniqueViolation = "23505"

// storageError classifies a store error. Errors reported by the database about a
// specific row stay per-tenant; anything else means the store itself failed.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return fmt.Errorf("rent: %s: %w", op, err)
		}
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// IsAbort reports whether err should stop the whole run instead of a single tenant.
func IsAbort(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
