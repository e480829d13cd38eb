package db

import (
	"errors"
	"fmt"
)

var (
	// requested record is not found.
	ErrMissing = errors.New("missing")

	// referred parent record is not found on write.
	ErrMissingParent = errors.New("parent record is missing")

	// the record conflicts with one already stored.
	ErrConflict = errors.New("conflict")

	// found more records than expected.
	ErrTooMuch = errors.New("too much")

	// request is malformed. Callers should not retry it as it is.
	ErrInvalid = errors.New("invalid")

	// the operation lost a race with another transaction. Callers may retry.
	ErrRetryable = errors.New("retryable conflict")

	// the database is temporarily unavailable (e.g. connection pool is exhausted).
	ErrUnavailable = fmt.Errorf("%w: temporarily unavailable", ErrRetryable)

	// column is not in the whitelist of the table.
	ErrUnknownColumn = fmt.Errorf("%w: unknown column", ErrInvalid)

	// removing system tags via tag mutation is prohibited.
	ErrSystemTagRemoval = fmt.Errorf("%w: system tags cannot be removed", ErrInvalid)

	// alias looks like a surrogate key.
	ErrNumericAlias = fmt.Errorf("%w: alias should not be a number", ErrInvalid)
)

// Invalid creates an error wrapping ErrInvalid with its reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
