package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
)

// requested data is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return kdb.ErrMissing
}

// requested data is found too much.
type TooMuch struct {
	Table    string
	Identity string
	Expected int
}

var _ error = TooMuch{}

func (t TooMuch) Error() string {
	return fmt.Sprintf(
		"%s is found in %s more than %d times",
		t.Identity, t.Table, t.Expected,
	)
}

func (t TooMuch) Unwrap() error {
	return kdb.ErrTooMuch
}

// classified error. It is both of its kind (a sentinel in kdb) and the original error.
type classified struct {
	kind error
	err  error
}

func (c classified) Error() string {
	return fmt.Sprintf("%s: %s", c.kind, c.err)
}

func (c classified) Unwrap() []error {
	return []error{c.kind, c.err}
}

// Classify maps errors from postgres into sentinels in kdb.
//
//   - unique violation -> ErrConflict
//   - foreign key violation -> ErrMissingParent
//   - serialization failure or deadlock -> ErrRetryable
//   - pool acquire timeout -> ErrUnavailable
//
// Other errors are returned as they are. nil is nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if c := (classified{}); errors.As(err, &c) {
		return err
	}
	if errors.Is(err, kpool.ErrAcquireTimeout) {
		return classified{kind: kdb.ErrUnavailable, err: err}
	}

	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return err
	}
	switch pgerr.Code {
	case pgerrcode.UniqueViolation:
		return classified{kind: kdb.ErrConflict, err: err}
	case pgerrcode.ForeignKeyViolation:
		return classified{kind: kdb.ErrMissingParent, err: err}
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return classified{kind: kdb.ErrRetryable, err: err}
	case pgerrcode.TooManyConnections, pgerrcode.CannotConnectNow:
		return classified{kind: kdb.ErrUnavailable, err: err}
	}
	return err
}
