package records

import (
	"context"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	"github.com/opst/knitmeta/pkg/conn/db/postgres/scanner"
	kpgerr "github.com/opst/knitmeta/pkg/db/postgres/errors"
	xe "github.com/opst/knitmeta/pkg/errors"
)

// Store runs statements on a connection pool.
type Store struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *Store {
	return &Store{pool: pool}
}

// Read runs fn with a pooled connection, out of transactions.
//
// Errors are classified by kpgerr.Classify.
func (s *Store) Read(ctx context.Context, fn func(kpool.Queryer) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(kpgerr.Classify(err))
	}
	defer conn.Release()
	return kpgerr.Classify(fn(conn))
}

// InTx runs fn in a transaction with the isolation level.
//
// When fn returns nil, the transaction is committed. Otherwise, it is rolled back.
//
// Errors, including ones on commit, are classified by kpgerr.Classify.
// So a serialization failure is ErrRetryable.
func (s *Store) InTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(kpool.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return xe.Wrap(kpgerr.Classify(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return kpgerr.Classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return xe.Wrap(kpgerr.Classify(err))
	}
	return nil
}

// Get returns all rows returned by the statement.
func Get[T any](ctx context.Context, q kpool.Queryer, stmt Statement) ([]T, error) {
	sql, params, err := stmt.SQL()
	if err != nil {
		return nil, xe.Wrap(err)
	}
	rows, err := scanner.New[T]().QueryAll(ctx, q, sql, params...)
	if err != nil {
		return nil, xe.Wrap(kpgerr.Classify(err))
	}
	return rows, nil
}

func conditions(stmt Statement) string {
	switch s := stmt.(type) {
	case Query:
		return describe(s.Where)
	case Insert:
		return describe(s.Values)
	case Update:
		return describe(s.Where)
	case Bump:
		return describe(s.Where)
	case Exists:
		return describe(s.Where)
	}
	return ""
}

// GetOne returns exactly one row returned by the statement.
//
// # Returns
//
// - T: the row.
//
// - error: kpgerr.Missing when no rows. kpgerr.TooMuch when too many rows.
func GetOne[T any](ctx context.Context, q kpool.Queryer, stmt Statement) (T, error) {
	rows, err := Get[T](ctx, q, stmt)
	if err != nil {
		return *new(T), err
	}
	switch len(rows) {
	case 0:
		return *new(T), xe.Wrap(kpgerr.Missing{
			Table: stmt.Target().Name, Identity: conditions(stmt),
		})
	case 1:
		return rows[0], nil
	default:
		return *new(T), xe.Wrap(kpgerr.TooMuch{
			Table: stmt.Target().Name, Identity: conditions(stmt), Expected: 1,
		})
	}
}

// InsertOne inserts a row and returns it as persisted.
//
// # Returns
//
// - T: inserted row.
//
// - bool: true if inserted. False means that the row is skipped by ON CONFLICT DO NOTHING.
//
// - error
func InsertOne[T any](ctx context.Context, q kpool.Queryer, ins Insert) (T, bool, error) {
	rows, err := Get[T](ctx, q, ins)
	if err != nil {
		return *new(T), false, err
	}
	if len(rows) == 0 {
		return *new(T), false, nil
	}
	return rows[0], true, nil
}

// Any tells whether some rows in the table match conditions.
func Any(ctx context.Context, q kpool.Queryer, table Table, where ...Field) (bool, error) {
	return GetOne[bool](ctx, q, Exists{Table: table, Where: where})
}

// UpdateOne runs an update statement expected to hit exactly one row.
//
// When no rows are updated, it returns kpgerr.Missing.
func UpdateOne[T any](ctx context.Context, q kpool.Queryer, stmt Statement) (T, error) {
	return GetOne[T](ctx, q, stmt)
}
