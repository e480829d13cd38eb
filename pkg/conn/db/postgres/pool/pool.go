package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ErrAcquireTimeout is returned when no connection becomes available in the pool
// within the acquire timeout.
//
// Callers can retry later.
var ErrAcquireTimeout = errors.New("timeout: no connection available in the pool")

// something begins SQL Transaction
//
// this is extracted interface from "pgxpool.Pool", "pgpool.Conn" or "pgx.Tx".
type Begin interface {
	Begin(ctx context.Context) (Tx, error)
}

// something begins SQL Transaction with options.
//
// this is extracted interface from "pgxpool.Pool" or "pgpool.Conn".
type BeginTx interface {
	Begin
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error)
}

// something sending query with SQL.
//
// this is extracted interface from `pgxpool.Conn` and `pgx.Tx`
type Queryer interface {
	// sending SQL Command which does not have any result rows.
	Exec(ctx context.Context, sql string, arguments ...interface{}) (commandTag pgconn.CommandTag, err error)

	// sending SQL Command which has result rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// sending SQL Command which has just single result row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// interface extracted from `pgx.Tx`
//
// `pgx.Tx` does NOT implement `Tx` since golang lacks covariance.
// Use `Pool` or `Conn` in this package and call `Begin()` to get one.
type Tx interface {
	Queryer
	Begin

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type pgxTx struct {
	base pgx.Tx
}

var _ Tx = &pgxTx{}

func (tx *pgxTx) Begin(ctx context.Context) (Tx, error) {
	new, err := tx.base.Begin(ctx)
	if new == nil {
		return nil, err
	}
	return &pgxTx{new}, err
}
func (tx *pgxTx) Commit(ctx context.Context) error {
	return tx.base.Commit(ctx)
}
func (tx *pgxTx) Rollback(ctx context.Context) error {
	return tx.base.Rollback(ctx)
}
func (tx *pgxTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return tx.base.Exec(ctx, sql, arguments...)
}
func (tx *pgxTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return tx.base.Query(ctx, sql, args...)
}
func (tx *pgxTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return tx.base.QueryRow(ctx, sql, args...)
}

// transaction which owns its connection. The connection goes back to the pool on end.
type pooledTx struct {
	pgxTx
	conn *pgxpool.Conn
}

func (tx *pooledTx) Commit(ctx context.Context) error {
	defer tx.conn.Release()
	return tx.pgxTx.Commit(ctx)
}

func (tx *pooledTx) Rollback(ctx context.Context) error {
	defer tx.conn.Release()
	return tx.pgxTx.Rollback(ctx)
}

// interface extracted from `*pgxpool.Conn`
type Conn interface {
	BeginTx
	Queryer

	Release()
	Ping(ctx context.Context) error
}

type pgxPoolConn struct {
	base *pgxpool.Conn
}

var _ Conn = &pgxPoolConn{}

func (c *pgxPoolConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.base.Begin(ctx)
	if tx == nil {
		return nil, err
	}
	return &pgxTx{tx}, err
}
func (c *pgxPoolConn) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error) {
	tx, err := c.base.BeginTx(ctx, txOptions)
	if tx == nil {
		return nil, err
	}
	return &pgxTx{tx}, err
}
func (c *pgxPoolConn) Release() {
	c.base.Release()
}
func (c *pgxPoolConn) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return c.base.Exec(ctx, sql, arguments...)
}
func (c *pgxPoolConn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return c.base.Query(ctx, sql, args...)
}
func (c *pgxPoolConn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.base.QueryRow(ctx, sql, args...)
}
func (c *pgxPoolConn) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

// interface extracted from `*pgxpool.Pool`
//
// `*pgxpool.Pool` does NOT implement `Pool`. Use `Wrap` to get one.
type Pool interface {
	BeginTx

	// Acquire a connection.
	//
	// When the pool has an acquire timeout and it is exceeded, this returns ErrAcquireTimeout.
	Acquire(ctx context.Context) (Conn, error)

	Ping(ctx context.Context) error
	Close()
}

type pgxPool struct {
	base           *pgxpool.Pool
	acquireTimeout time.Duration
}

var _ Pool = &pgxPool{}

type Option func(*pgxPool)

// WithAcquireTimeout bounds time waiting for a free connection.
//
// Zero or negative means "wait as long as ctx lives".
func WithAcquireTimeout(d time.Duration) Option {
	return func(p *pgxPool) {
		p.acquireTimeout = d
	}
}

func Wrap(p *pgxpool.Pool, options ...Option) Pool {
	w := &pgxPool{base: p}
	for _, o := range options {
		o(w)
	}
	return w
}

func (p *pgxPool) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if p.acquireTimeout <= 0 {
		return p.base.Acquire(ctx)
	}

	actx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()
	conn, err := p.base.Acquire(actx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w (waited %s): %s", ErrAcquireTimeout, p.acquireTimeout, err)
	}
	return nil, err
}

func (p *pgxPool) Begin(ctx context.Context) (Tx, error) {
	return p.BeginTx(ctx, pgx.TxOptions{})
}

func (p *pgxPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error) {
	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, txOptions)
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &pooledTx{pgxTx: pgxTx{tx}, conn: conn}, nil
}

func (p *pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxPoolConn{conn}, nil
}

func (p *pgxPool) Ping(ctx context.Context) error {
	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Ping(ctx)
}

func (p *pgxPool) Close() {
	p.base.Close()
}
