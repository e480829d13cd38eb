package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	kpgart "github.com/opst/knitmeta/pkg/db/postgres/artifact"
	kpgflow "github.com/opst/knitmeta/pkg/db/postgres/flow"
	kpgmd "github.com/opst/knitmeta/pkg/db/postgres/metadata"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	kpgrun "github.com/opst/knitmeta/pkg/db/postgres/run"
	kpgschema "github.com/opst/knitmeta/pkg/db/postgres/schema"
	kpgstep "github.com/opst/knitmeta/pkg/db/postgres/step"
	kpgtask "github.com/opst/knitmeta/pkg/db/postgres/task"
	xe "github.com/opst/knitmeta/pkg/errors"
	"github.com/opst/knitmeta/pkg/utils/retry"
)

type knitMetaPostgres struct {
	pool      kpool.Pool
	flows     kdb.FlowInterface
	runs      kdb.RunInterface
	steps     kdb.StepInterface
	tasks     kdb.TaskInterface
	artifacts kdb.ArtifactInterface
	metadata  kdb.MetadataInterface
	schema    kdb.SchemaInterface
}

type Config struct {
	SchemaRepository string
	VersionGate      kdb.VersionGate

	// upper limit of connections. Zero means pgxpool's default.
	MaxConns int32

	// how long a request waits for an idle connection. Zero means "until the request is cancelled".
	AcquireTimeout time.Duration

	// backoff between attempts to connect on start up.
	ConnectBackoff retry.Backoff
}

func DefaultConfig() Config {
	return Config{
		VersionGate:    kdb.DefaultVersionGate(),
		AcquireTimeout: 5 * time.Second,
		ConnectBackoff: retry.Limited(retry.ExponentialBackoff(500*time.Millisecond, 2), 5),
	}
}

type Option func(*Config) *Config

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func WithVersionGate(gate kdb.VersionGate) Option {
	return func(c *Config) *Config {
		c.VersionGate = gate
		return c
	}
}

func WithMaxConns(n int32) Option {
	return func(c *Config) *Config {
		c.MaxConns = n
		return c
	}
}

func WithAcquireTimeout(d time.Duration) Option {
	return func(c *Config) *Config {
		c.AcquireTimeout = d
		return c
	}
}

func WithConnectBackoff(b retry.Backoff) Option {
	return func(c *Config) *Config {
		c.ConnectBackoff = b
		return c
	}
}

// connect makes a pool, and waits the database gets ready.
func connect(ctx context.Context, url string, c Config) (*pgxpool.Pool, error) {
	pconf, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if 0 < c.MaxConns {
		pconf.MaxConns = c.MaxConns
	}

	attempt := 0
	return retry.Blocking(ctx, c.ConnectBackoff, func() (*pgxpool.Pool, error) {
		attempt += 1
		p, err := pgxpool.ConnectConfig(ctx, pconf)
		if err == nil {
			if err = p.Ping(ctx); err == nil {
				return p, nil
			}
			p.Close()
		}
		if ctx.Err() != nil {
			return nil, xe.Wrap(err)
		}
		log.Printf("database is not ready (attempt #%d): %s", attempt, err)
		return nil, fmt.Errorf("%w: %w", retry.ErrRetry, err)
	})
}

// New connects the database and builds kdb.Database on it.
func New(
	ctx context.Context,
	url string,
	options ...Option,
) (kdb.Database, error) {
	c := DefaultConfig()
	for _, option := range options {
		c = *option(&c)
	}

	pool, err := connect(ctx, url, c)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	p := kpool.Wrap(pool, kpool.WithAcquireTimeout(c.AcquireTimeout))
	var schema kdb.SchemaInterface = kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(p, c.SchemaRepository)
	}

	store := records.New(p)
	return &knitMetaPostgres{
		pool:      p,
		flows:     kpgflow.New(store),
		runs:      kpgrun.New(store, kpgrun.WithVersionGate(c.VersionGate)),
		steps:     kpgstep.New(store),
		tasks:     kpgtask.New(store, kpgtask.WithVersionGate(c.VersionGate)),
		artifacts: kpgart.New(store),
		metadata:  kpgmd.New(store),
		schema:    schema,
	}, nil
}

func (k *knitMetaPostgres) Flows() kdb.FlowInterface {
	return k.flows
}

func (k *knitMetaPostgres) Runs() kdb.RunInterface {
	return k.runs
}

func (k *knitMetaPostgres) Steps() kdb.StepInterface {
	return k.steps
}

func (k *knitMetaPostgres) Tasks() kdb.TaskInterface {
	return k.tasks
}

func (k *knitMetaPostgres) Artifacts() kdb.ArtifactInterface {
	return k.artifacts
}

func (k *knitMetaPostgres) Metadata() kdb.MetadataInterface {
	return k.metadata
}

func (k *knitMetaPostgres) Schema() kdb.SchemaInterface {
	return k.schema
}

func (k *knitMetaPostgres) Close() error {
	k.pool.Close()
	return nil
}
