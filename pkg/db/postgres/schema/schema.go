package schema

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	xe "github.com/opst/knitmeta/pkg/errors"
)

// ErrOutdated is the cause of cancellation by Context, when the schema in database is old.
var ErrOutdated = errors.New("schema is outdated")

type pgSchema struct {
	pool             kpool.Pool
	schemaRepository string
}

// New creates a new Schema.
//
// # Args
//
// - pool: connection pool to the database.
//
// - schemaRepository: The path to the schema repository directory.
// It has subdirectories named by version numbers, each of which has *.sql files.
// Files are applied in lexical order.
func New(pool kpool.Pool, schemaRepository string) *pgSchema {
	return &pgSchema{
		pool:             pool,
		schemaRepository: schemaRepository,
	}
}

type version struct {
	Version int
	Root    string
}

func (v version) Apply(ctx context.Context, conn kpool.Queryer) error {
	return filepath.WalkDir(v.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		query, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(query)); err != nil {
			return xe.WrapWithNote(path, err)
		}
		return nil
	})
}

func currentVersion(ctx context.Context, conn kpool.Queryer) (int, error) {
	var version *int
	if err := conn.QueryRow(
		ctx, `SELECT max("version") FROM "schema_version"`,
	).Scan(&version); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UndefinedTable {
				return 0, nil
			}
		}
		return -1, err
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return -1, xe.Wrap(err)
	}
	defer conn.Release()
	return currentVersion(ctx, conn)
}

// Upgrade applies versions newer than the database, in one transaction.
func (s *pgSchema) Upgrade(ctx context.Context) error {
	schemaVersions, err := s.versions()
	if err != nil {
		return xe.Wrap(err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	current, err := currentVersion(ctx, tx)
	if err != nil {
		return xe.Wrap(err)
	}

	for _, v := range schemaVersions {
		if v.Version <= current {
			continue
		}
		if err := v.Apply(ctx, tx); err != nil {
			return xe.WrapWithNote(fmt.Sprintf("version %d", v.Version), err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
			return xe.Wrap(err)
		}
		if _, err := tx.Exec(
			ctx, `INSERT INTO "schema_version" ("version") VALUES ($1)`, v.Version,
		); err != nil {
			return xe.Wrap(err)
		}
	}

	return xe.Wrap(tx.Commit(ctx))
}

// Latest returns the newest version in the schema repository. 0 if there are no versions.
func (s *pgSchema) Latest() (int, error) {
	vs, err := s.versions()
	if err != nil {
		return -1, err
	}
	if len(vs) == 0 {
		return 0, nil
	}
	return vs[len(vs)-1].Version, nil
}

// Context derives a context, which is cancelled with ErrOutdated as its cause
// when the database schema is older than the schema repository.
//
// The repository is watched. Adding a new version directory cancels the context.
func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, can := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		can(err)
		return cctx, func() {}
	}
	if err := w.Add(s.schemaRepository); err != nil {
		w.Close()
		can(err)
		return cctx, func() {}
	}

	checkVersion := func() {
		latest, err := s.Latest()
		if err != nil {
			can(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}

		current, err := s.Version(cctx)
		if err != nil {
			can(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}

		if current < latest {
			can(fmt.Errorf(
				"%w: %d (in db) < %d (in repository)", ErrOutdated, current, latest,
			))
		}
	}

	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if filepath.Clean(s.schemaRepository) != filepath.Dir(ev.Name) {
					continue
				}
				checkVersion()
			}
		}
	}()

	checkVersion()
	return cctx, func() { can(nil) }
}

// versions lookup the schema from the schema repository.
//
// # Returns
//
// - []version: The list of schema versions, sorted by version number.
//
// - error: The error if any.
func (s *pgSchema) versions() ([]version, error) {
	dir, err := os.ReadDir(s.schemaRepository)
	if err != nil {
		return nil, err
	}

	schemaVersions := make([]version, 0, len(dir))
	for _, entry := range dir {
		if !entry.IsDir() {
			continue
		}
		v, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		schemaVersions = append(schemaVersions, version{
			Version: v,
			Root:    filepath.Join(s.schemaRepository, entry.Name()),
		})
	}
	slices.SortFunc(
		schemaVersions,
		func(i, j version) int { return cmp.Compare(i.Version, j.Version) },
	)

	return schemaVersions, nil
}

func Null() *nullSchema {
	return &nullSchema{}
}

// nullSchema is used when no schema repository is configured.
type nullSchema struct{}

func (nullSchema) Upgrade(ctx context.Context) error {
	return errors.New("no schema repository available")
}

func (nullSchema) Version(ctx context.Context) (int, error) {
	return -1, nil
}

func (nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}
