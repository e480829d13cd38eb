package schema_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	ctxutil "github.com/opst/knitmeta/internal/testutils/context"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	"github.com/opst/knitmeta/pkg/conn/db/postgres/scanner"
	"github.com/opst/knitmeta/pkg/cmp"
	"github.com/opst/knitmeta/pkg/db/postgres/pool/testenv"
	"github.com/opst/knitmeta/pkg/db/postgres/schema"
	"github.com/opst/knitmeta/pkg/utils/try"
)

type schemaVersionTable struct {
	Version int
}

type exampleTable struct {
	Id   int
	Name string
}

func testContext(t *testing.T) context.Context {
	return ctxutil.WithTest(context.Background(), t)
}

func emptyDatabase(ctx context.Context, t *testing.T) kpool.Pool {
	return testenv.NewPoolBroaker(ctx, t, testenv.WithoutSchema()).GetPool(ctx, t)
}

func queryTable[T any](ctx context.Context, t *testing.T, pool kpool.Pool, query string) ([]T, bool) {
	t.Helper()
	conn := try.To(pool.Acquire(ctx)).OrFatal(t)
	defer conn.Release()

	rows, err := scanner.New[T]().QueryAll(ctx, conn, query)
	if err != nil {
		pgerr := new(pgconn.PgError)
		if errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
			return nil, false
		}
		t.Fatal(err)
	}
	return rows, true
}

func TestPgSchema_Upgrade(t *testing.T) {
	type When struct {
		Testdata string
	}

	type Then struct {
		VersionBefore      int
		VersionAfter       int
		TableSchemaVersion []schemaVersionTable

		TableFooNotExists bool
		TableFoo          []exampleTable

		TableBarNotExists bool
		TableBar          []exampleTable
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := testContext(t)
			pool := emptyDatabase(ctx, t)

			if given, err := os.ReadFile(filepath.Join(when.Testdata, "given.sql")); err == nil {
				tx := try.To(pool.Begin(ctx)).OrFatal(t)
				defer tx.Rollback(ctx)
				try.To(tx.Exec(ctx, string(given))).OrFatal(t)
				if err := tx.Commit(ctx); err != nil {
					t.Fatal(err)
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				t.Fatal(err)
			}

			testee := schema.New(pool, filepath.Join(when.Testdata, "versions"))
			if got := try.To(testee.Version(ctx)).OrFatal(t); got != then.VersionBefore {
				t.Errorf("version before upgrade\n- got: %v\n- want: %v", got, then.VersionBefore)
			}

			if err := testee.Upgrade(ctx); err != nil {
				t.Fatalf("failed to upgrade schema: %v", err)
			}

			if got := try.To(testee.Version(ctx)).OrFatal(t); got != then.VersionAfter {
				t.Errorf("version after upgrade\n- got: %v\n- want: %v", got, then.VersionAfter)
			}

			gotVersion, _ := queryTable[schemaVersionTable](ctx, t, pool, `TABLE "schema_version"`)
			if !cmp.SliceContentEq(gotVersion, then.TableSchemaVersion) {
				t.Errorf("table schema_version\n- got: %v\n- want: %v", gotVersion, then.TableSchemaVersion)
			}

			gotFoo, fooExists := queryTable[exampleTable](ctx, t, pool, `TABLE "foo"`)
			if fooExists == then.TableFooNotExists {
				t.Errorf("table foo: exists = %v", fooExists)
			}
			if !cmp.SliceContentEq(gotFoo, then.TableFoo) {
				t.Errorf("table foo\n- got: %v\n- want: %v", gotFoo, then.TableFoo)
			}

			gotBar, barExists := queryTable[exampleTable](ctx, t, pool, `TABLE "bar"`)
			if barExists == then.TableBarNotExists {
				t.Errorf("table bar: exists = %v", barExists)
			}
			if !cmp.SliceContentEq(gotBar, then.TableBar) {
				t.Errorf("table bar\n- got: %v\n- want: %v", gotBar, then.TableBar)
			}
		}
	}

	t.Run("case 1: build schema from scratch", theory(
		When{Testdata: "testdata/case1"},
		Then{
			VersionBefore:      0,
			VersionAfter:       2,
			TableSchemaVersion: []schemaVersionTable{{Version: 2}},
			TableFoo:           []exampleTable{{Id: 1, Name: "foo-1"}, {Id: 2, Name: "foo-2"}},
			TableBar:           []exampleTable{{Id: 1, Name: "bar-1"}},
		},
	))

	t.Run("case 2: upgrade schema from version 1 to 2", theory(
		When{Testdata: "testdata/case2"},
		Then{
			VersionBefore:      1,
			VersionAfter:       2,
			TableSchemaVersion: []schemaVersionTable{{Version: 2}},
			TableFoo:           []exampleTable{{Id: 1, Name: "foo-1"}, {Id: 2, Name: "foo-2"}},
			TableBar:           []exampleTable{{Id: 1, Name: "bar-1"}},
		},
	))

	t.Run("case 3: no upgrade", theory(
		When{Testdata: "testdata/case3"},
		Then{
			VersionBefore:      2,
			VersionAfter:       2,
			TableSchemaVersion: []schemaVersionTable{{Version: 2}},
			TableFooNotExists:  true,
			TableBarNotExists:  true,
		},
	))
}

func TestPgSchema_Context(t *testing.T) {
	ctx := testContext(t)
	pool := emptyDatabase(ctx, t)

	t.Run("it is cancelled when there are no schema", func(t *testing.T) {
		testee := schema.New(pool, "testdata/case1/versions")
		schemaCtx, cancel := testee.Context(ctx)
		defer cancel()

		<-schemaCtx.Done()
		if err := context.Cause(schemaCtx); !errors.Is(err, schema.ErrOutdated) {
			t.Errorf("unexpected cause: %v", err)
		}
	})

	if err := schema.New(pool, "testdata/case1/versions").Upgrade(ctx); err != nil {
		t.Fatal(err)
	}

	t.Run("it is alive while the schema is up to date", func(t *testing.T) {
		testee := schema.New(pool, "testdata/case1/versions")
		schemaCtx, cancel := testee.Context(ctx)
		defer cancel()

		select {
		case <-schemaCtx.Done():
			t.Errorf("unexpected cancellation: %v", context.Cause(schemaCtx))
		default:
		}
	})

	t.Run("it is cancelled when a new version comes", func(t *testing.T) {
		dir := t.TempDir()
		for _, v := range []string{"1", "2"} {
			if err := os.Mkdir(filepath.Join(dir, v), 0755); err != nil {
				t.Fatal(err)
			}
		}

		testee := schema.New(pool, dir)
		schemaCtx, cancel := testee.Context(ctx)
		defer cancel()

		select {
		case <-schemaCtx.Done():
			t.Fatalf("unexpected cancellation: %v", context.Cause(schemaCtx))
		default:
		}

		if err := os.Mkdir(filepath.Join(dir, "3"), 0755); err != nil {
			t.Fatal(err)
		}

		select {
		case <-schemaCtx.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("context is not cancelled")
		}
		if err := context.Cause(schemaCtx); !errors.Is(err, schema.ErrOutdated) {
			t.Errorf("unexpected cause: %v", err)
		}
	})
}

func TestModuleSchema(t *testing.T) {
	ctx := testContext(t)
	pool := emptyDatabase(ctx, t)

	testee := schema.New(pool, testenv.SchemaRepository(t))
	if err := testee.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}
	latest := try.To(testee.Latest()).OrFatal(t)
	if got := try.To(testee.Version(ctx)).OrFatal(t); got != latest || got < 1 {
		t.Errorf("version = %d, latest = %d", got, latest)
	}

	// upgrading twice is harmless.
	if err := testee.Upgrade(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestRunner(t *testing.T) {
	ctx := context.Background()

	// a fake upgrader: prints 3 with --current, fails with --fail, otherwise does nothing.
	fake := []string{
		"sh", "-c",
		`case "$1" in --current) echo 3 ;; --fail) echo broken >&2; exit 1 ;; esac`,
		"schema_upgrader",
	}

	t.Run("Version parses output of the upgrader", func(t *testing.T) {
		testee := schema.Runner{Command: fake}
		if got := try.To(testee.Version(ctx)).OrFatal(t); got != 3 {
			t.Errorf("version = %d", got)
		}
	})

	t.Run("Upgrade succeeds when the upgrader exits with 0", func(t *testing.T) {
		testee := schema.Runner{Command: fake}
		if err := testee.Upgrade(ctx); err != nil {
			t.Error(err)
		}
	})

	t.Run("failure of the upgrader is reported", func(t *testing.T) {
		testee := schema.Runner{Command: append(append([]string{}, fake...), "--fail")}
		if err := testee.Upgrade(ctx); err == nil {
			t.Error("expected error, but got nil")
		}
	})

	t.Run("empty command is an error", func(t *testing.T) {
		if _, err := (schema.Runner{}).Version(ctx); err == nil {
			t.Error("expected error, but got nil")
		}
	})
}
