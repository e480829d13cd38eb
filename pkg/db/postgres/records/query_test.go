package records_test

import (
	"errors"
	"testing"

	"github.com/opst/knitmeta/pkg/cmp"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
)

var testTable = records.Table{
	Name:    "fruits",
	Columns: []string{"id", "name", "price"},
}

func TestStatements(t *testing.T) {
	type Then struct {
		sql    string
		params []any
	}
	theory := func(when records.Statement, then Then) func(*testing.T) {
		return func(t *testing.T) {
			sql, params, err := when.SQL()
			if err != nil {
				t.Fatal(err)
			}
			if sql != then.sql {
				t.Errorf("sql:\n===actual===\n%s\n===expected===\n%s", sql, then.sql)
			}
			if !cmp.SliceEq(params, then.params) {
				t.Errorf("params: actual = %v, expected = %v", params, then.params)
			}
		}
	}

	t.Run("select all", theory(
		records.Query{Table: testTable},
		Then{
			sql:    `SELECT "id", "name", "price" FROM "fruits"`,
			params: []any{},
		},
	))

	t.Run("select with conditions, ordering and limit", theory(
		records.Query{
			Table:   testTable,
			Where:   []records.Field{records.Eq("name", "apple"), records.Eq("price", 100)},
			OrderBy: []records.Order{records.Desc("id"), records.Asc("name")},
			Limit:   3,
		},
		Then{
			sql:    `SELECT "id", "name", "price" FROM "fruits" WHERE "name" = $1 AND "price" = $2 ORDER BY "id" DESC, "name" ASC LIMIT $3`,
			params: []any{"apple", 100, 3},
		},
	))

	t.Run("nil condition is IS NULL", theory(
		records.Query{Table: testTable, Where: []records.Field{records.Eq("name", nil), records.Eq("id", 1)}},
		Then{
			sql:    `SELECT "id", "name", "price" FROM "fruits" WHERE "name" IS NULL AND "id" = $1`,
			params: []any{1},
		},
	))

	t.Run("values are never interpolated", theory(
		records.Query{Table: testTable, Where: []records.Field{records.Eq("name", `'; DROP TABLE "fruits"; --`)}},
		Then{
			sql:    `SELECT "id", "name", "price" FROM "fruits" WHERE "name" = $1`,
			params: []any{`'; DROP TABLE "fruits"; --`},
		},
	))

	t.Run("insert", theory(
		records.Insert{
			Table:  testTable,
			Values: []records.Field{records.Eq("name", "banana"), records.Eq("price", 80)},
		},
		Then{
			sql:    `INSERT INTO "fruits" ("name", "price") VALUES ($1, $2) RETURNING "id", "name", "price"`,
			params: []any{"banana", 80},
		},
	))

	t.Run("insert on conflict do nothing", theory(
		records.Insert{
			Table:               testTable,
			Values:              []records.Field{records.Eq("id", 1)},
			OnConflictDoNothing: true,
		},
		Then{
			sql:    `INSERT INTO "fruits" ("id") VALUES ($1) ON CONFLICT DO NOTHING RETURNING "id", "name", "price"`,
			params: []any{1},
		},
	))

	t.Run("update", theory(
		records.Update{
			Table: testTable,
			Set:   []records.Field{records.Eq("price", 120)},
			Where: []records.Field{records.Eq("id", 1)},
		},
		Then{
			sql:    `UPDATE "fruits" SET "price" = $1 WHERE "id" = $2 RETURNING "id", "name", "price"`,
			params: []any{120, 1},
		},
	))

	t.Run("bump", theory(
		records.Bump{
			Table:  testTable,
			Column: "price",
			Value:  int64(200),
			Where:  []records.Field{records.Eq("id", 1)},
		},
		Then{
			sql:    `UPDATE "fruits" SET "price" = greatest(coalesce("price", 0), $1) WHERE "id" = $2 RETURNING "id", "name", "price"`,
			params: []any{int64(200), 1},
		},
	))

	t.Run("exists", theory(
		records.Exists{Table: testTable, Where: []records.Field{records.Eq("name", "apple")}},
		Then{
			sql:    `SELECT EXISTS (SELECT 1 FROM "fruits" WHERE "name" = $1)`,
			params: []any{"apple"},
		},
	))
}

func TestAttributes(t *testing.T) {
	t.Run("zero ts_epoch is left to the database", func(t *testing.T) {
		got := records.Attributes(kdb.Attributes{
			UserName: "alice", Tags: kdb.TagSet{"a", "a", "b"}, SystemTags: nil,
		})
		columns := []string{}
		for _, f := range got {
			columns = append(columns, f.Column)
		}
		if !cmp.SliceContentEq(columns, []string{"user_name", "tags", "system_tags"}) {
			t.Errorf("columns: %v", columns)
		}
		for _, f := range got {
			switch f.Column {
			case "tags":
				if !cmp.SliceEq(f.Value.(kdb.TagSet), kdb.TagSet{"a", "b"}) {
					t.Errorf("tags should be deduplicated: %v", f.Value)
				}
			case "system_tags":
				if ts := f.Value.(kdb.TagSet); ts == nil || len(ts) != 0 {
					t.Errorf("system tags should be empty, not nil: %#v", f.Value)
				}
			}
		}
	})

	t.Run("non-zero ts_epoch is stored", func(t *testing.T) {
		got := records.Attributes(kdb.Attributes{TsEpoch: 1234})
		found := false
		for _, f := range got {
			if f.Column == "ts_epoch" && f.Value == int64(1234) {
				found = true
			}
		}
		if !found {
			t.Errorf("ts_epoch is not found: %v", got)
		}
	})
}

func TestStatementsRejectUnknownColumns(t *testing.T) {
	for name, stmt := range map[string]records.Statement{
		"select where": records.Query{Table: testTable, Where: []records.Field{records.Eq("color", "red")}},
		"select order": records.Query{Table: testTable, OrderBy: []records.Order{records.Asc(`id"; --`)}},
		"insert":       records.Insert{Table: testTable, Values: []records.Field{records.Eq("color", "red")}},
		"update set":   records.Update{Table: testTable, Set: []records.Field{records.Eq("color", "red")}},
		"update where": records.Update{
			Table: testTable,
			Set:   []records.Field{records.Eq("price", 1)},
			Where: []records.Field{records.Eq("color", "red")},
		},
		"bump":   records.Bump{Table: testTable, Column: "color"},
		"exists": records.Exists{Table: testTable, Where: []records.Field{records.Eq("color", "red")}},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := stmt.SQL()
			if !errors.Is(err, kdb.ErrUnknownColumn) {
				t.Errorf("unexpected error: %v", err)
			}
			if !errors.Is(err, kdb.ErrInvalid) {
				t.Errorf("ErrUnknownColumn should be ErrInvalid: %v", err)
			}
		})
	}
}

func TestEmptyWrites(t *testing.T) {
	if _, _, err := (records.Insert{Table: testTable}).SQL(); !errors.Is(err, kdb.ErrInvalid) {
		t.Errorf("empty insert: %v", err)
	}
	if _, _, err := (records.Update{Table: testTable}).SQL(); !errors.Is(err, kdb.ErrInvalid) {
		t.Errorf("empty update: %v", err)
	}
}

func TestWhitelists(t *testing.T) {
	for _, table := range []records.Table{
		records.Flows, records.Runs, records.Steps, records.Tasks, records.Metadata, records.Artifacts,
	} {
		for _, col := range []string{"flow_id", "user_name", "ts_epoch", "tags", "system_tags"} {
			if !table.Has(col) {
				t.Errorf("%s should have %s", table.Name, col)
			}
		}
	}
	if records.Flows.Has("run_number") {
		t.Error("flows should not have run_number")
	}
}
