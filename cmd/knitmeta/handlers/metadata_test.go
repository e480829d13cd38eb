package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/opst/knitmeta/cmd/knitmeta/handlers"
	httptestutil "github.com/opst/knitmeta/internal/testutils/http"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	"github.com/opst/knitmeta/pkg/cmp"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/mocks"
)

func TestCreateMetadataHandler(t *testing.T) {
	type When struct {
		inserted int
		err      error
	}

	theory := func(when When, expected int) func(*testing.T) {
		return func(t *testing.T) {
			dbmd := &mocks.MetadataInterface{}
			dbmd.Impl.Create = func(ctx context.Context, ref kdb.TaskRef, metadata []kdb.NewMetadata) (int, error) {
				return when.inserted, when.err
			}
			e := echo.New()
			c, rec := httptestutil.Post(e, "/", strings.NewReader(`[
				{"field_name": "attempt", "value": "0", "type": "attempt", "tags": ["attempt_id:0"]},
				{"field_name": "attempt", "value": "1", "type": "attempt", "tags": ["attempt_id:1"]}
			]`), httptestutil.JSON())
			c = taskParams(c)

			err := handlers.CreateMetadataHandler(dbmd)(c)
			if actual := code(t, err); actual != expected {
				t.Fatalf("status code: actual = %d, expected = %d", actual, expected)
			}
			if dbmd.Calls.Create.Times() != 1 {
				t.Fatalf("Create is called %d times", dbmd.Calls.Create.Times())
			}
			call := dbmd.Calls.Create[0]
			if call.Ref != theTask {
				t.Errorf("Create is called for %+v", call.Ref)
			}
			if !cmp.SliceEqWith(call.Metadata, []string{"0", "1"}, func(m kdb.NewMetadata, v string) bool {
				return m.FieldName == "attempt" && m.Value == v && m.Tags.Equal(kdb.TagSet{"attempt_id:" + v})
			}) {
				t.Errorf("Create is called with %+v", call.Metadata)
			}
			if err == nil {
				if body := decodeBody[apirecords.MetadataCreated](t, rec); body.MetadataCreated != when.inserted {
					t.Errorf("metadata_created: actual = %d, expected = %d", body.MetadataCreated, when.inserted)
				}
			}
		}
	}

	t.Run("it responds how many metadata are created", theory(When{inserted: 2}, http.StatusOK))
	t.Run("unresolved task is bad request", theory(
		When{err: kdb.Unresolved{Kind: "task", Token: "3", ParentMissing: true}}, http.StatusBadRequest,
	))
	t.Run("invalid metadata is bad request", theory(
		When{err: kdb.Invalid("field_name should not be empty")}, http.StatusBadRequest,
	))
}

func TestListMetadataHandlers(t *testing.T) {
	rows := []kdb.Metadata{{Id: 1, FieldName: "attempt"}, {Id: 2, FieldName: "attempt"}}
	dbmd := &mocks.MetadataInterface{}
	dbmd.Impl.ListByTask = func(ctx context.Context, ref kdb.TaskRef) ([]kdb.Metadata, error) {
		return rows, nil
	}
	dbmd.Impl.ListByRun = func(ctx context.Context, ref kdb.RunRef) ([]kdb.Metadata, error) {
		return rows, nil
	}
	e := echo.New()
	sameIds := func(a []kdb.Metadata) bool {
		return cmp.SliceEqWith(a, []int64{1, 2}, func(m kdb.Metadata, id int64) bool { return m.Id == id })
	}

	t.Run("by task", func(t *testing.T) {
		c, rec := httptestutil.Get(e, "/")
		c = taskParams(c)
		if actual := code(t, handlers.ListTaskMetadataHandler(dbmd)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		if body := decodeBody[[]kdb.Metadata](t, rec); !sameIds(body) {
			t.Errorf("unexpected response: %+v", body)
		}
		if !cmp.SliceEq(dbmd.Calls.ListByTask, []kdb.TaskRef{theTask}) {
			t.Errorf("ListByTask is called with %+v", dbmd.Calls.ListByTask)
		}
	})

	t.Run("by run", func(t *testing.T) {
		c, rec := httptestutil.Get(e, "/")
		c = taskParams(c)
		if actual := code(t, handlers.ListRunMetadataHandler(dbmd)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		if body := decodeBody[[]kdb.Metadata](t, rec); !sameIds(body) {
			t.Errorf("unexpected response: %+v", body)
		}
		if !cmp.SliceEq(dbmd.Calls.ListByRun, []kdb.RunRef{theTask.RunRef}) {
			t.Errorf("ListByRun is called with %+v", dbmd.Calls.ListByRun)
		}
	})
}
