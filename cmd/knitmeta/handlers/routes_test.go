package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/opst/knitmeta/cmd/knitmeta/handlers"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	"github.com/opst/knitmeta/pkg/cmp"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/mocks"
)

func TestRegister(t *testing.T) {
	newServer := func() (*echo.Echo, *mocks.Database) {
		db := mocks.NewDatabase()
		e := echo.New()
		handlers.Register(e, db, nil, "v1.2.3")
		return e, db
	}
	serve := func(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("ping", func(t *testing.T) {
		e, _ := newServer()
		rec := serve(e, http.MethodGet, "/ping", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("unexpected response: %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("version", func(t *testing.T) {
		e, db := newServer()
		db.MockSchema.Impl.Version = func(ctx context.Context) (int, error) { return 3, nil }
		rec := serve(e, http.MethodGet, "/version", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status code: %d", rec.Code)
		}
		if body := decodeBody[apirecords.Version](t, rec); body != (apirecords.Version{Server: "v1.2.3", Schema: 3}) {
			t.Errorf("unexpected response: %+v", body)
		}
	})

	t.Run("version is unavailable when the database is", func(t *testing.T) {
		e, db := newServer()
		db.MockSchema.Impl.Version = func(ctx context.Context) (int, error) { return -1, kdb.ErrUnavailable }
		if rec := serve(e, http.MethodGet, "/version", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status code: %d", rec.Code)
		}
	})

	t.Run("run is addressed by number or alias", func(t *testing.T) {
		e, db := newServer()
		db.MockRuns.Impl.Get = func(ctx context.Context, ref kdb.RunRef) (kdb.Run, error) {
			return kdb.Run{FlowId: ref.FlowId, RunNumber: 5}, nil
		}
		serve(e, http.MethodGet, "/flows/flow-1/runs/5", "")
		serve(e, http.MethodGet, "/flows/flow-1/runs/nightly", "")

		expected := []kdb.RunRef{{FlowId: "flow-1", Run: "5"}, {FlowId: "flow-1", Run: "nightly"}}
		if !cmp.SliceEq(db.MockRuns.Calls.Get, expected) {
			t.Errorf("Get is called with %+v", db.MockRuns.Calls.Get)
		}
	})

	t.Run("tag mutation is routed with PATCH", func(t *testing.T) {
		e, db := newServer()
		db.MockRuns.Impl.MutateTags = func(ctx context.Context, ref kdb.RunRef, mutation kdb.TagMutation) (kdb.TagSet, error) {
			return kdb.TagSet{"a"}, nil
		}
		rec := serve(e, http.MethodPatch, "/flows/flow-1/runs/1/tag/mutate", `{"tags_to_add": ["a"]}`)
		if rec.Code != http.StatusOK {
			t.Errorf("status code: %d", rec.Code)
		}
		if db.MockRuns.Calls.MutateTags.Times() != 1 {
			t.Errorf("MutateTags is called %d times", db.MockRuns.Calls.MutateTags.Times())
		}
	})

	t.Run("artifacts of a task are routed to the task", func(t *testing.T) {
		e, db := newServer()
		db.MockArtifacts.Impl.Create = func(ctx context.Context, ref kdb.TaskRef, artifacts []kdb.NewArtifact) (int, error) {
			return len(artifacts), nil
		}
		rec := serve(
			e, http.MethodPost, "/flows/flow-1/runs/1/steps/train/tasks/worker-a/artifact",
			`[{"name": "model", "location": "s3://bucket/model", "attempt_id": 0}]`,
		)
		if rec.Code != http.StatusOK {
			t.Fatalf("status code: %d", rec.Code)
		}
		if body := decodeBody[apirecords.ArtifactsCreated](t, rec); body.ArtifactsCreated != 1 {
			t.Errorf("unexpected response: %+v", body)
		}
		expected := kdb.TaskRef{
			StepRef: kdb.StepRef{RunRef: kdb.RunRef{FlowId: "flow-1", Run: "1"}, StepName: "train"},
			Task:    "worker-a",
		}
		if call := db.MockArtifacts.Calls.Create[0]; call.Ref != expected {
			t.Errorf("Create is called for %+v", call.Ref)
		}
	})

	t.Run("artifact content is not implemented without cache", func(t *testing.T) {
		e, _ := newServer()
		rec := serve(e, http.MethodGet, "/flows/flow-1/runs/1/steps/train/tasks/3/artifacts/model/content", "")
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("status code: %d", rec.Code)
		}
	})

	t.Run("all routes are registered", func(t *testing.T) {
		e, _ := newServer()
		registered := map[string]bool{}
		for _, r := range e.Routes() {
			registered[r.Method+" "+r.Path] = true
		}
		for _, expected := range []string{
			"POST /flows/:flow",
			"POST /flows/:flow/run",
			"POST /flows/:flow/runs/:run/heartbeat",
			"PATCH /flows/:flow/runs/:run/tag/mutate",
			"POST /flows/:flow/runs/:run/steps/:step/step",
			"POST /flows/:flow/runs/:run/steps/:step/task",
			"POST /flows/:flow/runs/:run/steps/:step/tasks/:task/heartbeat",
			"POST /flows/:flow/runs/:run/steps/:step/tasks/:task/artifact",
			"GET /flows/:flow/runs/:run/steps/:step/tasks/:task/artifacts",
			"GET /flows/:flow/runs/:run/steps/:step/tasks/:task/artifacts/:name/attempt/:attempt",
			"POST /flows/:flow/runs/:run/steps/:step/tasks/:task/metadata",
		} {
			if !registered[expected] {
				t.Errorf("%s is not registered", expected)
			}
		}
	})

	t.Run("unknown errors are hidden", func(t *testing.T) {
		e, db := newServer()
		db.MockFlows.Impl.Get = func(ctx context.Context, flowId string) (kdb.Flow, error) {
			return kdb.Flow{}, errors.New("password authentication failed for user knitmeta")
		}
		rec := serve(e, http.MethodGet, "/flows/flow-1", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status code: %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "password") {
			t.Errorf("cause is exposed: %s", rec.Body.String())
		}
	})
}
