package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/opst/knitmeta/cmd/knitmeta/handlers"
	httptestutil "github.com/opst/knitmeta/internal/testutils/http"
	"github.com/opst/knitmeta/pkg/cmp"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/mocks"
	"github.com/opst/knitmeta/pkg/utils/pointer"
)

func stepParams(c echo.Context) echo.Context {
	return httptestutil.Params(
		c,
		p(handlers.ParamFlow, "flow-1"), p(handlers.ParamRun, "nightly"), p(handlers.ParamStep, "start"),
	)
}

func TestCreateStepHandler(t *testing.T) {
	theory := func(err error, expected int) func(*testing.T) {
		return func(t *testing.T) {
			dbstep := &mocks.StepInterface{}
			dbstep.Impl.Create = func(ctx context.Context, ref kdb.RunRef, stepName string, step kdb.NewStep) (kdb.Step, error) {
				return kdb.Step{FlowId: ref.FlowId, RunNumber: 1, StepName: stepName}, err
			}
			e := echo.New()
			c, rec := httptestutil.Post(
				e, "/flows/flow-1/runs/nightly/steps/start/step",
				strings.NewReader(`{"user_name": "alice", "system_tags": ["metaflow_version:2.1.0"]}`),
				httptestutil.JSON(),
			)
			c = stepParams(c)

			if actual := code(t, handlers.CreateStepHandler(dbstep)(c)); actual != expected {
				t.Fatalf("status code: actual = %d, expected = %d", actual, expected)
			}
			if dbstep.Calls.Create.Times() != 1 {
				t.Fatalf("Create is called %d times", dbstep.Calls.Create.Times())
			}
			call := dbstep.Calls.Create[0]
			if call.Ref != (kdb.StepRef{RunRef: kdb.RunRef{FlowId: "flow-1", Run: "nightly"}, StepName: "start"}) {
				t.Errorf("Create is called for %+v", call.Ref)
			}
			if call.Step.UserName != "alice" || !call.Step.SystemTags.Equal(kdb.TagSet{"metaflow_version:2.1.0"}) {
				t.Errorf("Create is called with %+v", call.Step)
			}
			if err == nil {
				if body := decodeBody[kdb.Step](t, rec); body.StepName != "start" {
					t.Errorf("unexpected response: %+v", body)
				}
			}
		}
	}

	t.Run("it creates a step", theory(nil, http.StatusOK))
	t.Run("missing run is not found", theory(kdb.Unresolved{Kind: "run", Token: "nightly"}, http.StatusNotFound))
	t.Run("duplicated step is conflict", theory(fmt.Errorf("%w: step start", kdb.ErrConflict), http.StatusConflict))
}

func TestGetAndListStepsHandler(t *testing.T) {
	dbstep := &mocks.StepInterface{}
	dbstep.Impl.Get = func(ctx context.Context, ref kdb.StepRef) (kdb.Step, error) {
		return kdb.Step{StepName: ref.StepName, Tags: kdb.TagSet{"run-tag"}}, nil
	}
	dbstep.Impl.List = func(ctx context.Context, ref kdb.RunRef) ([]kdb.Step, error) {
		return []kdb.Step{{StepName: "start"}, {StepName: "end"}}, nil
	}
	e := echo.New()

	t.Run("get", func(t *testing.T) {
		c, rec := httptestutil.Get(e, "/flows/flow-1/runs/nightly/steps/start")
		c = stepParams(c)
		if actual := code(t, handlers.GetStepHandler(dbstep)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		if body := decodeBody[kdb.Step](t, rec); body.StepName != "start" || !body.Tags.Equal(kdb.TagSet{"run-tag"}) {
			t.Errorf("unexpected response: %+v", body)
		}
	})

	t.Run("list", func(t *testing.T) {
		c, rec := httptestutil.Get(e, "/flows/flow-1/runs/nightly/steps")
		c = httptestutil.Params(c, p(handlers.ParamFlow, "flow-1"), p(handlers.ParamRun, "nightly"))
		if actual := code(t, handlers.ListStepsHandler(dbstep)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		body := decodeBody[[]kdb.Step](t, rec)
		if !cmp.SliceEqWith(body, []string{"start", "end"}, func(s kdb.Step, name string) bool { return s.StepName == name }) {
			t.Errorf("unexpected response: %+v", body)
		}
		if !cmp.SliceEq(dbstep.Calls.List, []kdb.RunRef{{FlowId: "flow-1", Run: "nightly"}}) {
			t.Errorf("List is called with %+v", dbstep.Calls.List)
		}
	})
}

func TestCreateTaskHandler(t *testing.T) {
	type When struct {
		body string
		err  error
	}
	type Then struct {
		code     int
		taskName *string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			dbtask := &mocks.TaskInterface{}
			dbtask.Impl.Create = func(ctx context.Context, ref kdb.StepRef, task kdb.NewTask) (kdb.Task, error) {
				return kdb.Task{StepName: ref.StepName, TaskId: 7, TaskName: task.TaskName}, when.err
			}
			e := echo.New()
			c, rec := httptestutil.Post(
				e, "/flows/flow-1/runs/nightly/steps/start/task", strings.NewReader(when.body), httptestutil.JSON(),
			)
			c = stepParams(c)

			if actual := code(t, handlers.CreateTaskHandler(dbtask)(c)); actual != then.code {
				t.Fatalf("status code: actual = %d, expected = %d", actual, then.code)
			}
			if dbtask.Calls.Create.Times() != 1 {
				t.Fatalf("Create is called %d times", dbtask.Calls.Create.Times())
			}
			if call := dbtask.Calls.Create[0]; call.Ref.StepName != "start" || !cmp.PEqEq(call.Task.TaskName, then.taskName) {
				t.Errorf("Create is called with %+v", call)
			}
			if when.err == nil {
				if body := decodeBody[kdb.Task](t, rec); body.TaskId != 7 {
					t.Errorf("unexpected response: %+v", body)
				}
			}
		}
	}

	t.Run("it creates a task", theory(
		When{body: `{}`}, Then{code: http.StatusOK},
	))
	t.Run("it creates a task with name", theory(
		When{body: `{"task_name": "worker-a"}`}, Then{code: http.StatusOK, taskName: pointer.Ref("worker-a")},
	))
	t.Run("missing step is not found", theory(
		When{body: `{}`, err: fmt.Errorf("%w: step start", kdb.ErrMissingParent)},
		Then{code: http.StatusNotFound},
	))
	t.Run("numeric task name is bad request", theory(
		When{body: `{"task_name": "12"}`, err: fmt.Errorf("%w: task_name = 12", kdb.ErrNumericAlias)},
		Then{code: http.StatusBadRequest, taskName: pointer.Ref("12")},
	))
}

func TestTaskHandlers(t *testing.T) {
	ref := kdb.TaskRef{
		StepRef: kdb.StepRef{RunRef: kdb.RunRef{FlowId: "flow-1", Run: "nightly"}, StepName: "start"},
		Task:    "worker-a",
	}
	taskParams := func(c echo.Context) echo.Context {
		return httptestutil.Params(
			c,
			p(handlers.ParamFlow, "flow-1"), p(handlers.ParamRun, "nightly"),
			p(handlers.ParamStep, "start"), p(handlers.ParamTask, "worker-a"),
		)
	}

	t.Run("get", func(t *testing.T) {
		dbtask := &mocks.TaskInterface{}
		dbtask.Impl.Get = func(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
			return kdb.Task{TaskId: 7, TaskName: pointer.Ref(ref.Task)}, nil
		}
		e := echo.New()
		c, rec := httptestutil.Get(e, "/")
		c = taskParams(c)

		if actual := code(t, handlers.GetTaskHandler(dbtask)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		if body := decodeBody[kdb.Task](t, rec); body.TaskId != 7 {
			t.Errorf("unexpected response: %+v", body)
		}
		if !cmp.SliceEq(dbtask.Calls.Get, []kdb.TaskRef{ref}) {
			t.Errorf("Get is called with %+v", dbtask.Calls.Get)
		}
	})

	t.Run("list", func(t *testing.T) {
		dbtask := &mocks.TaskInterface{}
		dbtask.Impl.List = func(ctx context.Context, ref kdb.StepRef) ([]kdb.Task, error) {
			return []kdb.Task{{TaskId: 1}, {TaskId: 2}}, nil
		}
		e := echo.New()
		c, rec := httptestutil.Get(e, "/")
		c = stepParams(c)

		if actual := code(t, handlers.ListTasksHandler(dbtask)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		if body := decodeBody[[]kdb.Task](t, rec); len(body) != 2 {
			t.Errorf("unexpected response: %+v", body)
		}
		if !cmp.SliceEq(dbtask.Calls.List, []kdb.StepRef{ref.StepRef}) {
			t.Errorf("List is called with %+v", dbtask.Calls.List)
		}
	})

	t.Run("heartbeat", func(t *testing.T) {
		dbtask := &mocks.TaskInterface{}
		dbtask.Impl.Heartbeat = func(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
			return kdb.Task{TaskId: 7, LastHeartbeatTs: pointer.Ref[int64](2000)}, nil
		}
		e := echo.New()
		c, rec := httptestutil.Post(e, "/", nil)
		c = taskParams(c)

		if actual := code(t, handlers.TaskHeartbeatHandler(dbtask)(c)); actual != http.StatusOK {
			t.Fatalf("status code: %d", actual)
		}
		if body := decodeBody[kdb.Task](t, rec); !cmp.PEqEq(body.LastHeartbeatTs, pointer.Ref[int64](2000)) {
			t.Errorf("unexpected response: %+v", body)
		}
		if !cmp.SliceEq(dbtask.Calls.Heartbeat, []kdb.TaskRef{ref}) {
			t.Errorf("Heartbeat is called with %+v", dbtask.Calls.Heartbeat)
		}
	})

	t.Run("heartbeat to missing task is not found", func(t *testing.T) {
		dbtask := &mocks.TaskInterface{}
		dbtask.Impl.Heartbeat = func(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
			return kdb.Task{}, kdb.Unresolved{Kind: "task", Token: ref.Task}
		}
		e := echo.New()
		c, _ := httptestutil.Post(e, "/", nil)
		c = taskParams(c)

		if actual := code(t, handlers.TaskHeartbeatHandler(dbtask)(c)); actual != http.StatusNotFound {
			t.Errorf("status code: actual = %d, expected = 404", actual)
		}
	})
}
