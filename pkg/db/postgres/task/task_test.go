package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/pool/testenv"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	"github.com/opst/knitmeta/pkg/db/postgres/tables"
	kpgtask "github.com/opst/knitmeta/pkg/db/postgres/task"
	"github.com/opst/knitmeta/pkg/utils/pointer"
	"github.com/opst/knitmeta/pkg/utils/try"
)

var given = tables.Operation{
	Flows: []kdb.Flow{{FlowId: "flow-a", TsEpoch: 1}},
	Runs: []kdb.Run{
		{
			FlowId: "flow-a", RunNumber: 1, RunId: pointer.Ref("run-a"), TsEpoch: 1,
			Tags: kdb.TagSet{"run:tag"},
		},
	},
	Steps: []kdb.Step{
		{FlowId: "flow-a", RunNumber: 1, RunId: pointer.Ref("run-a"), StepName: "start", TsEpoch: 1},
	},
}

var step = kdb.StepRef{RunRef: kdb.RunRef{FlowId: "flow-a", Run: "run-a"}, StepName: "start"}

var now = time.UnixMilli(1_700_000_000_000)

func TestTaskCreate(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	type When struct {
		step kdb.StepRef
		task kdb.NewTask
	}
	type Then struct {
		heartbeat bool
		err       error
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := context.Background()
			pool := poolBroaker.GetPool(ctx, t)
			if err := given.Apply(ctx, pool); err != nil {
				t.Fatal(err)
			}
			testee := kpgtask.New(
				records.New(pool),
				kpgtask.WithClock(func() time.Time { return now }),
			)

			created, err := testee.Create(ctx, when.step, when.task)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Fatalf("expected %v, but: %v", then.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if (created.LastHeartbeatTs != nil) != then.heartbeat {
				t.Errorf("last_heartbeat_ts: %v", created.LastHeartbeatTs)
			}
			if !created.Tags.Equal(kdb.TagSet{"run:tag"}) {
				t.Errorf("created task should have tags of its run: %v", created.Tags)
			}

			got := try.To(testee.Get(ctx, kdb.TaskRef{StepRef: step, Task: "1"})).OrFatal(t)
			if got.TaskId != created.TaskId {
				t.Errorf("task_id: actual = %d, expected = %d", got.TaskId, created.TaskId)
			}
			if !got.Tags.Equal(kdb.TagSet{"run:tag"}) {
				t.Errorf("task should have tags of its run: %v", got.Tags)
			}
			if when.task.TaskName != nil {
				byName := try.To(testee.Get(ctx, kdb.TaskRef{StepRef: step, Task: *when.task.TaskName})).OrFatal(t)
				if byName.TaskId != created.TaskId {
					t.Errorf("task_id by name: actual = %d, expected = %d", byName.TaskId, created.TaskId)
				}
			}
		}
	}

	t.Run("a task is created", theory(
		When{step: step, task: kdb.NewTask{}},
		Then{},
	))
	t.Run("a named task is created", theory(
		When{step: step, task: kdb.NewTask{TaskName: pointer.Ref("shard-0")}},
		Then{},
	))
	t.Run("a task of a heartbeat capable client beats at creation", theory(
		When{step: step, task: kdb.NewTask{Attributes: kdb.Attributes{
			SystemTags: kdb.TagSet{"metaflow_version:2.12.0"},
		}}},
		Then{heartbeat: true},
	))
	t.Run("a numeric task name is invalid", theory(
		When{step: step, task: kdb.NewTask{TaskName: pointer.Ref("42")}},
		Then{err: kdb.ErrNumericAlias},
	))
	t.Run("a task in a missing step is missing parent", theory(
		When{step: kdb.StepRef{RunRef: step.RunRef, StepName: "end"}, task: kdb.NewTask{}},
		Then{err: kdb.ErrMissingParent},
	))
	t.Run("a task in a missing run is missing", theory(
		When{step: kdb.StepRef{RunRef: kdb.RunRef{FlowId: "flow-a", Run: "9"}, StepName: "start"}, task: kdb.NewTask{}},
		Then{err: kdb.ErrMissing},
	))
}

func TestTaskListAndHeartbeat(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)
	ctx := context.Background()
	pool := poolBroaker.GetPool(ctx, t)
	if err := given.Apply(ctx, pool); err != nil {
		t.Fatal(err)
	}
	testee := kpgtask.New(records.New(pool), kpgtask.WithClock(func() time.Time { return now }))

	a := try.To(testee.Create(ctx, step, kdb.NewTask{})).OrFatal(t)
	b := try.To(testee.Create(ctx, step, kdb.NewTask{TaskName: pointer.Ref("b")})).OrFatal(t)

	tasks := try.To(testee.List(ctx, step)).OrFatal(t)
	if len(tasks) != 2 || tasks[0].TaskId != a.TaskId || tasks[1].TaskId != b.TaskId {
		t.Errorf("unexpected tasks: %+v", tasks)
	}

	beaten := try.To(testee.Heartbeat(ctx, kdb.TaskRef{StepRef: step, Task: "b"})).OrFatal(t)
	if beaten.LastHeartbeatTs == nil || *beaten.LastHeartbeatTs != now.UnixMilli() {
		t.Errorf("last_heartbeat_ts: %v", beaten.LastHeartbeatTs)
	}
}
