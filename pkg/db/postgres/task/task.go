package task

import (
	"context"
	"time"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/heartbeat"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type pgTask struct {
	store   *records.Store
	gate    kdb.VersionGate
	now     func() time.Time
	tracker *heartbeat.Tracker
}

var _ kdb.TaskInterface = &pgTask{}

type Option func(*pgTask)

func WithVersionGate(gate kdb.VersionGate) Option {
	return func(t *pgTask) {
		t.gate = gate
	}
}

// WithClock replaces the clock used for heartbeats. For tests.
func WithClock(now func() time.Time) Option {
	return func(t *pgTask) {
		t.now = now
	}
}

func New(store *records.Store, options ...Option) kdb.TaskInterface {
	t := &pgTask{store: store, gate: kdb.DefaultVersionGate(), now: time.Now}
	for _, o := range options {
		o(t)
	}
	t.tracker = heartbeat.New(store, heartbeat.WithClock(t.now))
	return t
}

func (t *pgTask) Create(ctx context.Context, ref kdb.StepRef, task kdb.NewTask) (kdb.Task, error) {
	if err := kdb.ValidateAlias("task_name", task.TaskName); err != nil {
		return kdb.Task{}, xe.Wrap(err)
	}

	var created kdb.Task
	err := t.store.Read(ctx, func(q kpool.Queryer) error {
		run, err := address.ResolveRun(ctx, q, ref.RunRef)
		if err != nil {
			return err
		}
		created, _, err = records.InsertOne[kdb.Task](ctx, q, records.Insert{
			Table: records.Tasks,
			Values: append(
				[]records.Field{
					records.Eq("flow_id", run.FlowId),
					records.Eq("run_number", run.RunNumber),
					records.Eq("run_id", run.RunId),
					records.Eq("step_name", ref.StepName),
					records.Eq("task_name", task.TaskName),
					records.Eq("last_heartbeat_ts", t.gate.Initial(task.SystemTags, t.now())),
				},
				records.Attributes(task.Attributes)...,
			),
		})
		if err != nil {
			return err
		}
		created.SetRunTags(run.Tags, run.SystemTags)
		return nil
	})
	if err != nil {
		return kdb.Task{}, xe.Wrap(err)
	}
	return created, nil
}

func (t *pgTask) Get(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
	var task kdb.Task
	err := t.store.Read(ctx, func(q kpool.Queryer) error {
		run, found, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return err
		}
		task = found
		task.SetRunTags(run.Tags, run.SystemTags)
		return nil
	})
	if err != nil {
		return kdb.Task{}, xe.Wrap(err)
	}
	return task, nil
}

func (t *pgTask) List(ctx context.Context, ref kdb.StepRef) ([]kdb.Task, error) {
	var tasks []kdb.Task
	err := t.store.Read(ctx, func(q kpool.Queryer) error {
		run, err := address.ResolveRun(ctx, q, ref.RunRef)
		if err != nil {
			return err
		}
		tasks, err = records.Get[kdb.Task](ctx, q, records.Query{
			Table: records.Tasks,
			Where: []records.Field{
				records.Eq("flow_id", run.FlowId),
				records.Eq("run_number", run.RunNumber),
				records.Eq("step_name", ref.StepName),
			},
			OrderBy: []records.Order{records.Asc("task_id")},
		})
		if err != nil {
			return err
		}
		tasks = kdb.AttachRunTags(tasks, run)
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return tasks, nil
}

func (t *pgTask) Heartbeat(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
	return t.tracker.BeatTask(ctx, ref)
}
