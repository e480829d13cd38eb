package heartbeat

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

// Tracker stamps heartbeats on runs and tasks.
//
// Heartbeat timestamps are ms since epoch, and never go backward.
type Tracker struct {
	store *records.Store
	now   func() time.Time
}

type Option func(*Tracker)

// WithClock replaces the clock. For tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func New(store *records.Store, options ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, o := range options {
		o(t)
	}
	return t
}

func beatRun(ctx context.Context, q kpool.Queryer, key kdb.RunKey, ts int64) (kdb.Run, error) {
	return records.UpdateOne[kdb.Run](ctx, q, records.Bump{
		Table:  records.Runs,
		Column: "last_heartbeat_ts",
		Value:  ts,
		Where: []records.Field{
			records.Eq("flow_id", key.FlowId),
			records.Eq("run_number", key.RunNumber),
		},
	})
}

// BeatRun updates heartbeat of the run.
//
// A missing run is kdb.Unresolved; nothing is created.
func (t *Tracker) BeatRun(ctx context.Context, ref kdb.RunRef) (kdb.Run, error) {
	var run kdb.Run
	err := t.store.Read(ctx, func(q kpool.Queryer) error {
		found, err := address.ResolveRun(ctx, q, ref)
		if err != nil {
			return err
		}
		run, err = beatRun(ctx, q, found.Key(), t.now().UnixMilli())
		return err
	})
	if err != nil {
		return kdb.Run{}, xe.Wrap(err)
	}
	return run, nil
}

// BeatTask updates heartbeats of the task and its run, at once.
func (t *Tracker) BeatTask(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
	var task kdb.Task
	err := t.store.InTx(ctx, pgx.ReadCommitted, func(tx kpool.Tx) error {
		run, found, err := address.ResolveTask(ctx, tx, ref)
		if err != nil {
			return err
		}

		ts := t.now().UnixMilli()
		task, err = records.UpdateOne[kdb.Task](ctx, tx, records.Bump{
			Table:  records.Tasks,
			Column: "last_heartbeat_ts",
			Value:  ts,
			Where: []records.Field{
				records.Eq("flow_id", found.FlowId),
				records.Eq("run_number", found.RunNumber),
				records.Eq("step_name", found.StepName),
				records.Eq("task_id", found.TaskId),
			},
		})
		if err != nil {
			return err
		}

		run, err = beatRun(ctx, tx, run.Key(), ts)
		if err != nil {
			return err
		}
		task.SetRunTags(run.Tags, run.SystemTags)
		return nil
	})
	if err != nil {
		return kdb.Task{}, xe.Wrap(err)
	}
	return task, nil
}
