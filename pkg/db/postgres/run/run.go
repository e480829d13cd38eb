package run

import (
	"context"
	"time"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/heartbeat"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	"github.com/opst/knitmeta/pkg/db/postgres/tags"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type pgRun struct {
	store   *records.Store
	gate    kdb.VersionGate
	now     func() time.Time
	tracker *heartbeat.Tracker
	mutator *tags.Mutator
}

var _ kdb.RunInterface = &pgRun{}

type Option func(*pgRun)

func WithVersionGate(gate kdb.VersionGate) Option {
	return func(r *pgRun) {
		r.gate = gate
	}
}

// WithClock replaces the clock used for heartbeats. For tests.
func WithClock(now func() time.Time) Option {
	return func(r *pgRun) {
		r.now = now
	}
}

func New(store *records.Store, options ...Option) kdb.RunInterface {
	r := &pgRun{store: store, gate: kdb.DefaultVersionGate(), now: time.Now}
	for _, o := range options {
		o(r)
	}
	r.tracker = heartbeat.New(store, heartbeat.WithClock(r.now))
	r.mutator = tags.New(store)
	return r
}

func (r *pgRun) Create(ctx context.Context, flowId string, run kdb.NewRun) (kdb.Run, error) {
	if err := kdb.ValidateAlias("run_id", run.RunId); err != nil {
		return kdb.Run{}, xe.Wrap(err)
	}

	values := append(
		[]records.Field{
			records.Eq("flow_id", flowId),
			records.Eq("run_id", run.RunId),
			records.Eq("last_heartbeat_ts", r.gate.Initial(run.SystemTags, r.now())),
		},
		records.Attributes(run.Attributes)...,
	)

	var created kdb.Run
	err := r.store.Read(ctx, func(q kpool.Queryer) error {
		var err error
		created, _, err = records.InsertOne[kdb.Run](ctx, q, records.Insert{
			Table: records.Runs, Values: values,
		})
		return err
	})
	if err != nil {
		return kdb.Run{}, xe.Wrap(err)
	}
	return created, nil
}

func (r *pgRun) Get(ctx context.Context, ref kdb.RunRef) (kdb.Run, error) {
	var run kdb.Run
	err := r.store.Read(ctx, func(q kpool.Queryer) error {
		var err error
		run, err = address.ResolveRun(ctx, q, ref)
		return err
	})
	if err != nil {
		return kdb.Run{}, xe.Wrap(err)
	}
	return run, nil
}

func (r *pgRun) List(ctx context.Context, flowId string) ([]kdb.Run, error) {
	var runs []kdb.Run
	err := r.store.Read(ctx, func(q kpool.Queryer) error {
		var err error
		runs, err = records.Get[kdb.Run](ctx, q, records.Query{
			Table:   records.Runs,
			Where:   []records.Field{records.Eq("flow_id", flowId)},
			OrderBy: []records.Order{records.Desc("run_number")},
		})
		return err
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return runs, nil
}

func (r *pgRun) Heartbeat(ctx context.Context, ref kdb.RunRef) (kdb.Run, error) {
	return r.tracker.BeatRun(ctx, ref)
}

func (r *pgRun) MutateTags(ctx context.Context, ref kdb.RunRef, mutation kdb.TagMutation) (kdb.TagSet, error) {
	return r.mutator.Mutate(ctx, ref, mutation)
}
