package step

import (
	"context"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type pgStep struct {
	store *records.Store
}

var _ kdb.StepInterface = &pgStep{}

func New(store *records.Store) kdb.StepInterface {
	return &pgStep{store: store}
}

func (s *pgStep) Create(ctx context.Context, ref kdb.RunRef, stepName string, step kdb.NewStep) (kdb.Step, error) {
	if stepName == "" {
		return kdb.Step{}, xe.Wrap(kdb.Invalid("step_name should not be empty"))
	}

	var created kdb.Step
	err := s.store.Read(ctx, func(q kpool.Queryer) error {
		run, err := address.ResolveRun(ctx, q, ref)
		if err != nil {
			return err
		}
		created, _, err = records.InsertOne[kdb.Step](ctx, q, records.Insert{
			Table: records.Steps,
			Values: append(
				[]records.Field{
					records.Eq("flow_id", run.FlowId),
					records.Eq("run_number", run.RunNumber),
					records.Eq("run_id", run.RunId),
					records.Eq("step_name", stepName),
				},
				records.Attributes(step.Attributes)...,
			),
		})
		if err != nil {
			return err
		}
		created.SetRunTags(run.Tags, run.SystemTags)
		return nil
	})
	if err != nil {
		return kdb.Step{}, xe.Wrap(err)
	}
	return created, nil
}

func (s *pgStep) Get(ctx context.Context, ref kdb.StepRef) (kdb.Step, error) {
	var step kdb.Step
	err := s.store.Read(ctx, func(q kpool.Queryer) error {
		run, err := address.ResolveRun(ctx, q, ref.RunRef)
		if err != nil {
			return err
		}
		step, err = records.GetOne[kdb.Step](ctx, q, records.Query{
			Table: records.Steps,
			Where: []records.Field{
				records.Eq("flow_id", run.FlowId),
				records.Eq("run_number", run.RunNumber),
				records.Eq("step_name", ref.StepName),
			},
		})
		if err != nil {
			return err
		}
		step.SetRunTags(run.Tags, run.SystemTags)
		return nil
	})
	if err != nil {
		return kdb.Step{}, xe.Wrap(err)
	}
	return step, nil
}

func (s *pgStep) List(ctx context.Context, ref kdb.RunRef) ([]kdb.Step, error) {
	var steps []kdb.Step
	err := s.store.Read(ctx, func(q kpool.Queryer) error {
		run, err := address.ResolveRun(ctx, q, ref)
		if err != nil {
			return err
		}
		steps, err = records.Get[kdb.Step](ctx, q, records.Query{
			Table: records.Steps,
			Where: []records.Field{
				records.Eq("flow_id", run.FlowId),
				records.Eq("run_number", run.RunNumber),
			},
			OrderBy: []records.Order{records.Asc("ts_epoch"), records.Asc("step_name")},
		})
		if err != nil {
			return err
		}
		steps = kdb.AttachRunTags(steps, run)
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return steps, nil
}
