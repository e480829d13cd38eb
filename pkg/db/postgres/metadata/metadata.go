package metadata

import (
	"context"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type pgMetadata struct {
	store *records.Store
}

var _ kdb.MetadataInterface = &pgMetadata{}

func New(store *records.Store) kdb.MetadataInterface {
	return &pgMetadata{store: store}
}

func (m *pgMetadata) Create(ctx context.Context, ref kdb.TaskRef, metadata []kdb.NewMetadata) (int, error) {
	for _, md := range metadata {
		if md.FieldName == "" {
			return 0, xe.Wrap(kdb.Invalid("field_name should not be empty"))
		}
	}

	inserted := 0
	err := m.store.Read(ctx, func(q kpool.Queryer) error {
		_, task, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return err
		}
		for _, md := range metadata {
			_, ok, err := records.InsertOne[kdb.Metadata](ctx, q, records.Insert{
				Table: records.Metadata,
				Values: append(
					[]records.Field{
						records.Eq("flow_id", task.FlowId),
						records.Eq("run_number", task.RunNumber),
						records.Eq("run_id", task.RunId),
						records.Eq("step_name", task.StepName),
						records.Eq("task_id", task.TaskId),
						records.Eq("task_name", task.TaskName),
						records.Eq("field_name", md.FieldName),
						records.Eq("value", md.Value),
						records.Eq("type", md.Type),
					},
					records.Attributes(md.Attributes)...,
				),
				OnConflictDoNothing: true,
			})
			if err != nil {
				return err
			}
			if ok {
				inserted += 1
			}
		}
		return nil
	})
	if err != nil {
		return inserted, xe.Wrap(err)
	}
	return inserted, nil
}

func (m *pgMetadata) ListByTask(ctx context.Context, ref kdb.TaskRef) ([]kdb.Metadata, error) {
	var mds []kdb.Metadata
	err := m.store.Read(ctx, func(q kpool.Queryer) error {
		run, task, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return err
		}
		mds, err = records.Get[kdb.Metadata](ctx, q, records.Query{
			Table: records.Metadata,
			Where: []records.Field{
				records.Eq("flow_id", task.FlowId),
				records.Eq("run_number", task.RunNumber),
				records.Eq("step_name", task.StepName),
				records.Eq("task_id", task.TaskId),
			},
			OrderBy: []records.Order{records.Asc("id")},
		})
		if err != nil {
			return err
		}
		mds = kdb.AttachRunTags(mds, run)
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return mds, nil
}

func (m *pgMetadata) ListByRun(ctx context.Context, ref kdb.RunRef) ([]kdb.Metadata, error) {
	var mds []kdb.Metadata
	err := m.store.Read(ctx, func(q kpool.Queryer) error {
		run, err := address.ResolveRun(ctx, q, ref)
		if err != nil {
			return err
		}
		mds, err = records.Get[kdb.Metadata](ctx, q, records.Query{
			Table: records.Metadata,
			Where: []records.Field{
				records.Eq("flow_id", run.FlowId),
				records.Eq("run_number", run.RunNumber),
			},
			OrderBy: []records.Order{records.Asc("id")},
		})
		if err != nil {
			return err
		}
		mds = kdb.AttachRunTags(mds, run)
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return mds, nil
}
