package artifact

import (
	"context"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type pgArtifact struct {
	store *records.Store
}

var _ kdb.ArtifactInterface = &pgArtifact{}

func New(store *records.Store) kdb.ArtifactInterface {
	return &pgArtifact{store: store}
}

var order = []records.Order{records.Desc("attempt_id"), records.Asc("name")}

func validate(a kdb.NewArtifact) error {
	if a.Name == "" {
		return kdb.Invalid("artifact name should not be empty")
	}
	if a.AttemptId < 0 {
		return kdb.Invalid("attempt_id should be >= 0 (artifact %s: %d)", a.Name, a.AttemptId)
	}
	return nil
}

func (a *pgArtifact) Create(ctx context.Context, ref kdb.TaskRef, artifacts []kdb.NewArtifact) (int, error) {
	for _, art := range artifacts {
		if err := validate(art); err != nil {
			return 0, xe.Wrap(err)
		}
	}

	inserted := 0
	err := a.store.Read(ctx, func(q kpool.Queryer) error {
		_, task, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return err
		}

		for _, art := range artifacts {
			_, ok, err := records.InsertOne[kdb.Artifact](ctx, q, records.Insert{
				Table: records.Artifacts,
				Values: append(
					[]records.Field{
						records.Eq("flow_id", task.FlowId),
						records.Eq("run_number", task.RunNumber),
						records.Eq("run_id", task.RunId),
						records.Eq("step_name", task.StepName),
						records.Eq("task_id", task.TaskId),
						records.Eq("task_name", task.TaskName),
						records.Eq("name", art.Name),
						records.Eq("location", art.Location),
						records.Eq("ds_type", art.DsType),
						records.Eq("sha", art.Sha),
						records.Eq("type", art.Type),
						records.Eq("content_type", art.ContentType),
						records.Eq("attempt_id", art.AttemptId),
					},
					records.Attributes(art.Attributes)...,
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

func taskScope(task kdb.Task) []records.Field {
	return []records.Field{
		records.Eq("flow_id", task.FlowId),
		records.Eq("run_number", task.RunNumber),
		records.Eq("step_name", task.StepName),
		records.Eq("task_id", task.TaskId),
	}
}

// list runs a query built from the resolved run, and attaches tags of the run.
func (a *pgArtifact) list(
	ctx context.Context,
	resolve func(kpool.Queryer) (kdb.Run, []records.Field, error),
) ([]kdb.Artifact, error) {
	var arts []kdb.Artifact
	err := a.store.Read(ctx, func(q kpool.Queryer) error {
		run, where, err := resolve(q)
		if err != nil {
			return err
		}
		arts, err = records.Get[kdb.Artifact](ctx, q, records.Query{
			Table: records.Artifacts, Where: where, OrderBy: order,
		})
		if err != nil {
			return err
		}
		arts = kdb.AttachRunTags(arts, run)
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return arts, nil
}

func (a *pgArtifact) ListByTask(ctx context.Context, ref kdb.TaskRef) ([]kdb.Artifact, error) {
	return a.list(ctx, func(q kpool.Queryer) (kdb.Run, []records.Field, error) {
		run, task, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return kdb.Run{}, nil, err
		}
		return run, taskScope(task), nil
	})
}

func (a *pgArtifact) ListByStep(ctx context.Context, ref kdb.StepRef) ([]kdb.Artifact, error) {
	return a.list(ctx, func(q kpool.Queryer) (kdb.Run, []records.Field, error) {
		run, err := address.ResolveRun(ctx, q, ref.RunRef)
		if err != nil {
			return kdb.Run{}, nil, err
		}
		return run, []records.Field{
			records.Eq("flow_id", run.FlowId),
			records.Eq("run_number", run.RunNumber),
			records.Eq("step_name", ref.StepName),
		}, nil
	})
}

func (a *pgArtifact) ListByRun(ctx context.Context, ref kdb.RunRef) ([]kdb.Artifact, error) {
	return a.list(ctx, func(q kpool.Queryer) (kdb.Run, []records.Field, error) {
		run, err := address.ResolveRun(ctx, q, ref)
		if err != nil {
			return kdb.Run{}, nil, err
		}
		return run, []records.Field{
			records.Eq("flow_id", run.FlowId),
			records.Eq("run_number", run.RunNumber),
		}, nil
	})
}

func (a *pgArtifact) Find(ctx context.Context, ref kdb.TaskRef, name string) ([]kdb.Artifact, error) {
	return a.list(ctx, func(q kpool.Queryer) (kdb.Run, []records.Field, error) {
		run, task, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return kdb.Run{}, nil, err
		}
		return run, append(taskScope(task), records.Eq("name", name)), nil
	})
}

func (a *pgArtifact) Get(ctx context.Context, ref kdb.TaskRef, name string, attempt int32) (kdb.Artifact, error) {
	var art kdb.Artifact
	err := a.store.Read(ctx, func(q kpool.Queryer) error {
		run, task, err := address.ResolveTask(ctx, q, ref)
		if err != nil {
			return err
		}
		art, err = records.GetOne[kdb.Artifact](ctx, q, records.Query{
			Table: records.Artifacts,
			Where: append(
				taskScope(task),
				records.Eq("name", name),
				records.Eq("attempt_id", attempt),
			),
		})
		if err != nil {
			return err
		}
		art.SetRunTags(run.Tags.Clone(), run.SystemTags.Clone())
		return nil
	})
	if err != nil {
		return kdb.Artifact{}, xe.Wrap(err)
	}
	return art, nil
}
