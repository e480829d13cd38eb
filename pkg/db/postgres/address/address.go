// Package address resolves run and task tokens into records.
//
// A token is a surrogate key or an alias (see kdb.ParseToken). Runs and tasks are
// addressed in the same way, so both are resolved by Resolve with their Kind.
package address

import (
	"context"
	"errors"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

// Kind is a kind of addressable records.
type Kind struct {
	Name string

	Table       records.Table
	KeyColumn   string
	AliasColumn string

	// table of the record owning ones of this kind.
	Parent records.Table
}

var (
	RunKind = Kind{
		Name:        "run",
		Table:       records.Runs,
		KeyColumn:   "run_number",
		AliasColumn: "run_id",
		Parent:      records.Flows,
	}

	TaskKind = Kind{
		Name:        "task",
		Table:       records.Tasks,
		KeyColumn:   "task_id",
		AliasColumn: "task_name",
		Parent:      records.Steps,
	}
)

// Resolve finds the record of kind pointed by token, in scope.
//
// # Args
//
// - scope: columns identifying the parent, like flow_id for runs.
//
// - token: a surrogate key or an alias.
//
// # Returns
//
// - T: the record.
//
// - error: kdb.Unresolved when no records match. It tells whether the parent is missing.
func Resolve[T any](
	ctx context.Context, q kpool.Queryer, kind Kind, scope []records.Field, token string,
) (T, error) {
	t := kdb.ParseToken(token)

	where := append([]records.Field{}, scope...)
	if key, ok := t.Key(); ok {
		where = append(where, records.Eq(kind.KeyColumn, key))
	} else {
		alias, _ := t.Alias()
		where = append(where, records.Eq(kind.AliasColumn, alias))
	}

	found, err := records.GetOne[T](ctx, q, records.Query{Table: kind.Table, Where: where})
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, kdb.ErrMissing) {
		return *new(T), err
	}

	parentExists, perr := records.Any(ctx, q, kind.Parent, scope...)
	if perr != nil {
		return *new(T), perr
	}
	return *new(T), xe.Wrap(kdb.Unresolved{
		Kind: kind.Name, Token: token, ParentMissing: !parentExists,
	})
}

// ResolveRun finds a run.
func ResolveRun(ctx context.Context, q kpool.Queryer, ref kdb.RunRef) (kdb.Run, error) {
	return Resolve[kdb.Run](
		ctx, q, RunKind,
		[]records.Field{records.Eq("flow_id", ref.FlowId)},
		ref.Run,
	)
}

// ResolveTask finds a task and its run.
func ResolveTask(ctx context.Context, q kpool.Queryer, ref kdb.TaskRef) (kdb.Run, kdb.Task, error) {
	run, err := ResolveRun(ctx, q, ref.RunRef)
	if err != nil {
		return kdb.Run{}, kdb.Task{}, err
	}
	task, err := Resolve[kdb.Task](
		ctx, q, TaskKind,
		[]records.Field{
			records.Eq("flow_id", run.FlowId),
			records.Eq("run_number", run.RunNumber),
			records.Eq("step_name", ref.StepName),
		},
		ref.Task,
	)
	if err != nil {
		return kdb.Run{}, kdb.Task{}, err
	}
	return run, task, nil
}
