// Package tables puts records into tables as premises of tests.
//
// Note: this package DOES NOT verify/guarantee consistencies of records.
package tables

import (
	"context"
	"fmt"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
)

// Declare premise of test.
//
// Records are inserted as they are, including surrogate keys and timestamps.
// After that, sequences are moved forward beyond the inserted keys.
type Operation struct {
	Flows     []kdb.Flow
	Runs      []kdb.Run
	Steps     []kdb.Step
	Tasks     []kdb.Task
	Metadata  []kdb.Metadata
	Artifacts []kdb.Artifact
}

func tags(ts kdb.TagSet) kdb.TagSet {
	return kdb.NewTagSet(ts)
}

func FlowFields(f kdb.Flow) []records.Field {
	return []records.Field{
		records.Eq("flow_id", f.FlowId),
		records.Eq("user_name", f.UserName),
		records.Eq("ts_epoch", f.TsEpoch),
		records.Eq("tags", tags(f.Tags)),
		records.Eq("system_tags", tags(f.SystemTags)),
	}
}

func RunFields(r kdb.Run) []records.Field {
	return []records.Field{
		records.Eq("flow_id", r.FlowId),
		records.Eq("run_number", r.RunNumber),
		records.Eq("run_id", r.RunId),
		records.Eq("user_name", r.UserName),
		records.Eq("ts_epoch", r.TsEpoch),
		records.Eq("last_heartbeat_ts", r.LastHeartbeatTs),
		records.Eq("tags", tags(r.Tags)),
		records.Eq("system_tags", tags(r.SystemTags)),
	}
}

func StepFields(s kdb.Step) []records.Field {
	return []records.Field{
		records.Eq("flow_id", s.FlowId),
		records.Eq("run_number", s.RunNumber),
		records.Eq("run_id", s.RunId),
		records.Eq("step_name", s.StepName),
		records.Eq("user_name", s.UserName),
		records.Eq("ts_epoch", s.TsEpoch),
		records.Eq("tags", tags(s.Tags)),
		records.Eq("system_tags", tags(s.SystemTags)),
	}
}

func TaskFields(t kdb.Task) []records.Field {
	return []records.Field{
		records.Eq("flow_id", t.FlowId),
		records.Eq("run_number", t.RunNumber),
		records.Eq("run_id", t.RunId),
		records.Eq("step_name", t.StepName),
		records.Eq("task_id", t.TaskId),
		records.Eq("task_name", t.TaskName),
		records.Eq("user_name", t.UserName),
		records.Eq("ts_epoch", t.TsEpoch),
		records.Eq("last_heartbeat_ts", t.LastHeartbeatTs),
		records.Eq("tags", tags(t.Tags)),
		records.Eq("system_tags", tags(t.SystemTags)),
	}
}

func MetadataFields(m kdb.Metadata) []records.Field {
	return []records.Field{
		records.Eq("flow_id", m.FlowId),
		records.Eq("run_number", m.RunNumber),
		records.Eq("run_id", m.RunId),
		records.Eq("step_name", m.StepName),
		records.Eq("task_id", m.TaskId),
		records.Eq("task_name", m.TaskName),
		records.Eq("id", m.Id),
		records.Eq("field_name", m.FieldName),
		records.Eq("value", m.Value),
		records.Eq("type", m.Type),
		records.Eq("user_name", m.UserName),
		records.Eq("ts_epoch", m.TsEpoch),
		records.Eq("tags", tags(m.Tags)),
		records.Eq("system_tags", tags(m.SystemTags)),
	}
}

func ArtifactFields(a kdb.Artifact) []records.Field {
	return []records.Field{
		records.Eq("flow_id", a.FlowId),
		records.Eq("run_number", a.RunNumber),
		records.Eq("run_id", a.RunId),
		records.Eq("step_name", a.StepName),
		records.Eq("task_id", a.TaskId),
		records.Eq("task_name", a.TaskName),
		records.Eq("name", a.Name),
		records.Eq("location", a.Location),
		records.Eq("ds_type", a.DsType),
		records.Eq("sha", a.Sha),
		records.Eq("type", a.Type),
		records.Eq("content_type", a.ContentType),
		records.Eq("user_name", a.UserName),
		records.Eq("attempt_id", a.AttemptId),
		records.Eq("ts_epoch", a.TsEpoch),
		records.Eq("tags", tags(a.Tags)),
		records.Eq("system_tags", tags(a.SystemTags)),
	}
}

func insert(ctx context.Context, q kpool.Queryer, table records.Table, values []records.Field) error {
	sql, params, err := records.Insert{Table: table, Values: values}.SQL()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error caused inserting record into %s %+v: %w", table.Name, values, err)
	}
	return nil
}

// serial columns, moved forward after inserting records.
var serials = []struct {
	table  string
	column string
}{
	{table: "runs_v3", column: "run_number"},
	{table: "tasks_v3", column: "task_id"},
	{table: "metadata_v3", column: "id"},
}

func (op Operation) Apply(ctx context.Context, pool kpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, f := range op.Flows {
		if err := insert(ctx, conn, records.Flows, FlowFields(f)); err != nil {
			return err
		}
	}
	for _, r := range op.Runs {
		if err := insert(ctx, conn, records.Runs, RunFields(r)); err != nil {
			return err
		}
	}
	for _, s := range op.Steps {
		if err := insert(ctx, conn, records.Steps, StepFields(s)); err != nil {
			return err
		}
	}
	for _, t := range op.Tasks {
		if err := insert(ctx, conn, records.Tasks, TaskFields(t)); err != nil {
			return err
		}
	}
	for _, m := range op.Metadata {
		if err := insert(ctx, conn, records.Metadata, MetadataFields(m)); err != nil {
			return err
		}
	}
	for _, a := range op.Artifacts {
		if err := insert(ctx, conn, records.Artifacts, ArtifactFields(a)); err != nil {
			return err
		}
	}

	for _, s := range serials {
		if _, err := conn.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', '%s'), coalesce(max("%s"), 0) + 1, false) FROM "%s"`,
			s.table, s.column, s.column, s.table,
		)); err != nil {
			return err
		}
	}
	return nil
}
