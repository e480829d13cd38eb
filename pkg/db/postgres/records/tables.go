package records

import "slices"

// Table is a table and its column whitelist.
//
// Queries can refer only columns in the whitelist.
type Table struct {
	Name    string
	Columns []string
}

func (t Table) Has(column string) bool {
	return slices.Contains(t.Columns, column)
}

var (
	Flows = Table{
		Name: "flows_v3",
		Columns: []string{
			"flow_id", "user_name", "ts_epoch", "tags", "system_tags",
		},
	}

	Runs = Table{
		Name: "runs_v3",
		Columns: []string{
			"flow_id", "run_number", "run_id", "user_name", "ts_epoch",
			"last_heartbeat_ts", "tags", "system_tags",
		},
	}

	Steps = Table{
		Name: "steps_v3",
		Columns: []string{
			"flow_id", "run_number", "run_id", "step_name", "user_name", "ts_epoch",
			"tags", "system_tags",
		},
	}

	Tasks = Table{
		Name: "tasks_v3",
		Columns: []string{
			"flow_id", "run_number", "run_id", "step_name", "task_id", "task_name",
			"user_name", "ts_epoch", "last_heartbeat_ts", "tags", "system_tags",
		},
	}

	Metadata = Table{
		Name: "metadata_v3",
		Columns: []string{
			"flow_id", "run_number", "run_id", "step_name", "task_id", "task_name",
			"id", "field_name", "value", "type", "user_name", "ts_epoch",
			"tags", "system_tags",
		},
	}

	Artifacts = Table{
		Name: "artifact_v3",
		Columns: []string{
			"flow_id", "run_number", "run_id", "step_name", "task_id", "task_name",
			"name", "location", "ds_type", "sha", "type", "content_type",
			"user_name", "attempt_id", "ts_epoch", "tags", "system_tags",
		},
	}
)
