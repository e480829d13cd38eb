package db

// Flow is a named pipeline definition; the root of hierarchy.
type Flow struct {
	FlowId     string `json:"flow_id"`
	UserName   string `json:"user_name"`
	TsEpoch    int64  `json:"ts_epoch"`
	Tags       TagSet `json:"tags"`
	SystemTags TagSet `json:"system_tags"`
}

// Run is an execution of a Flow.
//
// RunNumber is the canonical key. RunId is an optional alias given by client.
type Run struct {
	FlowId          string  `json:"flow_id"`
	RunNumber       int64   `json:"run_number"`
	RunId           *string `json:"run_id"`
	UserName        string  `json:"user_name"`
	TsEpoch         int64   `json:"ts_epoch"`
	LastHeartbeatTs *int64  `json:"last_heartbeat_ts"`
	Tags            TagSet  `json:"tags"`
	SystemTags      TagSet  `json:"system_tags"`
}

func (r Run) Key() RunKey {
	return RunKey{FlowId: r.FlowId, RunNumber: r.RunNumber, RunId: r.RunId}
}

type Step struct {
	FlowId     string  `json:"flow_id"`
	RunNumber  int64   `json:"run_number"`
	RunId      *string `json:"run_id"`
	StepName   string  `json:"step_name"`
	UserName   string  `json:"user_name"`
	TsEpoch    int64   `json:"ts_epoch"`
	Tags       TagSet  `json:"tags"`
	SystemTags TagSet  `json:"system_tags"`
}

func (s *Step) SetRunTags(tags, systemTags TagSet) {
	s.Tags, s.SystemTags = tags, systemTags
}

type Task struct {
	FlowId          string  `json:"flow_id"`
	RunNumber       int64   `json:"run_number"`
	RunId           *string `json:"run_id"`
	StepName        string  `json:"step_name"`
	TaskId          int64   `json:"task_id"`
	TaskName        *string `json:"task_name"`
	UserName        string  `json:"user_name"`
	TsEpoch         int64   `json:"ts_epoch"`
	LastHeartbeatTs *int64  `json:"last_heartbeat_ts"`
	Tags            TagSet  `json:"tags"`
	SystemTags      TagSet  `json:"system_tags"`
}

func (t *Task) SetRunTags(tags, systemTags TagSet) {
	t.Tags, t.SystemTags = tags, systemTags
}

func (t Task) Key() TaskKey {
	return TaskKey{
		RunKey:   RunKey{FlowId: t.FlowId, RunNumber: t.RunNumber, RunId: t.RunId},
		StepName: t.StepName,
		TaskId:   t.TaskId,
		TaskName: t.TaskName,
	}
}

// Metadata is a key-value reported by a task.
//
// Id is assigned by the store, so the same FieldName can be reported many times
// (e.g. once per attempt).
type Metadata struct {
	FlowId     string  `json:"flow_id"`
	RunNumber  int64   `json:"run_number"`
	RunId      *string `json:"run_id"`
	StepName   string  `json:"step_name"`
	TaskId     int64   `json:"task_id"`
	TaskName   *string `json:"task_name"`
	Id         int64   `json:"id"`
	FieldName  string  `json:"field_name"`
	Value      string  `json:"value"`
	Type       string  `json:"type"`
	UserName   string  `json:"user_name"`
	TsEpoch    int64   `json:"ts_epoch"`
	Tags       TagSet  `json:"tags"`
	SystemTags TagSet  `json:"system_tags"`
}

func (m *Metadata) SetRunTags(tags, systemTags TagSet) {
	m.Tags, m.SystemTags = tags, systemTags
}

// Artifact is a pointer to an output of a task attempt.
//
// Content itself lives at Location; this store does not hold it.
type Artifact struct {
	FlowId      string  `json:"flow_id"`
	RunNumber   int64   `json:"run_number"`
	RunId       *string `json:"run_id"`
	StepName    string  `json:"step_name"`
	TaskId      int64   `json:"task_id"`
	TaskName    *string `json:"task_name"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	DsType      string  `json:"ds_type"`
	Sha         string  `json:"sha"`
	Type        string  `json:"type"`
	ContentType string  `json:"content_type"`
	UserName    string  `json:"user_name"`
	AttemptId   int32   `json:"attempt_id"`
	TsEpoch     int64   `json:"ts_epoch"`
	Tags        TagSet  `json:"tags"`
	SystemTags  TagSet  `json:"system_tags"`
}

func (a *Artifact) SetRunTags(tags, systemTags TagSet) {
	a.Tags, a.SystemTags = tags, systemTags
}

// RunTagged is a record which shows tags of its owner Run instead of its own.
type RunTagged interface {
	SetRunTags(tags, systemTags TagSet)
}

// AttachRunTags overrides tags of each record with ones of the run owning them.
func AttachRunTags[T any, P interface {
	*T
	RunTagged
}](records []T, run Run) []T {
	for i := range records {
		P(&records[i]).SetRunTags(run.Tags.Clone(), run.SystemTags.Clone())
	}
	return records
}

// Attributes common to new records.
type Attributes struct {
	UserName   string
	Tags       TagSet
	SystemTags TagSet

	// creation time in ms since epoch. Zero means "now" in the database.
	TsEpoch int64
}

type NewFlow struct {
	FlowId string
	Attributes
}

type NewRun struct {
	// optional alias.
	RunId *string
	Attributes
}

type NewStep struct {
	Attributes
}

type NewTask struct {
	// optional alias.
	TaskName *string
	Attributes
}

type NewArtifact struct {
	Name        string
	Location    string
	DsType      string
	Sha         string
	Type        string
	ContentType string
	AttemptId   int32
	Attributes
}

type NewMetadata struct {
	FieldName string
	Value     string
	Type      string
	Attributes
}
