package db

import "context"

// Database is the metadata store of flows and their descendants.
type Database interface {
	Flows() FlowInterface
	Runs() RunInterface
	Steps() StepInterface
	Tasks() TaskInterface
	Artifacts() ArtifactInterface
	Metadata() MetadataInterface
	Schema() SchemaInterface
	Close() error
}

type FlowInterface interface {
	// Create a new flow.
	//
	// # Returns
	//
	// - Flow: persisted flow, with defaults assigned by the store.
	//
	// - error: ErrConflict when the flow exists already.
	Create(ctx context.Context, flow NewFlow) (Flow, error)

	// Get a flow. If missing, it returns ErrMissing.
	Get(ctx context.Context, flowId string) (Flow, error)

	List(ctx context.Context) ([]Flow, error)
}

type RunInterface interface {
	// Create a new run in the flow.
	//
	// run_number is assigned by the store.
	// Heartbeat timestamp is set only when system tags tell the client reports heartbeats.
	//
	// # Returns
	//
	// - Run: created run.
	//
	// - error:
	//
	// ErrInvalid when RunId is invalid as an alias.
	//
	// ErrMissingParent when the flow is not found.
	//
	// ErrConflict when RunId is used in the flow already.
	Create(ctx context.Context, flowId string, run NewRun) (Run, error)

	// Get a run by its number or alias.
	//
	// When the token does not point any run, it returns Unresolved (which is ErrMissing).
	Get(ctx context.Context, ref RunRef) (Run, error)

	// List runs in a flow, newer first.
	List(ctx context.Context, flowId string) ([]Run, error)

	// Heartbeat updates the run's heartbeat timestamp to now.
	//
	// The timestamp never goes backward.
	Heartbeat(ctx context.Context, ref RunRef) (Run, error)

	// MutateTags adds and removes user tags of the run atomically.
	//
	// # Returns
	//
	// - TagSet: user tags after mutation.
	//
	// - error:
	//
	// ErrSystemTagRemoval (is ErrInvalid) when removing any system tag.
	//
	// ErrMissing when the run is not found.
	//
	// ErrRetryable when a concurrent transaction conflicts. Nothing is changed then.
	MutateTags(ctx context.Context, ref RunRef, mutation TagMutation) (TagSet, error)
}

type StepInterface interface {
	// Create a step in the run.
	//
	// # Returns
	//
	// - error: ErrMissingParent when the run is missing. ErrConflict when the step exists.
	Create(ctx context.Context, ref RunRef, stepName string, step NewStep) (Step, error)

	// Get a step, having tags of its run.
	Get(ctx context.Context, ref StepRef) (Step, error)

	List(ctx context.Context, ref RunRef) ([]Step, error)
}

type TaskInterface interface {
	// Create a task in the step. task_id is assigned by the store.
	//
	// # Returns
	//
	// - error: ErrMissingParent when the step is missing. ErrInvalid when TaskName is invalid.
	Create(ctx context.Context, ref StepRef, task NewTask) (Task, error)

	// Get a task by its id or name, having tags of its run.
	Get(ctx context.Context, ref TaskRef) (Task, error)

	List(ctx context.Context, ref StepRef) ([]Task, error)

	// Heartbeat updates heartbeat timestamps of the task and its run.
	Heartbeat(ctx context.Context, ref TaskRef) (Task, error)
}

// ArtifactInterface stores artifacts.
//
// Listing methods return rows of all attempts, ordered by attempt_id descending.
// Use LatestAttemptView or AttemptView to pick rows of an attempt.
type ArtifactInterface interface {
	// Create artifacts of the task.
	//
	// Each row is inserted independently. Rows which exist already are skipped.
	//
	// # Returns
	//
	// - int: the number of rows inserted.
	//
	// - error: Unresolved (ErrMissing) when the task is not found. Nothing is inserted then.
	Create(ctx context.Context, ref TaskRef, artifacts []NewArtifact) (int, error)

	ListByTask(ctx context.Context, ref TaskRef) ([]Artifact, error)
	ListByStep(ctx context.Context, ref StepRef) ([]Artifact, error)
	ListByRun(ctx context.Context, ref RunRef) ([]Artifact, error)

	// Find artifacts of the task having the name, in all attempts.
	Find(ctx context.Context, ref TaskRef, name string) ([]Artifact, error)

	// Get an artifact of the attempt. If missing, it returns ErrMissing.
	Get(ctx context.Context, ref TaskRef, name string, attempt int32) (Artifact, error)
}

type MetadataInterface interface {
	// Create metadata of the task.
	//
	// Each row is inserted independently. The same field name can be reported repeatedly.
	//
	// # Returns
	//
	// - int: the number of rows inserted.
	//
	// - error: Unresolved (ErrMissing) when the task is not found. Nothing is inserted then.
	Create(ctx context.Context, ref TaskRef, metadata []NewMetadata) (int, error)

	ListByTask(ctx context.Context, ref TaskRef) ([]Metadata, error)
	ListByRun(ctx context.Context, ref RunRef) ([]Metadata, error)
}

type SchemaInterface interface {
	// Version returns the schema version of the database. 0 means "no schema".
	Version(ctx context.Context) (int, error)

	// Upgrade applies schema versions newer than the database's.
	Upgrade(ctx context.Context) error

	// Context derives a context which is cancelled when the schema in database
	// gets older than the schema repository.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
