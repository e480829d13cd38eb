// Package mocks provides mocks of kdb interfaces.
//
// Each mock records calls in Calls, and delegates them to Impl.
// When the Impl function is nil, the call panics.
package mocks

import (
	"context"
	"errors"

	kdb "github.com/opst/knitmeta/pkg/db"
)

type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

func notExpected() {
	panic(errors.New("it should not be called"))
}

type Database struct {
	MockFlows     *FlowInterface
	MockRuns      *RunInterface
	MockSteps     *StepInterface
	MockTasks     *TaskInterface
	MockArtifacts *ArtifactInterface
	MockMetadata  *MetadataInterface
	MockSchema    *SchemaInterface
}

var _ kdb.Database = &Database{}

func NewDatabase() *Database {
	return &Database{
		MockFlows:     &FlowInterface{},
		MockRuns:      &RunInterface{},
		MockSteps:     &StepInterface{},
		MockTasks:     &TaskInterface{},
		MockArtifacts: &ArtifactInterface{},
		MockMetadata:  &MetadataInterface{},
		MockSchema:    &SchemaInterface{},
	}
}

func (m *Database) Flows() kdb.FlowInterface         { return m.MockFlows }
func (m *Database) Runs() kdb.RunInterface           { return m.MockRuns }
func (m *Database) Steps() kdb.StepInterface         { return m.MockSteps }
func (m *Database) Tasks() kdb.TaskInterface         { return m.MockTasks }
func (m *Database) Artifacts() kdb.ArtifactInterface { return m.MockArtifacts }
func (m *Database) Metadata() kdb.MetadataInterface  { return m.MockMetadata }
func (m *Database) Schema() kdb.SchemaInterface      { return m.MockSchema }
func (m *Database) Close() error                     { return nil }

type FlowInterface struct {
	Impl struct {
		Create func(ctx context.Context, flow kdb.NewFlow) (kdb.Flow, error)
		Get    func(ctx context.Context, flowId string) (kdb.Flow, error)
		List   func(ctx context.Context) ([]kdb.Flow, error)
	}
	Calls struct {
		Create CallLog[kdb.NewFlow]
		Get    CallLog[string]
		List   CallLog[struct{}]
	}
}

var _ kdb.FlowInterface = &FlowInterface{}

func (m *FlowInterface) Create(ctx context.Context, flow kdb.NewFlow) (kdb.Flow, error) {
	m.Calls.Create = append(m.Calls.Create, flow)
	if m.Impl.Create == nil {
		notExpected()
	}
	return m.Impl.Create(ctx, flow)
}

func (m *FlowInterface) Get(ctx context.Context, flowId string) (kdb.Flow, error) {
	m.Calls.Get = append(m.Calls.Get, flowId)
	if m.Impl.Get == nil {
		notExpected()
	}
	return m.Impl.Get(ctx, flowId)
}

func (m *FlowInterface) List(ctx context.Context) ([]kdb.Flow, error) {
	m.Calls.List = append(m.Calls.List, struct{}{})
	if m.Impl.List == nil {
		notExpected()
	}
	return m.Impl.List(ctx)
}

type RunInterface struct {
	Impl struct {
		Create     func(ctx context.Context, flowId string, run kdb.NewRun) (kdb.Run, error)
		Get        func(ctx context.Context, ref kdb.RunRef) (kdb.Run, error)
		List       func(ctx context.Context, flowId string) ([]kdb.Run, error)
		Heartbeat  func(ctx context.Context, ref kdb.RunRef) (kdb.Run, error)
		MutateTags func(ctx context.Context, ref kdb.RunRef, mutation kdb.TagMutation) (kdb.TagSet, error)
	}
	Calls struct {
		Create CallLog[struct {
			FlowId string
			Run    kdb.NewRun
		}]
		Get        CallLog[kdb.RunRef]
		List       CallLog[string]
		Heartbeat  CallLog[kdb.RunRef]
		MutateTags CallLog[struct {
			Ref      kdb.RunRef
			Mutation kdb.TagMutation
		}]
	}
}

var _ kdb.RunInterface = &RunInterface{}

func (m *RunInterface) Create(ctx context.Context, flowId string, run kdb.NewRun) (kdb.Run, error) {
	m.Calls.Create = append(m.Calls.Create, struct {
		FlowId string
		Run    kdb.NewRun
	}{FlowId: flowId, Run: run})
	if m.Impl.Create == nil {
		notExpected()
	}
	return m.Impl.Create(ctx, flowId, run)
}

func (m *RunInterface) Get(ctx context.Context, ref kdb.RunRef) (kdb.Run, error) {
	m.Calls.Get = append(m.Calls.Get, ref)
	if m.Impl.Get == nil {
		notExpected()
	}
	return m.Impl.Get(ctx, ref)
}

func (m *RunInterface) List(ctx context.Context, flowId string) ([]kdb.Run, error) {
	m.Calls.List = append(m.Calls.List, flowId)
	if m.Impl.List == nil {
		notExpected()
	}
	return m.Impl.List(ctx, flowId)
}

func (m *RunInterface) Heartbeat(ctx context.Context, ref kdb.RunRef) (kdb.Run, error) {
	m.Calls.Heartbeat = append(m.Calls.Heartbeat, ref)
	if m.Impl.Heartbeat == nil {
		notExpected()
	}
	return m.Impl.Heartbeat(ctx, ref)
}

func (m *RunInterface) MutateTags(ctx context.Context, ref kdb.RunRef, mutation kdb.TagMutation) (kdb.TagSet, error) {
	m.Calls.MutateTags = append(m.Calls.MutateTags, struct {
		Ref      kdb.RunRef
		Mutation kdb.TagMutation
	}{Ref: ref, Mutation: mutation})
	if m.Impl.MutateTags == nil {
		notExpected()
	}
	return m.Impl.MutateTags(ctx, ref, mutation)
}

type StepInterface struct {
	Impl struct {
		Create func(ctx context.Context, ref kdb.RunRef, stepName string, step kdb.NewStep) (kdb.Step, error)
		Get    func(ctx context.Context, ref kdb.StepRef) (kdb.Step, error)
		List   func(ctx context.Context, ref kdb.RunRef) ([]kdb.Step, error)
	}
	Calls struct {
		Create CallLog[struct {
			Ref  kdb.StepRef
			Step kdb.NewStep
		}]
		Get  CallLog[kdb.StepRef]
		List CallLog[kdb.RunRef]
	}
}

var _ kdb.StepInterface = &StepInterface{}

func (m *StepInterface) Create(ctx context.Context, ref kdb.RunRef, stepName string, step kdb.NewStep) (kdb.Step, error) {
	m.Calls.Create = append(m.Calls.Create, struct {
		Ref  kdb.StepRef
		Step kdb.NewStep
	}{Ref: kdb.StepRef{RunRef: ref, StepName: stepName}, Step: step})
	if m.Impl.Create == nil {
		notExpected()
	}
	return m.Impl.Create(ctx, ref, stepName, step)
}

func (m *StepInterface) Get(ctx context.Context, ref kdb.StepRef) (kdb.Step, error) {
	m.Calls.Get = append(m.Calls.Get, ref)
	if m.Impl.Get == nil {
		notExpected()
	}
	return m.Impl.Get(ctx, ref)
}

func (m *StepInterface) List(ctx context.Context, ref kdb.RunRef) ([]kdb.Step, error) {
	m.Calls.List = append(m.Calls.List, ref)
	if m.Impl.List == nil {
		notExpected()
	}
	return m.Impl.List(ctx, ref)
}

type TaskInterface struct {
	Impl struct {
		Create    func(ctx context.Context, ref kdb.StepRef, task kdb.NewTask) (kdb.Task, error)
		Get       func(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error)
		List      func(ctx context.Context, ref kdb.StepRef) ([]kdb.Task, error)
		Heartbeat func(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error)
	}
	Calls struct {
		Create CallLog[struct {
			Ref  kdb.StepRef
			Task kdb.NewTask
		}]
		Get       CallLog[kdb.TaskRef]
		List      CallLog[kdb.StepRef]
		Heartbeat CallLog[kdb.TaskRef]
	}
}

var _ kdb.TaskInterface = &TaskInterface{}

func (m *TaskInterface) Create(ctx context.Context, ref kdb.StepRef, task kdb.NewTask) (kdb.Task, error) {
	m.Calls.Create = append(m.Calls.Create, struct {
		Ref  kdb.StepRef
		Task kdb.NewTask
	}{Ref: ref, Task: task})
	if m.Impl.Create == nil {
		notExpected()
	}
	return m.Impl.Create(ctx, ref, task)
}

func (m *TaskInterface) Get(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
	m.Calls.Get = append(m.Calls.Get, ref)
	if m.Impl.Get == nil {
		notExpected()
	}
	return m.Impl.Get(ctx, ref)
}

func (m *TaskInterface) List(ctx context.Context, ref kdb.StepRef) ([]kdb.Task, error) {
	m.Calls.List = append(m.Calls.List, ref)
	if m.Impl.List == nil {
		notExpected()
	}
	return m.Impl.List(ctx, ref)
}

func (m *TaskInterface) Heartbeat(ctx context.Context, ref kdb.TaskRef) (kdb.Task, error) {
	m.Calls.Heartbeat = append(m.Calls.Heartbeat, ref)
	if m.Impl.Heartbeat == nil {
		notExpected()
	}
	return m.Impl.Heartbeat(ctx, ref)
}

type ArtifactInterface struct {
	Impl struct {
		Create     func(ctx context.Context, ref kdb.TaskRef, artifacts []kdb.NewArtifact) (int, error)
		ListByTask func(ctx context.Context, ref kdb.TaskRef) ([]kdb.Artifact, error)
		ListByStep func(ctx context.Context, ref kdb.StepRef) ([]kdb.Artifact, error)
		ListByRun  func(ctx context.Context, ref kdb.RunRef) ([]kdb.Artifact, error)
		Find       func(ctx context.Context, ref kdb.TaskRef, name string) ([]kdb.Artifact, error)
		Get        func(ctx context.Context, ref kdb.TaskRef, name string, attempt int32) (kdb.Artifact, error)
	}
	Calls struct {
		Create CallLog[struct {
			Ref       kdb.TaskRef
			Artifacts []kdb.NewArtifact
		}]
		ListByTask CallLog[kdb.TaskRef]
		ListByStep CallLog[kdb.StepRef]
		ListByRun  CallLog[kdb.RunRef]
		Find       CallLog[struct {
			Ref  kdb.TaskRef
			Name string
		}]
		Get CallLog[struct {
			Ref     kdb.TaskRef
			Name    string
			Attempt int32
		}]
	}
}

var _ kdb.ArtifactInterface = &ArtifactInterface{}

func (m *ArtifactInterface) Create(ctx context.Context, ref kdb.TaskRef, artifacts []kdb.NewArtifact) (int, error) {
	m.Calls.Create = append(m.Calls.Create, struct {
		Ref       kdb.TaskRef
		Artifacts []kdb.NewArtifact
	}{Ref: ref, Artifacts: artifacts})
	if m.Impl.Create == nil {
		notExpected()
	}
	return m.Impl.Create(ctx, ref, artifacts)
}

func (m *ArtifactInterface) ListByTask(ctx context.Context, ref kdb.TaskRef) ([]kdb.Artifact, error) {
	m.Calls.ListByTask = append(m.Calls.ListByTask, ref)
	if m.Impl.ListByTask == nil {
		notExpected()
	}
	return m.Impl.ListByTask(ctx, ref)
}

func (m *ArtifactInterface) ListByStep(ctx context.Context, ref kdb.StepRef) ([]kdb.Artifact, error) {
	m.Calls.ListByStep = append(m.Calls.ListByStep, ref)
	if m.Impl.ListByStep == nil {
		notExpected()
	}
	return m.Impl.ListByStep(ctx, ref)
}

func (m *ArtifactInterface) ListByRun(ctx context.Context, ref kdb.RunRef) ([]kdb.Artifact, error) {
	m.Calls.ListByRun = append(m.Calls.ListByRun, ref)
	if m.Impl.ListByRun == nil {
		notExpected()
	}
	return m.Impl.ListByRun(ctx, ref)
}

func (m *ArtifactInterface) Find(ctx context.Context, ref kdb.TaskRef, name string) ([]kdb.Artifact, error) {
	m.Calls.Find = append(m.Calls.Find, struct {
		Ref  kdb.TaskRef
		Name string
	}{Ref: ref, Name: name})
	if m.Impl.Find == nil {
		notExpected()
	}
	return m.Impl.Find(ctx, ref, name)
}

func (m *ArtifactInterface) Get(ctx context.Context, ref kdb.TaskRef, name string, attempt int32) (kdb.Artifact, error) {
	m.Calls.Get = append(m.Calls.Get, struct {
		Ref     kdb.TaskRef
		Name    string
		Attempt int32
	}{Ref: ref, Name: name, Attempt: attempt})
	if m.Impl.Get == nil {
		notExpected()
	}
	return m.Impl.Get(ctx, ref, name, attempt)
}

type MetadataInterface struct {
	Impl struct {
		Create     func(ctx context.Context, ref kdb.TaskRef, metadata []kdb.NewMetadata) (int, error)
		ListByTask func(ctx context.Context, ref kdb.TaskRef) ([]kdb.Metadata, error)
		ListByRun  func(ctx context.Context, ref kdb.RunRef) ([]kdb.Metadata, error)
	}
	Calls struct {
		Create CallLog[struct {
			Ref      kdb.TaskRef
			Metadata []kdb.NewMetadata
		}]
		ListByTask CallLog[kdb.TaskRef]
		ListByRun  CallLog[kdb.RunRef]
	}
}

var _ kdb.MetadataInterface = &MetadataInterface{}

func (m *MetadataInterface) Create(ctx context.Context, ref kdb.TaskRef, metadata []kdb.NewMetadata) (int, error) {
	m.Calls.Create = append(m.Calls.Create, struct {
		Ref      kdb.TaskRef
		Metadata []kdb.NewMetadata
	}{Ref: ref, Metadata: metadata})
	if m.Impl.Create == nil {
		notExpected()
	}
	return m.Impl.Create(ctx, ref, metadata)
}

func (m *MetadataInterface) ListByTask(ctx context.Context, ref kdb.TaskRef) ([]kdb.Metadata, error) {
	m.Calls.ListByTask = append(m.Calls.ListByTask, ref)
	if m.Impl.ListByTask == nil {
		notExpected()
	}
	return m.Impl.ListByTask(ctx, ref)
}

func (m *MetadataInterface) ListByRun(ctx context.Context, ref kdb.RunRef) ([]kdb.Metadata, error) {
	m.Calls.ListByRun = append(m.Calls.ListByRun, ref)
	if m.Impl.ListByRun == nil {
		notExpected()
	}
	return m.Impl.ListByRun(ctx, ref)
}

type SchemaInterface struct {
	Impl struct {
		Version func(ctx context.Context) (int, error)
		Upgrade func(ctx context.Context) error
		Context func(ctx context.Context) (context.Context, context.CancelFunc)
	}
	Calls struct {
		Version CallLog[struct{}]
		Upgrade CallLog[struct{}]
		Context CallLog[struct{}]
	}
}

var _ kdb.SchemaInterface = &SchemaInterface{}

func (m *SchemaInterface) Version(ctx context.Context) (int, error) {
	m.Calls.Version = append(m.Calls.Version, struct{}{})
	if m.Impl.Version == nil {
		notExpected()
	}
	return m.Impl.Version(ctx)
}

func (m *SchemaInterface) Upgrade(ctx context.Context) error {
	m.Calls.Upgrade = append(m.Calls.Upgrade, struct{}{})
	if m.Impl.Upgrade == nil {
		notExpected()
	}
	return m.Impl.Upgrade(ctx)
}

func (m *SchemaInterface) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	m.Calls.Context = append(m.Calls.Context, struct{}{})
	if m.Impl.Context == nil {
		notExpected()
	}
	return m.Impl.Context(ctx)
}
