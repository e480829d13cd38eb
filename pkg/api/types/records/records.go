// Package records defines request and response bodies of the metadata API.
//
// Responses of single records are kdb entities as they are.
package records

import (
	kdb "github.com/opst/knitmeta/pkg/db"
)

// Attributes common to request bodies creating records.
type Attributes struct {
	UserName   string   `json:"user_name"`
	Tags       []string `json:"tags"`
	SystemTags []string `json:"system_tags"`

	// optional. ms since epoch.
	TsEpoch int64 `json:"ts_epoch"`
}

func (a Attributes) ToDB() kdb.Attributes {
	return kdb.Attributes{
		UserName:   a.UserName,
		Tags:       kdb.NewTagSet(a.Tags),
		SystemTags: kdb.NewTagSet(a.SystemTags),
		TsEpoch:    a.TsEpoch,
	}
}

type NewFlow struct {
	Attributes
}

func (f NewFlow) ToDB(flowId string) kdb.NewFlow {
	return kdb.NewFlow{FlowId: flowId, Attributes: f.Attributes.ToDB()}
}

type NewRun struct {
	RunId *string `json:"run_id"`
	Attributes
}

func (r NewRun) ToDB() kdb.NewRun {
	return kdb.NewRun{RunId: r.RunId, Attributes: r.Attributes.ToDB()}
}

type NewStep struct {
	Attributes
}

func (s NewStep) ToDB() kdb.NewStep {
	return kdb.NewStep{Attributes: s.Attributes.ToDB()}
}

type NewTask struct {
	TaskName *string `json:"task_name"`
	Attributes
}

func (t NewTask) ToDB() kdb.NewTask {
	return kdb.NewTask{TaskName: t.TaskName, Attributes: t.Attributes.ToDB()}
}

type NewArtifact struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	DsType      string `json:"ds_type"`
	Sha         string `json:"sha"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	AttemptId   int32  `json:"attempt_id"`
	Attributes
}

func (a NewArtifact) ToDB() kdb.NewArtifact {
	return kdb.NewArtifact{
		Name:        a.Name,
		Location:    a.Location,
		DsType:      a.DsType,
		Sha:         a.Sha,
		Type:        a.Type,
		ContentType: a.ContentType,
		AttemptId:   a.AttemptId,
		Attributes:  a.Attributes.ToDB(),
	}
}

type NewMetadata struct {
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
	Type      string `json:"type"`
	Attributes
}

func (m NewMetadata) ToDB() kdb.NewMetadata {
	return kdb.NewMetadata{
		FieldName:  m.FieldName,
		Value:      m.Value,
		Type:       m.Type,
		Attributes: m.Attributes.ToDB(),
	}
}

type ArtifactsCreated struct {
	ArtifactsCreated int `json:"artifacts_created"`
}

type MetadataCreated struct {
	MetadataCreated int `json:"metadata_created"`
}

// ContentStatus is a response for artifact content not ready to be served.
type ContentStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Version is a response of /version.
type Version struct {
	Server string `json:"server"`
	Schema int    `json:"schema"`
}
