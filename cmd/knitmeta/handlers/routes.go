package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/opst/knitmeta/pkg/artifacts/content"
	kdb "github.com/opst/knitmeta/pkg/db"
)

// Register routes of the metadata API to e.
//
// cache can be nil. Then, artifact content is not served.
func Register(e *echo.Echo, db kdb.Database, cache content.Cache, version string) {
	e.GET("/ping", PingHandler)
	e.GET("/version", VersionHandler(version, db.Schema()))

	flow := "/flows/:" + ParamFlow
	e.GET("/flows", ListFlowsHandler(db.Flows()))
	e.POST(flow, CreateFlowHandler(db.Flows()))
	e.GET(flow, GetFlowHandler(db.Flows()))

	run := flow + "/runs/:" + ParamRun
	e.POST(flow+"/run", CreateRunHandler(db.Runs()))
	e.GET(flow+"/runs", ListRunsHandler(db.Runs()))
	e.GET(run, GetRunHandler(db.Runs()))
	e.POST(run+"/heartbeat", RunHeartbeatHandler(db.Runs()))
	e.PATCH(run+"/tag/mutate", MutateRunTagsHandler(db.Runs()))
	e.GET(run+"/artifacts", ListRunArtifactsHandler(db.Artifacts()))
	e.GET(run+"/metadata", ListRunMetadataHandler(db.Metadata()))

	step := run + "/steps/:" + ParamStep
	e.GET(run+"/steps", ListStepsHandler(db.Steps()))
	e.POST(step+"/step", CreateStepHandler(db.Steps()))
	e.GET(step, GetStepHandler(db.Steps()))
	e.GET(step+"/artifacts", ListStepArtifactsHandler(db.Artifacts()))

	task := step + "/tasks/:" + ParamTask
	e.POST(step+"/task", CreateTaskHandler(db.Tasks()))
	e.GET(step+"/tasks", ListTasksHandler(db.Tasks()))
	e.GET(task, GetTaskHandler(db.Tasks()))
	e.POST(task+"/heartbeat", TaskHeartbeatHandler(db.Tasks()))

	artifact := task + "/artifacts/:" + ParamName
	e.POST(task+"/artifact", CreateArtifactsHandler(db.Artifacts()))
	e.GET(task+"/artifacts", ListTaskArtifactsHandler(db.Artifacts()))
	e.GET(artifact, GetArtifactHandler(db.Artifacts()))
	e.GET(artifact+"/attempt/:"+ParamAttempt, GetArtifactAttemptHandler(db.Artifacts()))
	e.GET(artifact+"/content", GetArtifactContentHandler(db.Artifacts(), cache))
	e.GET(task+"/attempt/:"+ParamAttempt+"/artifacts", ListAttemptArtifactsHandler(db.Tasks(), db.Artifacts()))

	e.POST(task+"/metadata", CreateMetadataHandler(db.Metadata()))
	e.GET(task+"/metadata", ListTaskMetadataHandler(db.Metadata()))
}
