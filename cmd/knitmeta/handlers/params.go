package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	kdb "github.com/opst/knitmeta/pkg/db"
)

// names of path parameters.
const (
	ParamFlow    = "flow"
	ParamRun     = "run"
	ParamStep    = "step"
	ParamTask    = "task"
	ParamName    = "name"
	ParamAttempt = "attempt"
)

func runRef(c echo.Context) kdb.RunRef {
	return kdb.RunRef{FlowId: c.Param(ParamFlow), Run: c.Param(ParamRun)}
}

func stepRef(c echo.Context) kdb.StepRef {
	return kdb.StepRef{RunRef: runRef(c), StepName: c.Param(ParamStep)}
}

func taskRef(c echo.Context) kdb.TaskRef {
	return kdb.TaskRef{StepRef: stepRef(c), Task: c.Param(ParamTask)}
}

func attempt(c echo.Context) (int32, error) {
	raw := c.Param(ParamAttempt)
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return 0, apierr.BadRequest("attempt should be a non-negative integer: "+raw, err)
	}
	return int32(n), nil
}

// decode the request body as JSON.
//
// An empty body is decoded as zero value.
func decode[T any](c echo.Context) (T, error) {
	var v T
	if err := json.NewDecoder(c.Request().Body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return v, apierr.BadRequest("request body should be a JSON", err)
	}
	return v, nil
}
