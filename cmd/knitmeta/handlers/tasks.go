package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	kdb "github.com/opst/knitmeta/pkg/db"
)

func CreateTaskHandler(dbtask kdb.TaskInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decode[apirecords.NewTask](c)
		if err != nil {
			return err
		}

		task, err := dbtask.Create(c.Request().Context(), stepRef(c), req.ToDB())
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func GetTaskHandler(dbtask kdb.TaskInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := dbtask.Get(c.Request().Context(), taskRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func ListTasksHandler(dbtask kdb.TaskInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := dbtask.List(c.Request().Context(), stepRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

// TaskHeartbeatHandler beats the task, and its run.
func TaskHeartbeatHandler(dbtask kdb.TaskInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := dbtask.Heartbeat(c.Request().Context(), taskRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, task)
	}
}
