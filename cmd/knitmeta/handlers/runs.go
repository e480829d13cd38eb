package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	apitags "github.com/opst/knitmeta/pkg/api/types/tags"
	kdb "github.com/opst/knitmeta/pkg/db"
)

func CreateRunHandler(dbrun kdb.RunInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decode[apirecords.NewRun](c)
		if err != nil {
			return err
		}

		run, err := dbrun.Create(c.Request().Context(), c.Param(ParamFlow), req.ToDB())
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, run)
	}
}

func GetRunHandler(dbrun kdb.RunInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		run, err := dbrun.Get(c.Request().Context(), runRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, run)
	}
}

// ListRunsHandler lists runs of a flow, newer first.
func ListRunsHandler(dbrun kdb.RunInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		runs, err := dbrun.List(c.Request().Context(), c.Param(ParamFlow))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, runs)
	}
}

func RunHeartbeatHandler(dbrun kdb.RunInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		run, err := dbrun.Heartbeat(c.Request().Context(), runRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, run)
	}
}

// MutateRunTagsHandler adds and removes user tags of a run.
//
// Malformed mutations are 422, before the database is touched.
// Conflicts with concurrent mutations are 503; clients should retry them.
func MutateRunTagsHandler(dbrun kdb.RunInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return apierr.BadRequest("request body cannot be read", err)
		}
		var mutation apitags.Mutation
		if err := json.Unmarshal(body, &mutation); err != nil {
			return apierr.UnprocessableEntity(
				`request body should be {"tags_to_add": [string...], "tags_to_remove": [string...]}`,
				err,
			)
		}

		tags, err := dbrun.MutateTags(c.Request().Context(), runRef(c), mutation.ToDB())
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apitags.Result{Tags: tags})
	}
}
