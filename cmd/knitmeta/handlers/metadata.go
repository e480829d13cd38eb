package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	kdb "github.com/opst/knitmeta/pkg/db"
)

// CreateMetadataHandler registers metadata of a task.
//
// When the task is not resolved, it is 400 and nothing is registered.
func CreateMetadataHandler(dbmd kdb.MetadataInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decode[[]apirecords.NewMetadata](c)
		if err != nil {
			return err
		}
		metadata := make([]kdb.NewMetadata, 0, len(req))
		for _, m := range req {
			metadata = append(metadata, m.ToDB())
		}

		n, err := dbmd.Create(c.Request().Context(), taskRef(c), metadata)
		if errors.Is(err, kdb.ErrMissing) {
			return apierr.BadRequest("the task is not found. register it first.", err)
		} else if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apirecords.MetadataCreated{MetadataCreated: n})
	}
}

func ListTaskMetadataHandler(dbmd kdb.MetadataInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		md, err := dbmd.ListByTask(c.Request().Context(), taskRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, md)
	}
}

func ListRunMetadataHandler(dbmd kdb.MetadataInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		md, err := dbmd.ListByRun(c.Request().Context(), runRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, md)
	}
}
