package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	kdb "github.com/opst/knitmeta/pkg/db"
)

func CreateStepHandler(dbstep kdb.StepInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decode[apirecords.NewStep](c)
		if err != nil {
			return err
		}

		step, err := dbstep.Create(c.Request().Context(), runRef(c), c.Param(ParamStep), req.ToDB())
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, step)
	}
}

func GetStepHandler(dbstep kdb.StepInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		step, err := dbstep.Get(c.Request().Context(), stepRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, step)
	}
}

func ListStepsHandler(dbstep kdb.StepInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		steps, err := dbstep.List(c.Request().Context(), runRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, steps)
	}
}
