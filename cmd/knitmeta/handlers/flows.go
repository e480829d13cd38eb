package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	kdb "github.com/opst/knitmeta/pkg/db"
)

func CreateFlowHandler(dbflow kdb.FlowInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decode[apirecords.NewFlow](c)
		if err != nil {
			return err
		}

		flow, err := dbflow.Create(c.Request().Context(), req.ToDB(c.Param(ParamFlow)))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, flow)
	}
}

func GetFlowHandler(dbflow kdb.FlowInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		flow, err := dbflow.Get(c.Request().Context(), c.Param(ParamFlow))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, flow)
	}
}

func ListFlowsHandler(dbflow kdb.FlowInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		flows, err := dbflow.List(c.Request().Context())
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, flows)
	}
}
