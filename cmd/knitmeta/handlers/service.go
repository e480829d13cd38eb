package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	kdb "github.com/opst/knitmeta/pkg/db"
)

func PingHandler(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// VersionHandler tells versions of the server and the database schema.
func VersionHandler(server string, dbschema kdb.SchemaInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := dbschema.Version(c.Request().Context())
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apirecords.Version{Server: server, Schema: v})
	}
}
