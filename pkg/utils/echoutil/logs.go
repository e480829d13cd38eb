package echoutil

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	xe "github.com/opst/knitmeta/pkg/errors"
)

func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		meth := c.Request().Method
		path := c.Request().URL
		BEGIN := time.Now()
		c.Logger().Debugf("< request @[%s] %s %s", BEGIN, meth, path)

		err := next(c)

		END := time.Now()
		status := c.Response().Status
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			status = herr.Code
		}
		c.Logger().Infof(
			"> response @[%s] status = %d (for request @[%s] %s %s) in %v",
			END, status, BEGIN, meth, path, END.Sub(BEGIN),
		)
		return err
	}
}

// SetLevel sets level of the echo's logger.
//
// loglevel is one of debug, info, warn, error or off. Unknown levels fall back to warn.
func SetLevel(e *echo.Echo, loglevel string) {
	switch strings.ToLower(loglevel) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "info":
		e.Logger.SetLevel(log.INFO)
	case "warn", "":
		e.Logger.SetLevel(log.WARN)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	case "off":
		e.Logger.SetLevel(log.OFF)
	default:
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
	}
}

// ErrorHandler returns echo.HTTPErrorHandler.
//
// Errors carrying apierr.ErrorMessage are responded as apierr.ErrorResponse.
// Others are handled by the echo's default handler.
//
// Only server errors (5xx, other than 503) are logged as errors, with their trace.
// Expected failures (4xx, 503) are logged in debug level.
func ErrorHandler(e *echo.Echo, options ...ErrorHandlerOption) echo.HTTPErrorHandler {
	conf := &errorHandlerConfig{}
	for _, o := range options {
		o(conf)
	}
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			code = herr.Code
		}

		var msg apierr.ErrorMessage
		isMessage := false
		var diag xe.Diagnostic
		if herr != nil {
			msg, isMessage = herr.Message.(apierr.ErrorMessage)
			if errors.As(herr.Internal, &diag) && conf.exposeTrace {
				msg.Advice = diag.Trace()
			}
		}

		if isMessage && !c.Response().Committed {
			var werr error
			if c.Request().Method == http.MethodHead {
				werr = c.NoContent(code)
			} else {
				werr = c.JSON(code, apierr.ErrorResponse{Message: msg})
			}
			if werr != nil {
				c.Logger().Error(werr)
			}
		} else {
			e.DefaultHTTPErrorHandler(err, c)
		}
		if code < 500 || code == http.StatusServiceUnavailable {
			c.Logger().Debugf("%s %s: %d: %s", c.Request().Method, c.Request().URL, code, err)
			return
		}

		if diag.Id != "" {
			c.Logger().Error(diag.Trace())
			return
		}
		c.Logger().Error(xe.Trace(err))
	}
}

type errorHandlerConfig struct {
	exposeTrace bool
}

type ErrorHandlerOption func(*errorHandlerConfig)

// ExposeTrace makes responses of unexpected errors carry their trace as advice.
//
// It is for debugging. Traces may contain details of the database.
func ExposeTrace(expose bool) ErrorHandlerOption {
	return func(c *errorHandlerConfig) {
		c.exposeTrace = expose
	}
}
