package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/knitmeta/pkg/api/types/errors"
	apirecords "github.com/opst/knitmeta/pkg/api/types/records"
	"github.com/opst/knitmeta/pkg/artifacts/content"
	kdb "github.com/opst/knitmeta/pkg/db"
)

// CreateArtifactsHandler registers artifacts of a task.
//
// Artifacts registered already are skipped, and the response tells how many are new.
// When the task is not resolved, it is 400 and nothing is registered.
func CreateArtifactsHandler(dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decode[[]apirecords.NewArtifact](c)
		if err != nil {
			return err
		}
		artifacts := make([]kdb.NewArtifact, 0, len(req))
		for _, a := range req {
			artifacts = append(artifacts, a.ToDB())
		}

		n, err := dbart.Create(c.Request().Context(), taskRef(c), artifacts)
		if errors.Is(err, kdb.ErrMissing) {
			return apierr.BadRequest("the task is not found. register it first.", err)
		} else if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, apirecords.ArtifactsCreated{ArtifactsCreated: n})
	}
}

// ListTaskArtifactsHandler lists artifacts of the latest attempt of a task.
func ListTaskArtifactsHandler(dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		artifacts, err := dbart.ListByTask(c.Request().Context(), taskRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, kdb.LatestAttemptView(artifacts))
	}
}

// ListStepArtifactsHandler lists artifacts of tasks in a step, in the latest attempt over the step.
func ListStepArtifactsHandler(dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		artifacts, err := dbart.ListByStep(c.Request().Context(), stepRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, kdb.LatestAttemptView(artifacts))
	}
}

// ListRunArtifactsHandler lists artifacts of tasks in a run, in the latest attempt over the run.
func ListRunArtifactsHandler(dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		artifacts, err := dbart.ListByRun(c.Request().Context(), runRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, kdb.LatestAttemptView(artifacts))
	}
}

// ListAttemptArtifactsHandler lists artifacts of a task in the attempt given as a path parameter.
func ListAttemptArtifactsHandler(dbtask kdb.TaskInterface, dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		n, err := attempt(c)
		if err != nil {
			return err
		}
		ctx := c.Request().Context()

		task, err := dbtask.Get(ctx, taskRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		artifacts, err := dbart.ListByTask(ctx, taskRef(c))
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, kdb.AttemptView(artifacts, map[int64]int32{task.TaskId: n}))
	}
}

// latest finds an artifact with the name in the latest attempt of the task.
func latest(c echo.Context, dbart kdb.ArtifactInterface) (kdb.Artifact, error) {
	name := c.Param(ParamName)
	found, err := dbart.Find(c.Request().Context(), taskRef(c), name)
	if err != nil {
		return kdb.Artifact{}, apierr.FromError(err)
	}
	view := kdb.LatestAttemptView(found)
	if len(view) == 0 {
		return kdb.Artifact{}, apierr.NotFound("artifact "+name+" is not found", nil)
	}
	return view[0], nil
}

func GetArtifactHandler(dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		a, err := latest(c, dbart)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, a)
	}
}

func GetArtifactAttemptHandler(dbart kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		n, err := attempt(c)
		if err != nil {
			return err
		}
		a, err := dbart.Get(c.Request().Context(), taskRef(c), c.Param(ParamName), n)
		if err != nil {
			return apierr.FromError(err)
		}
		return c.JSON(http.StatusOK, a)
	}
}

// GetArtifactContentHandler serves content of the latest attempt of an artifact.
//
//   - ready: 200 with the content
//   - not fetched yet: 202 {"status": "pending"}. Clients should ask again later.
//   - fetching is failed: 502
//
// When cache is nil, it is 501.
func GetArtifactContentHandler(dbart kdb.ArtifactInterface, cache content.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		if cache == nil {
			return apierr.NotImplemented("artifact content cache is not configured.")
		}
		a, err := latest(c, dbart)
		if err != nil {
			return err
		}

		result, err := cache.Get(c.Request().Context(), a.Location)
		if err != nil {
			return apierr.ServiceUnavailable("artifact content cache is not available. retry later.", err)
		}

		switch result.Status {
		case content.Ready:
			ctype := a.ContentType
			if ctype == "" {
				ctype = echo.MIMEOctetStream
			}
			return c.Blob(http.StatusOK, ctype, result.Body)
		case content.Failed:
			return apierr.NewErrorMessage(
				http.StatusBadGateway,
				"artifact content cannot be fetched",
				apierr.WithAdvice(result.Reason),
			)
		default:
			return c.JSON(http.StatusAccepted, apirecords.ContentStatus{Status: string(result.Status)})
		}
	}
}
