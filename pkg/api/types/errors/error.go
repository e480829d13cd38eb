package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	kdb "github.com/opst/knitmeta/pkg/db"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	See    string `json:"see,omitempty"`

	// diagnostic id of an unexpected error. Server logs have its trace.
	Id string `json:"id,omitempty"`

	Cause error `json:"-"`
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	f := new(struct {
		Reason *string `json:"reason"`
		Advice *string `json:"advice,omitempty"`
		See    *string `json:"see,omitempty"`
		Id     *string `json:"id,omitempty"`
	})
	if err := json.Unmarshal(bytes, f); err != nil {
		return err
	}

	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	em.Reason = *f.Reason

	if f.Advice != nil {
		em.Advice = *f.Advice
	}
	if f.See != nil {
		em.See = *f.See
	}
	if f.Id != nil {
		em.Id = *f.Id
	}

	return nil
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Id != "" {
		lines = append(lines, "diagnostic id: "+e.Id)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func WithSee(see string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if see != "" {
			in.See = see
		}
		return in
	}
}

func WithId(id string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		in.Id = id
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func ServiceUnavailable(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusServiceUnavailable,
		"service unavailable temporaly",
		WithAdvice(advice),
		WithError(err),
	)
}

func NotFound(reason string, err error) *echo.HTTPError {
	if reason == "" {
		reason = "not found"
	}
	return NewErrorMessage(http.StatusNotFound, reason, WithError(err))
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func UnprocessableEntity(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusUnprocessableEntity,
		"unprocessable entity",
		WithAdvice(advice),
		WithError(err),
	)
}

func Conflict(message string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusConflict,
		message,
		options...,
	)
}

func NotImplemented(advice string) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotImplemented, "not implemented", WithAdvice(advice))
}

// InternalServerError hides err behind a diagnostic id.
//
// Clients see the id only. The cause (with its trace) is kept as Internal of HTTPError.
func InternalServerError(err error) *echo.HTTPError {
	diag := xe.NewDiagnostic(err)
	msg := ErrorMessage{
		Reason: "unexpected error",
		Advice: "ask your system admin with the diagnostic id.",
		Id:     diag.Id,
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(diag)
}

// FromError converts errors from the database layer to HTTP errors.
//
//   - kdb.ErrSystemTagRemoval: 422
//   - kdb.ErrInvalid: 400
//   - kdb.ErrMissing, kdb.ErrMissingParent: 404
//   - kdb.ErrConflict: 409
//   - kdb.ErrRetryable (including kdb.ErrUnavailable): 503
//   - *echo.HTTPError: as it is
//   - others: 500, with diagnostic id
func FromError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var herr *echo.HTTPError
	switch {
	case errors.As(err, &herr):
		return herr
	case errors.Is(err, kdb.ErrSystemTagRemoval):
		return UnprocessableEntity("system tags cannot be removed.", err)
	case errors.Is(err, kdb.ErrInvalid):
		return BadRequest(err.Error(), err)
	case errors.Is(err, kdb.ErrMissing), errors.Is(err, kdb.ErrMissingParent):
		var unresolved kdb.Unresolved
		if errors.As(err, &unresolved) {
			return NotFound(unresolved.Error(), err)
		}
		return NotFound("", err)
	case errors.Is(err, kdb.ErrConflict):
		return Conflict("already exists", WithError(err))
	case errors.Is(err, kdb.ErrUnavailable):
		return ServiceUnavailable("database is busy. retry later.", err)
	case errors.Is(err, kdb.ErrRetryable):
		return ServiceUnavailable("conflicted with a concurrent request. retry it.", err)
	default:
		return InternalServerError(err)
	}
}
