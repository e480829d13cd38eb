package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// code tells the HTTP status which err will be responded with.
//
// For nil, it is 200.
func code(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return http.StatusOK
	}
	var herr *echo.HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("handler returns non HTTPError: %v", err)
	}
	return herr.Code
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("response body is not JSON: %s", err)
	}
	return v
}

func p(name, value string) [2]string {
	return [2]string{name, value}
}
