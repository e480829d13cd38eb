// Package http builds echo contexts for handler tests.
package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

type RequestOption func(req *http.Request) *http.Request

func WithContext(ctx context.Context) RequestOption {
	return func(req *http.Request) *http.Request {
		return req.WithContext(ctx)
	}
}

func WithHeader(key string, value string, values ...string) RequestOption {
	return func(req *http.Request) *http.Request {
		req.Header.Add(key, value)
		for _, v := range values {
			req.Header.Add(key, v)
		}
		return req
	}
}

// = WithHeader("Content-Type", ctyp)
func ContentType(ctyp string) RequestOption {
	return WithHeader("Content-Type", ctyp)
}

// = ContentType("application/json")
func JSON() RequestOption {
	return ContentType(echo.MIMEApplicationJSON)
}

func request(e *echo.Echo, method string, target string, data io.Reader, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, data)
	for _, opt := range reqopts {
		req = opt(req)
	}
	resp := httptest.NewRecorder()

	ctx := e.NewContext(req, resp)
	return ctx, resp
}

func Get(e *echo.Echo, target string, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodGet, target, nil, reqopts...)
}

func Post(e *echo.Echo, target string, data io.Reader, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodPost, target, data, reqopts...)
}

func Patch(e *echo.Echo, target string, data io.Reader, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodPatch, target, data, reqopts...)
}

// Params sets path parameters to c, in the order of names.
func Params(c echo.Context, kv ...[2]string) echo.Context {
	names := make([]string, 0, len(kv))
	values := make([]string, 0, len(kv))
	for _, p := range kv {
		names = append(names, p[0])
		values = append(values, p[1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}
