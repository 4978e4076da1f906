// Package testutil holds request and response helpers shared by handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitpulse/pkg/platform/httputil"
)

// NewJSONRequest builds a request whose body is v encoded as JSON. A nil v
// sends an empty body.
func NewJSONRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if v != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(v), "encode request body")
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req and returns the recorder.
func DoRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON decodes the response body into T.
func DecodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "decode response: %s", rec.Body.String())
	return out
}

// AssertStatusAndError checks the status and the error code written by
// httputil.WriteError.
func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	resp := DecodeJSON[httputil.ErrorResponse](t, rec)
	assert.Equal(t, code, resp.Error)
}
