package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "permitpulse/internal/jwt_token"
	"permitpulse/pkg/requestcontext"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func operatorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.Operator(r.Context())))
	})
}

func TestRequireOperator(t *testing.T) {
	tokens := jwttoken.NewJWTService("signing-key", jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
	valid, err := tokens.GenerateOperatorToken("alex", time.Hour)
	require.NoError(t, err)
	h := RequireOperator("s3cret", tokens, discard)(operatorEcho())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"shared secret", "Bearer s3cret", http.StatusOK, SharedSecretSubject},
		{"operator jwt", "Bearer " + valid, http.StatusOK, "alex"},
		{"wrong secret", "Bearer nope", http.StatusUnauthorized, ""},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic czNjcmV0", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/ops/cycle", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
			}
		})
	}
}

func TestRequireOperator_NothingConfigured(t *testing.T) {
	h := RequireOperator("", nil, discard)(operatorEcho())
	req := httptest.NewRequest(http.MethodPost, "/internal/ops/cycle", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-123", seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
