package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitpulse/internal/organization"
	"permitpulse/internal/platform/config"
)

// TestBuild_InMemoryRouter builds the graph without infrastructure and drives
// the public and operator routes end to end.
func TestBuild_InMemoryRouter(t *testing.T) {
	cfg := config.Config{
		Kafka:    config.KafkaConfig{AlertsTopic: "alerts", EventsTopic: "events"},
		Operator: config.OperatorConfig{CronSharedSecret: "cron-secret", JWTSigningKey: "signing-key"},
		Policy:   config.DefaultPolicy(),
	}
	ctx := context.Background()
	a, err := Build(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NotNil(t, a.Tokens)

	_, err = a.Organizations.Create(ctx, organization.CreateRequest{Name: "Acme Stays", Slug: "acme"})
	require.NoError(t, err)

	router := a.Router()
	do := func(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health", "", nil).Code)

	rec := do(http.MethodPost, "/address-checks", `{"address":"1 Main St","city_code":"NYC"}`,
		map[string]string{"X-Org-Slug": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var check map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.Equal(t, "UNDETERMINED", check["result_grade"])
	assert.NotNil(t, check["organization_id"])

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/cities/NYC/rules/latest", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/alerts?org=acme", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/system/autonomy-status", "", nil).Code)

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/internal/ops/cycle", "", nil).Code)

	rec = do(http.MethodPost, "/internal/ops/cycle", "", map[string]string{"Authorization": "Bearer cron-secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var cycle struct {
		Metrics []map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cycle))
	assert.Len(t, cycle.Metrics, 2)

	expired, err := a.Tokens.GenerateOperatorToken("ops", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/internal/ops/cycle", "",
		map[string]string{"Authorization": "Bearer " + expired}).Code)

	valid, err := a.Tokens.GenerateOperatorToken("ops", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/internal/ops/cycle", "",
		map[string]string{"Authorization": "Bearer " + valid}).Code)

	rec = do(http.MethodGet, "/system/slo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "api_availability")
}
