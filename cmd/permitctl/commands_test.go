package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "permitpulse/internal/jwt_token"
)

// inMemoryEnv clears every infrastructure URL so the CLI builds in-memory stores.
func inMemoryEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "ARCHIVE_BUCKET",
		"OPENAI_API_KEY", "PERMITPULSE_POLICY_FILE", "OPERATOR_JWT_SIGNING_KEY",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_ArgumentValidation(t *testing.T) {
	inMemoryEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"ingest without a city", []string{"ingest"}, "accepts 1 arg(s), received 0"},
		{"ingest with an unsupported city", []string{"ingest", "BOS"}, "unsupported city_code: BOS"},
		{"ingest with too many args", []string{"ingest", "NYC", "LA"}, "accepts 1 arg(s), received 2"},
		{"status takes no args", []string{"status", "extra"}, "unknown command"},
		{"org create needs a slug", []string{"org", "create", "--name", "Acme"}, `required flag(s) "slug" not set`},
		{"token without a signing key", []string{"token", "ops"}, "OPERATOR_JWT_SIGNING_KEY is not set"},
		{"unknown subcommand", []string{"rollback"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTokenCmd_MintsOperatorToken(t *testing.T) {
	inMemoryEnv(t)
	t.Setenv("OPERATOR_JWT_SIGNING_KEY", "cli-signing-key")

	out, err := execute(t, "token", "nightly-cron", "--ttl", "5m")
	require.NoError(t, err)

	svc := jwttoken.NewJWTService("cli-signing-key", jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
	subject, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "nightly-cron", subject)
}

func TestStatusCmd_PrintsJSON(t *testing.T) {
	inMemoryEnv(t)

	out, err := execute(t, "status")
	require.NoError(t, err)

	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Contains(t, status, "city_snapshots")
	assert.Equal(t, []any{}, status["stale_cities"])
}
