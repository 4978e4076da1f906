package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/requestcontext"
)

type staticSources map[string]string

func (s staticSources) CityURL(code string) (string, bool) {
	u, ok := s[code]
	return u, ok
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("returns page content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("<p>Hosts must register.</p>"))
		}))
		defer srv.Close()

		f := New(staticSources{"NYC": srv.URL}, time.Second, WithRate(0))
		ctx := requestcontext.WithTime(context.Background(), fixed)

		doc, err := f.Fetch(ctx, id.CityNYC)
		require.NoError(t, err)
		assert.Equal(t, id.CityNYC, doc.CityCode)
		assert.Equal(t, srv.URL, doc.SourceURL)
		assert.Equal(t, "<p>Hosts must register.</p>", doc.Content)
		assert.Equal(t, fixed, doc.FetchedAt)
	})

	t.Run("sends the configured user agent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "permitpulse-test/1.0", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		f := New(staticSources{"SF": srv.URL}, time.Second, WithRate(0), WithUserAgent("permitpulse-test/1.0"))
		_, err := f.Fetch(context.Background(), id.CitySF)
		require.NoError(t, err)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		f := New(staticSources{"LA": srv.URL}, time.Second, WithRate(0))
		_, err := f.Fetch(context.Background(), id.CityLA)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unknown city", func(t *testing.T) {
		f := New(staticSources{}, time.Second)
		_, err := f.Fetch(context.Background(), id.CitySF)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("oversized body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 64)))
		}))
		defer srv.Close()

		f := New(staticSources{"SF": srv.URL}, time.Second, WithRate(0), WithMaxContentSize(16))
		_, err := f.Fetch(context.Background(), id.CitySF)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("timeout is an ordinary failure", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		f := New(staticSources{"NYC": srv.URL}, 50*time.Millisecond, WithRate(0))
		_, err := f.Fetch(context.Background(), id.CityNYC)
		require.Error(t, err)
	})

	t.Run("cancelled context stops the limiter wait", func(t *testing.T) {
		f := New(staticSources{"NYC": "http://127.0.0.1:1"}, time.Second, WithRate(0.001))
		// drain the single burst token
		_ = f.limiter.Allow()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, id.CityNYC)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch slot")
	})
}
