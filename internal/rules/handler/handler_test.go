package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitpulse/internal/rules"
	"permitpulse/internal/rules/store"
	id "permitpulse/pkg/domain"
)

func newRouter(t *testing.T) (*chi.Mux, *store.InMemoryStore) {
	t.Helper()
	snapshots := store.NewInMemory()
	r := chi.NewRouter()
	New(snapshots, nil).Register(r)
	return r, snapshots
}

func TestHandleLatest(t *testing.T) {
	t.Run("returns the active snapshot with clauses", func(t *testing.T) {
		r, snapshots := newRouter(t)
		_, err := snapshots.Publish(context.Background(), &rules.Snapshot{
			CityCode: id.CityNYC,
			Status:   rules.SnapshotStatusActive,
			Clauses:  []rules.Clause{{ClauseID: "tax-registration", Category: rules.CategoryTax}},
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cities/nyc/rules/latest", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "NYC", body["city_code"])
		assert.EqualValues(t, 1, body["version"])
		assert.Len(t, body["clauses"], 1)
	})

	t.Run("404 when the city has no snapshot", func(t *testing.T) {
		r, _ := newRouter(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cities/LA/rules/latest", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("400 for an unsupported city", func(t *testing.T) {
		r, _ := newRouter(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cities/XX/rules/latest", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
