package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitpulse/internal/autonomy"
	id "permitpulse/pkg/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestWhereClause(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	where, args := whereClause(autonomy.EventFilter{
		EventType: autonomy.EventTypeOps,
		Outcome:   autonomy.OutcomeDegraded,
		Since:     since,
	})
	assert.Equal(t, " WHERE event_type = $1 AND outcome = $2 AND created_at >= $3", where)
	assert.Equal(t, []any{"ops_loop", "degraded", since}, args)

	where, args = whereClause(autonomy.EventFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestPostgresStore_InsertRollbackIfAbsent(t *testing.T) {
	store, mock := newMockStore(t)
	rb := &autonomy.RollbackEvent{ID: id.NewRollbackID(), TriggerKey: "event:abc"}

	mock.ExpectExec("ON CONFLICT \\(trigger_key\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "event:abc", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(trigger_key\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.InsertRollbackIfAbsent(context.Background(), rb)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertRollbackIfAbsent(context.Background(), rb)
	require.NoError(t, err)
	assert.False(t, inserted, "a lost race reports not inserted without error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEvents(t *testing.T) {
	store, mock := newMockStore(t)
	eventID := id.NewEventID()
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM autonomy_events WHERE outcome = \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("degraded", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "trigger", "action_taken", "outcome", "details", "created_at"}).
			AddRow(eventID.String(), "data_loop", "ingest:LA", "hold_previous_snapshot", "degraded",
				[]byte(`{"city_code":"LA"}`), created))

	events, err := store.ListEvents(context.Background(), autonomy.EventFilter{Outcome: autonomy.OutcomeDegraded}, 20)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, "LA", events[0].CityCode().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountEvents(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM autonomy_events WHERE event_type = \\$1").
		WithArgs("decision_loop").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.CountEvents(context.Background(), autonomy.EventFilter{EventType: autonomy.EventTypeDecision})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
