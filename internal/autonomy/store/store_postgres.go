package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"permitpulse/internal/autonomy"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/tx"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists the autonomy log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) conn(ctx context.Context) dbtx {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *autonomy.Event) error {
	details, err := marshalObject(event.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx,
		`INSERT INTO autonomy_events (id, event_type, trigger, action_taken, outcome, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(event.ID), string(event.EventType), event.Trigger, event.ActionTaken,
		string(event.Outcome), details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert autonomy event: %w", err)
	}
	return nil
}

// whereClause renders filter as a WHERE clause with positional args.
func whereClause(filter autonomy.EventFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.EventType != "" {
		add("event_type = $%d", string(filter.EventType))
	}
	if filter.Outcome != "" {
		add("outcome = $%d", string(filter.Outcome))
	}
	if filter.ActionTaken != "" {
		add("action_taken = $%d", filter.ActionTaken)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) CountEvents(ctx context.Context, filter autonomy.EventFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM autonomy_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count autonomy events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter autonomy.EventFilter, limit int) ([]*autonomy.Event, error) {
	where, args := whereClause(filter)
	query := `SELECT id, event_type, trigger, action_taken, outcome, details, created_at FROM autonomy_events` +
		where + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list autonomy events: %w", err)
	}
	defer rows.Close()

	var out []*autonomy.Event
	for rows.Next() {
		var (
			e         autonomy.Event
			eventID   uuid.UUID
			eventType string
			outcome   string
			details   []byte
		)
		if err := rows.Scan(&eventID, &eventType, &e.Trigger, &e.ActionTaken, &outcome, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan autonomy event: %w", err)
		}
		e.ID = id.EventID(eventID)
		e.EventType = autonomy.EventType(eventType)
		e.Outcome = autonomy.Outcome(outcome)
		if e.Details, err = unmarshalObject(details); err != nil {
			return nil, fmt.Errorf("decode event details: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RollbackExists(ctx context.Context, triggerKey string) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rollback_events WHERE trigger_key = $1)`, triggerKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rollback: %w", err)
	}
	return exists, nil
}

// InsertRollbackIfAbsent relies on the unique trigger_key; a conflicting insert
// reports false without error.
func (s *PostgresStore) InsertRollbackIfAbsent(ctx context.Context, rb *autonomy.RollbackEvent) (bool, error) {
	meta, err := marshalObject(rb.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshal rollback metadata: %w", err)
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO rollback_events (id, trigger_key, failed_release, fallback_release, reason, metadata, recovered_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (trigger_key) DO NOTHING`,
		uuid.UUID(rb.ID), rb.TriggerKey, rb.FailedRelease, rb.FallbackRelease, rb.Reason, meta,
		rb.RecoveredAt, rb.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert rollback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert rollback: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) RecentRollbacks(ctx context.Context, limit int) ([]*autonomy.RollbackEvent, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, trigger_key, failed_release, fallback_release, reason, metadata, recovered_at, created_at
		 FROM rollback_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list rollbacks: %w", err)
	}
	defer rows.Close()

	var out []*autonomy.RollbackEvent
	for rows.Next() {
		var (
			rb   autonomy.RollbackEvent
			rbID uuid.UUID
			meta []byte
		)
		if err := rows.Scan(&rbID, &rb.TriggerKey, &rb.FailedRelease, &rb.FallbackRelease, &rb.Reason,
			&meta, &rb.RecoveredAt, &rb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rollback: %w", err)
		}
		rb.ID = id.RollbackID(rbID)
		if rb.Metadata, err = unmarshalObject(meta); err != nil {
			return nil, fmt.Errorf("decode rollback metadata: %w", err)
		}
		out = append(out, &rb)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendSLOMetric(ctx context.Context, m *autonomy.SLOMetric) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO slo_metrics (id, metric_name, metric_value, target_value, window_start, window_end, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(m.ID), m.MetricName, m.MetricValue, m.TargetValue, m.WindowStart, m.WindowEnd,
		string(m.Status), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert slo metric: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestSLOMetrics(ctx context.Context) ([]*autonomy.SLOMetric, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT DISTINCT ON (metric_name)
		        id, metric_name, metric_value, target_value, window_start, window_end, status, created_at
		 FROM slo_metrics
		 ORDER BY metric_name, window_end DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest slo metrics: %w", err)
	}
	defer rows.Close()

	var out []*autonomy.SLOMetric
	for rows.Next() {
		var (
			m      autonomy.SLOMetric
			mID    uuid.UUID
			status string
		)
		if err := rows.Scan(&mID, &m.MetricName, &m.MetricValue, &m.TargetValue, &m.WindowStart,
			&m.WindowEnd, &status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan slo metric: %w", err)
		}
		m.ID = id.MetricID(mID)
		m.Status = autonomy.SLOStatus(status)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func marshalObject(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

func unmarshalObject(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
