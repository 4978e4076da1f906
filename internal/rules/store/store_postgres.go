package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/platform/tx"
	"permitpulse/pkg/requestcontext"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists snapshots in PostgreSQL. Publish serializes per city with
// an advisory transaction lock; the partial unique index on active snapshots backs it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed snapshot store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) conn(ctx context.Context) dbtx {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const snapshotColumns = `id, city_code, version, checksum, status, validation_score, source_urls,
	parsed_payload, effective_date, published_at, is_active, created_at, updated_at`

func (s *PostgresStore) Active(ctx context.Context, city id.CityCode) (*rules.Snapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM rule_snapshots
		 WHERE city_code = $1 AND is_active
		 ORDER BY version DESC LIMIT 2`, string(city))
	if err != nil {
		return nil, fmt.Errorf("query active snapshot: %w", err)
	}
	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	switch len(snaps) {
	case 0:
		return nil, sentinel.ErrNotFound
	case 1:
	default:
		return nil, fmt.Errorf("city %s has more than one active snapshot: %w", city, sentinel.ErrInvariant)
	}
	if err := s.loadClauses(ctx, snaps[0]); err != nil {
		return nil, err
	}
	return snaps[0], nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*rules.Snapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM rule_snapshots
		 WHERE is_active ORDER BY city_code, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active snapshots: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *PostgresStore) Get(ctx context.Context, snapID id.SnapshotID) (*rules.Snapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM rule_snapshots WHERE id = $1`, uuid.UUID(snapID))
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, sentinel.ErrNotFound
	}
	if err := s.loadClauses(ctx, snaps[0]); err != nil {
		return nil, err
	}
	return snaps[0], nil
}

// Publish deactivates the city's active snapshot, allocates the next version and
// inserts snap with its clauses in one transaction.
func (s *PostgresStore) Publish(ctx context.Context, snap *rules.Snapshot) (*rules.Snapshot, error) {
	if err := checkClauseIDs(snap.Clauses); err != nil {
		return nil, err
	}
	stored := cloneSnapshot(snap)
	if stored.ID.IsNil() {
		stored.ID = id.NewSnapshotID()
	}
	now := requestcontext.Now(ctx)
	stored.IsActive = true
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.ParsedPayload.ClauseCount = len(stored.Clauses)

	payload, err := json.Marshal(stored.ParsedPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal parsed payload: %w", err)
	}

	err = tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := s.conn(ctx)
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(stored.CityCode)); err != nil {
			return fmt.Errorf("lock city %s: %w", stored.CityCode, err)
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE rule_snapshots SET is_active = FALSE, updated_at = $2
			 WHERE city_code = $1 AND is_active`, string(stored.CityCode), now); err != nil {
			return fmt.Errorf("deactivate snapshots: %w", err)
		}
		var maxVersion int
		if err := q.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM rule_snapshots WHERE city_code = $1`,
			string(stored.CityCode)).Scan(&maxVersion); err != nil {
			return fmt.Errorf("next version: %w", err)
		}
		stored.Version = maxVersion + 1

		if _, err := q.ExecContext(ctx,
			`INSERT INTO rule_snapshots (`+snapshotColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			uuid.UUID(stored.ID), string(stored.CityCode), stored.Version, stored.Checksum,
			string(stored.Status), stored.ValidationScore, pq.Array(stored.SourceURLs), payload,
			stored.EffectiveDate, stored.PublishedAt, stored.IsActive, stored.CreatedAt, stored.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		for i, clause := range stored.Clauses {
			if err := insertClause(ctx, q, stored.ID, i, clause); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func insertClause(ctx context.Context, q dbtx, snapID id.SnapshotID, position int, clause rules.Clause) error {
	cond, err := json.Marshal(clause.Condition)
	if err != nil {
		return fmt.Errorf("marshal condition for %s: %w", clause.ClauseID, err)
	}
	meta := clause.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", clause.ClauseID, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO rule_clauses (snapshot_id, position, clause_id, category, condition_expr,
		 requirement_text, penalty_text, confidence, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(snapID), position, clause.ClauseID, string(clause.Category), cond,
		clause.RequirementText, clause.PenaltyText, clause.Confidence, metaJSON)
	if err != nil {
		return fmt.Errorf("insert clause %s: %w", clause.ClauseID, err)
	}
	return nil
}

func (s *PostgresStore) MarkStale(ctx context.Context, snapID id.SnapshotID) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE rule_snapshots SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(snapID), string(rules.SnapshotStatusStale), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("mark snapshot stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark snapshot stale: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClauseCount(ctx context.Context, snapID id.SnapshotID) (int, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rule_clauses WHERE snapshot_id = $1`, uuid.UUID(snapID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clauses: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) loadClauses(ctx context.Context, snap *rules.Snapshot) error {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT clause_id, category, condition_expr, requirement_text, penalty_text, confidence, metadata
		 FROM rule_clauses WHERE snapshot_id = $1 ORDER BY position`, uuid.UUID(snap.ID))
	if err != nil {
		return fmt.Errorf("query clauses: %w", err)
	}
	defer rows.Close()

	snap.Clauses = []rules.Clause{}
	for rows.Next() {
		var (
			clause   rules.Clause
			category string
			cond     []byte
			meta     []byte
		)
		if err := rows.Scan(&clause.ClauseID, &category, &cond, &clause.RequirementText,
			&clause.PenaltyText, &clause.Confidence, &meta); err != nil {
			return fmt.Errorf("scan clause: %w", err)
		}
		clause.Category = rules.Category(category)
		if err := json.Unmarshal(cond, &clause.Condition); err != nil {
			return fmt.Errorf("decode condition for %s: %w", clause.ClauseID, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &clause.Metadata); err != nil {
				return fmt.Errorf("decode metadata for %s: %w", clause.ClauseID, err)
			}
		}
		snap.Clauses = append(snap.Clauses, clause)
	}
	return rows.Err()
}

func scanSnapshots(rows *sql.Rows) ([]*rules.Snapshot, error) {
	defer rows.Close()
	var out []*rules.Snapshot
	for rows.Next() {
		var (
			snap    rules.Snapshot
			snapID  uuid.UUID
			city    string
			status  string
			payload []byte
			urls    []string
		)
		if err := rows.Scan(&snapID, &city, &snap.Version, &snap.Checksum, &status,
			&snap.ValidationScore, pq.Array(&urls), &payload, &snap.EffectiveDate,
			&snap.PublishedAt, &snap.IsActive, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.ID = id.SnapshotID(snapID)
		snap.CityCode = id.CityCode(city)
		snap.Status = rules.SnapshotStatus(status)
		snap.SourceURLs = urls
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &snap.ParsedPayload); err != nil {
				return nil, fmt.Errorf("decode parsed payload: %w", err)
			}
		}
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
