package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"permitpulse/internal/decision"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
	"permitpulse/pkg/platform/tx"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

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

// Save inserts the check and its trace in one transaction.
func (s *PostgresStore) Save(ctx context.Context, check *decision.AddressCheck, trace *decision.DecisionTrace) error {
	evidence, err := json.Marshal(check.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	return tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := s.conn(ctx)
		_, err := q.ExecContext(ctx,
			`INSERT INTO address_checks (id, organization_id, address, city_code, result_grade, decision_mode,
				blocker_flags, required_actions, evidence, snapshot_id, confidence, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			uuid.UUID(check.ID), nullOrg(check.OrganizationID), check.Address, check.CityCode.String(),
			string(check.ResultGrade), string(check.DecisionMode), pq.Array(check.BlockerFlags),
			pq.Array(check.RequiredActions), evidence, nullSnapshot(check.SnapshotID), check.Confidence, check.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert address check: %w", err)
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO decision_traces (address_check_id, snapshot_id, rule_ids, confidence, evidence_digest, generated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.UUID(trace.AddressCheckID), nullSnapshot(trace.SnapshotID), pq.Array(trace.RuleIDs),
			trace.Confidence, trace.EvidenceDigest, trace.GeneratedAt)
		if err != nil {
			return fmt.Errorf("insert decision trace: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, checkID id.CheckID) (*decision.AddressCheck, error) {
	var (
		c        decision.AddressCheck
		cID      uuid.UUID
		org      uuid.NullUUID
		snap     uuid.NullUUID
		city     string
		grade    string
		mode     string
		evidence []byte
	)
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, organization_id, address, city_code, result_grade, decision_mode, blocker_flags,
			required_actions, evidence, snapshot_id, confidence, created_at
		 FROM address_checks WHERE id = $1`, uuid.UUID(checkID)).
		Scan(&cID, &org, &c.Address, &city, &grade, &mode, pq.Array(&c.BlockerFlags),
			pq.Array(&c.RequiredActions), &evidence, &snap, &c.Confidence, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get address check: %w", err)
	}
	c.ID = id.CheckID(cID)
	c.CityCode = id.CityCode(city)
	c.ResultGrade = decision.Grade(grade)
	c.DecisionMode = decision.Mode(mode)
	if org.Valid {
		orgID := id.OrganizationID(org.UUID)
		c.OrganizationID = &orgID
	}
	if snap.Valid {
		snapID := id.SnapshotID(snap.UUID)
		c.SnapshotID = &snapID
	}
	if err := json.Unmarshal(evidence, &c.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	if c.BlockerFlags == nil {
		c.BlockerFlags = []string{}
	}
	if c.RequiredActions == nil {
		c.RequiredActions = []string{}
	}
	if c.Evidence == nil {
		c.Evidence = []decision.Evidence{}
	}
	return &c, nil
}

func (s *PostgresStore) Trace(ctx context.Context, checkID id.CheckID) (*decision.DecisionTrace, error) {
	var (
		t    decision.DecisionTrace
		cID  uuid.UUID
		snap uuid.NullUUID
	)
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT address_check_id, snapshot_id, rule_ids, confidence, evidence_digest, generated_at
		 FROM decision_traces WHERE address_check_id = $1`, uuid.UUID(checkID)).
		Scan(&cID, &snap, pq.Array(&t.RuleIDs), &t.Confidence, &t.EvidenceDigest, &t.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get decision trace: %w", err)
	}
	t.AddressCheckID = id.CheckID(cID)
	if snap.Valid {
		snapID := id.SnapshotID(snap.UUID)
		t.SnapshotID = &snapID
	}
	if t.RuleIDs == nil {
		t.RuleIDs = []string{}
	}
	return &t, nil
}

func (s *PostgresStore) CountSince(ctx context.Context, orgID id.OrganizationID, since time.Time) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM address_checks WHERE organization_id = $1 AND created_at >= $2`,
		uuid.UUID(orgID), since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count address checks: %w", err)
	}
	return n, nil
}

func nullOrg(orgID *id.OrganizationID) uuid.NullUUID {
	if orgID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*orgID), Valid: true}
}

func nullSnapshot(snapID *id.SnapshotID) uuid.NullUUID {
	if snapID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*snapID), Valid: true}
}
