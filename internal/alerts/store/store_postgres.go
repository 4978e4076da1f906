package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"permitpulse/internal/alerts"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateBatch inserts all alerts in one transaction.
func (s *PostgresStore) CreateBatch(ctx context.Context, batch []*alerts.Alert) error {
	if len(batch) == 0 {
		return nil
	}
	return tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		sqlTx, _ := tx.From(ctx)
		stmt, err := sqlTx.PrepareContext(ctx,
			`INSERT INTO alerts (id, organization_id, city_code, change_type, impacted_listing_ids, severity, message, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
		if err != nil {
			return fmt.Errorf("prepare alert insert: %w", err)
		}
		defer stmt.Close()
		for _, a := range batch {
			if _, err := stmt.ExecContext(ctx, uuid.UUID(a.ID), uuid.UUID(a.OrganizationID), string(a.CityCode),
				a.ChangeType, pq.Array(a.ImpactedListingIDs), a.Severity, a.Message, a.Status, a.CreatedAt); err != nil {
				return fmt.Errorf("insert alert: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) List(ctx context.Context, orgID id.OrganizationID, limit int) ([]*alerts.Alert, error) {
	query := `SELECT id, organization_id, city_code, change_type, impacted_listing_ids, severity, message, status, created_at
		FROM alerts`
	args := []any{}
	if !orgID.IsNil() {
		args = append(args, uuid.UUID(orgID))
		query += ` WHERE organization_id = $1`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*alerts.Alert
	for rows.Next() {
		var (
			a     alerts.Alert
			aID   uuid.UUID
			org   uuid.NullUUID
			city  string
			items []string
		)
		if err := rows.Scan(&aID, &org, &city, &a.ChangeType, pq.Array(&items), &a.Severity, &a.Message,
			&a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.ID = id.AlertID(aID)
		if org.Valid {
			a.OrganizationID = id.OrganizationID(org.UUID)
		}
		a.CityCode = id.CityCode(city)
		a.ImpactedListingIDs = append([]string{}, items...)
		out = append(out, &a)
	}
	return out, rows.Err()
}
