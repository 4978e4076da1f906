package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"permitpulse/internal/organization"
	id "permitpulse/pkg/domain"
	"permitpulse/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore persists organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, name, slug, billing_email, plan, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, org *organization.Organization) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (`+orgColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(org.ID), org.Name, org.Slug, org.BillingEmail, string(org.Plan), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	return s.findOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug)
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error) {
	return s.findOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, uuid.UUID(orgID))
}

func (s *PostgresStore) List(ctx context.Context) ([]*organization.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []*organization.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*organization.Organization, error) {
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return org, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row scanner) (*organization.Organization, error) {
	var (
		org   organization.Organization
		orgID uuid.UUID
		plan  string
	)
	if err := row.Scan(&orgID, &org.Name, &org.Slug, &org.BillingEmail, &plan, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.ID = id.OrganizationID(orgID)
	org.Plan = organization.Plan(plan)
	return &org, nil
}
