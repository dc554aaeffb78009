package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const companyColumns = `id, type, parent_id, name, domain, logo_url, primary_color, settings, created_at, updated_at`

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Type, &c.ParentID, &c.Name, &c.Domain, &c.LogoURL, &c.PrimaryColor, &c.Settings, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collectCompanies(rows pgx.Rows, err error) ([]Company, error) {
	if err != nil {
		return nil, mapError(err, "companies")
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, mapError(err, "companies")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "companies")
	}
	return out, nil
}

// GetCompany fetches a company by id.
func (q *Queries) GetCompany(ctx context.Context, id string) (Company, error) {
	c, err := scanCompany(q.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	return c, mapError(err, "company")
}

// ListCompaniesByType returns companies of one type ordered by name.
func (q *Queries) ListCompaniesByType(ctx context.Context, typ CompanyType) ([]Company, error) {
	return collectCompanies(q.db.Query(ctx, `SELECT `+companyColumns+` FROM companies WHERE type = $1 ORDER BY name, id`, typ))
}

// ListCompaniesByParent returns the direct children of parentID.
func (q *Queries) ListCompaniesByParent(ctx context.Context, parentID string) ([]Company, error) {
	return collectCompanies(q.db.Query(ctx, `SELECT `+companyColumns+` FROM companies WHERE parent_id = $1 ORDER BY name, id`, parentID))
}

// FirstCompanyOfType returns the oldest company of typ.
func (q *Queries) FirstCompanyOfType(ctx context.Context, typ CompanyType) (Company, error) {
	c, err := scanCompany(q.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE type = $1 ORDER BY created_at, id LIMIT 1`, typ))
	return c, mapError(err, "company")
}

// CountCompaniesByType counts companies of typ.
func (q *Queries) CountCompaniesByType(ctx context.Context, typ CompanyType) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM companies WHERE type = $1`, typ).Scan(&n)
	return n, mapError(err, "companies")
}

// CreateCompany inserts c, assigning id and timestamps.
func (q *Queries) CreateCompany(ctx context.Context, c Company) (Company, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Settings == nil {
		c.Settings = map[string]any{}
	}
	now := time.Now().UTC()
	row := q.db.QueryRow(ctx, `
		INSERT INTO companies (id, type, parent_id, name, domain, logo_url, primary_color, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+companyColumns,
		c.ID, c.Type, c.ParentID, c.Name, c.Domain, c.LogoURL, c.PrimaryColor, c.Settings, now)
	created, err := scanCompany(row)
	return created, mapError(err, "company")
}
