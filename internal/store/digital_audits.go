package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, client_company_id, title, html_content, status, access_type, access_expires_at, created_by, published_at, created_at, updated_at`

func scanAudit(row pgx.Row) (DigitalAudit, error) {
	var a DigitalAudit
	err := row.Scan(&a.ID, &a.ClientCompanyID, &a.Title, &a.HTMLContent, &a.Status, &a.AccessType, &a.AccessExpiresAt, &a.CreatedBy, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetDigitalAudit fetches an audit by id.
func (q *Queries) GetDigitalAudit(ctx context.Context, id string) (DigitalAudit, error) {
	a, err := scanAudit(q.db.QueryRow(ctx, `SELECT `+auditColumns+` FROM digital_audits WHERE id = $1`, id))
	return a, mapError(err, "digital audit")
}

// ListAuditsByClients returns the audits of the given client companies, newest first.
func (q *Queries) ListAuditsByClients(ctx context.Context, clientCompanyIDs []string) ([]DigitalAudit, error) {
	rows, err := q.db.Query(ctx, `SELECT `+auditColumns+` FROM digital_audits WHERE client_company_id = ANY($1) ORDER BY created_at DESC, id`, clientCompanyIDs)
	if err != nil {
		return nil, mapError(err, "digital audits")
	}
	defer rows.Close()
	var out []DigitalAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, mapError(err, "digital audits")
		}
		out = append(out, a)
	}
	return out, mapError(rows.Err(), "digital audits")
}

// CountPublishedAudits counts published audits among the given client companies.
func (q *Queries) CountPublishedAudits(ctx context.Context, clientCompanyIDs []string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM digital_audits WHERE client_company_id = ANY($1) AND status = $2`, clientCompanyIDs, AuditPublished).Scan(&n)
	return n, mapError(err, "digital audits")
}

// CreateDigitalAudit inserts a.
func (q *Queries) CreateDigitalAudit(ctx context.Context, a DigitalAudit) (DigitalAudit, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AuditDraft
	}
	if a.AccessType == "" {
		a.AccessType = AuditPermanent
	}
	now := time.Now().UTC()
	row := q.db.QueryRow(ctx, `
		INSERT INTO digital_audits (id, client_company_id, title, html_content, status, access_type, access_expires_at, created_by, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+auditColumns,
		a.ID, a.ClientCompanyID, a.Title, a.HTMLContent, a.Status, a.AccessType, a.AccessExpiresAt, a.CreatedBy, a.PublishedAt, now)
	created, err := scanAudit(row)
	return created, mapError(err, "digital audit")
}

// PublishDigitalAudit flips an audit to published and stamps published_at.
func (q *Queries) PublishDigitalAudit(ctx context.Context, id string, at time.Time) (DigitalAudit, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE digital_audits SET status = $2, published_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING `+auditColumns, id, AuditPublished, at.UTC())
	a, err := scanAudit(row)
	return a, mapError(err, "digital audit")
}
