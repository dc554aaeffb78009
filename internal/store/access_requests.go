package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clientportal/portal/internal/roles"
)

const accessRequestColumns = `id, requester_email, requester_name, company_id, requested_role, message, status, reviewed_by, reviewed_at, created_at`

func scanAccessRequest(row pgx.Row) (AccessRequest, error) {
	var (
		r    AccessRequest
		role string
	)
	if err := row.Scan(&r.ID, &r.RequesterEmail, &r.RequesterName, &r.CompanyID, &role, &r.Message, &r.Status, &r.ReviewedBy, &r.ReviewedAt, &r.CreatedAt); err != nil {
		return AccessRequest{}, err
	}
	parsed, err := roles.Parse(role)
	if err != nil {
		return AccessRequest{}, err
	}
	r.RequestedRole = parsed
	return r, nil
}

// GetAccessRequest fetches a request by id.
func (q *Queries) GetAccessRequest(ctx context.Context, id string) (AccessRequest, error) {
	r, err := scanAccessRequest(q.db.QueryRow(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE id = $1`, id))
	return r, mapError(err, "access request")
}

// LockAccessRequest fetches a request and holds a row lock until the
// surrounding transaction ends.
func (q *Queries) LockAccessRequest(ctx context.Context, id string) (AccessRequest, error) {
	r, err := scanAccessRequest(q.db.QueryRow(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE id = $1 FOR UPDATE`, id))
	return r, mapError(err, "access request")
}

// ListPendingAccessRequests returns pending requests, oldest first.
func (q *Queries) ListPendingAccessRequests(ctx context.Context) ([]AccessRequest, error) {
	rows, err := q.db.Query(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE status = $1 ORDER BY created_at, id`, RequestPending)
	if err != nil {
		return nil, mapError(err, "access requests")
	}
	defer rows.Close()
	var out []AccessRequest
	for rows.Next() {
		r, err := scanAccessRequest(rows)
		if err != nil {
			return nil, mapError(err, "access requests")
		}
		out = append(out, r)
	}
	return out, mapError(rows.Err(), "access requests")
}

// CountPendingAccessRequests counts pending requests.
func (q *Queries) CountPendingAccessRequests(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM access_requests WHERE status = $1`, RequestPending).Scan(&n)
	return n, mapError(err, "access requests")
}

// CreateAccessRequest inserts r as pending.
func (q *Queries) CreateAccessRequest(ctx context.Context, r AccessRequest) (AccessRequest, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO access_requests (id, requester_email, requester_name, company_id, requested_role, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+accessRequestColumns,
		r.ID, NormalizeEmail(r.RequesterEmail), r.RequesterName, r.CompanyID, r.RequestedRole.String(), r.Message, RequestPending, time.Now().UTC())
	created, err := scanAccessRequest(row)
	return created, mapError(err, "access request")
}

// ResolveAccessRequest records the review outcome.
func (q *Queries) ResolveAccessRequest(ctx context.Context, id string, status RequestStatus, reviewerID string, at time.Time) (AccessRequest, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE access_requests SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1
		RETURNING `+accessRequestColumns, id, status, reviewerID, at.UTC())
	r, err := scanAccessRequest(row)
	return r, mapError(err, "access request")
}
