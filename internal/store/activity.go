package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clientportal/portal/internal/shared"
)

// Activity builds an entry for a mutation, stamping the client metadata
// carried by ctx.
func Activity(ctx context.Context, userID, action, resourceType, resourceID string, details map[string]any) ActivityEntry {
	meta := shared.RequestMetaFromContext(ctx)
	return ActivityEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
	}
}

// InsertActivity appends one entry to the activity trail.
func (q *Queries) InsertActivity(ctx context.Context, e ActivityEntry) error {
	if e.UserID == "" || e.Action == "" {
		return fmt.Errorf("%w: activity requires user and action", shared.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO activity_log (id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.Action, nullable(e.ResourceType), nullable(e.ResourceID), e.Details, nullable(e.IPAddress), nullable(e.UserAgent), e.CreatedAt)
	return mapError(err, "activity")
}

// ActivityFilter narrows an activity listing.
type ActivityFilter struct {
	UserID       string
	ResourceType string
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

func (f ActivityFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListActivity returns entries newest first.
func (q *Queries) ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error) {
	where, args := f.where()
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT id, user_id, action, COALESCE(resource_type, ''), COALESCE(resource_id, ''), details,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM activity_log%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "activity")
	}
	defer rows.Close()
	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, mapError(err, "activity")
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err(), "activity")
}

// CountActivity counts entries matching f.
func (q *Queries) CountActivity(ctx context.Context, f ActivityFilter) (int, error) {
	where, args := f.where()
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity_log`+where, args...).Scan(&n)
	return n, mapError(err, "activity")
}
