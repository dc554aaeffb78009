package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clientportal/portal/internal/shared"
)

const projectColumns = `p.id, p.client_company_id, p.name, p.description, p.status, p.created_by, p.settings, p.start_date, p.end_date, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.ClientCompanyID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &p.Settings, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectProjects(rows pgx.Rows, err error) ([]Project, error) {
	if err != nil {
		return nil, mapError(err, "projects")
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapError(err, "projects")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "projects")
	}
	return out, nil
}

// GetProject fetches a project by id.
func (q *Queries) GetProject(ctx context.Context, id string) (Project, error) {
	p, err := scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
	return p, mapError(err, "project")
}

// ListProjects returns every project, newest first.
func (q *Queries) ListProjects(ctx context.Context) ([]Project, error) {
	return collectProjects(q.db.Query(ctx, `SELECT `+projectColumns+` FROM projects p ORDER BY p.created_at DESC, p.id`))
}

// ListProjectsByClient returns the projects owned by a client company, newest first.
func (q *Queries) ListProjectsByClient(ctx context.Context, clientCompanyID string) ([]Project, error) {
	return collectProjects(q.db.Query(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.client_company_id = $1 ORDER BY p.created_at DESC, p.id`, clientCompanyID))
}

// ListGrantedProjects returns projects reachable through a grant to userID or
// to companyID, newest first. A project granted both ways appears once.
func (q *Queries) ListGrantedProjects(ctx context.Context, userID, companyID string) ([]Project, error) {
	return collectProjects(q.db.Query(ctx, `
		SELECT `+projectColumns+` FROM (
			SELECT DISTINCT ON (p.id) p.*
			FROM projects p
			JOIN project_access pa ON pa.project_id = p.id
			WHERE pa.user_id = $1 OR pa.company_id = $2
			ORDER BY p.id
		) p
		ORDER BY p.created_at DESC, p.id`, userID, companyID))
}

// HasProjectGrant reports whether any grant on projectID names userID or companyID.
func (q *Queries) HasProjectGrant(ctx context.Context, projectID, userID, companyID string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_access
			WHERE project_id = $1 AND (user_id = $2 OR company_id = $3)
		)`, projectID, userID, companyID).Scan(&ok)
	return ok, mapError(err, "project access")
}

// CreateProject inserts p.
func (q *Queries) CreateProject(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if p.Settings == nil {
		p.Settings = map[string]any{}
	}
	now := time.Now().UTC()
	row := q.db.QueryRow(ctx, `
		WITH p AS (
			INSERT INTO projects (id, client_company_id, name, description, status, created_by, settings, start_date, end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			RETURNING *
		)
		SELECT `+projectColumns+` FROM p`,
		p.ID, p.ClientCompanyID, p.Name, p.Description, p.Status, p.CreatedBy, p.Settings, p.StartDate, p.EndDate, now)
	created, err := scanProject(row)
	return created, mapError(err, "project")
}

const grantColumns = `id, project_id, company_id, user_id, access_level, granted_by, granted_at`

func scanGrant(row pgx.Row) (ProjectAccess, error) {
	var g ProjectAccess
	err := row.Scan(&g.ID, &g.ProjectID, &g.CompanyID, &g.UserID, &g.AccessLevel, &g.GrantedBy, &g.GrantedAt)
	return g, err
}

// ListProjectGrants returns the grants on a project, oldest first.
func (q *Queries) ListProjectGrants(ctx context.Context, projectID string) ([]ProjectAccess, error) {
	rows, err := q.db.Query(ctx, `SELECT `+grantColumns+` FROM project_access WHERE project_id = $1 ORDER BY granted_at, id`, projectID)
	if err != nil {
		return nil, mapError(err, "project access")
	}
	defer rows.Close()
	var out []ProjectAccess
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, mapError(err, "project access")
		}
		out = append(out, g)
	}
	return out, mapError(rows.Err(), "project access")
}

// CreateProjectGrant inserts g. Exactly one of CompanyID and UserID must be set.
func (q *Queries) CreateProjectGrant(ctx context.Context, g ProjectAccess) (ProjectAccess, error) {
	if (g.CompanyID == nil) == (g.UserID == nil) {
		return ProjectAccess{}, fmt.Errorf("%w: grant must name exactly one of user or company", shared.ErrValidation)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.AccessLevel == "" {
		g.AccessLevel = AccessView
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO project_access (id, project_id, company_id, user_id, access_level, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+grantColumns,
		g.ID, g.ProjectID, g.CompanyID, g.UserID, g.AccessLevel, g.GrantedBy, time.Now().UTC())
	created, err := scanGrant(row)
	return created, mapError(err, "project access")
}

// DeleteProjectGrant removes one grant from a project.
func (q *Queries) DeleteProjectGrant(ctx context.Context, projectID, grantID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM project_access WHERE id = $1 AND project_id = $2`, grantID, projectID)
	if err != nil {
		return mapError(err, "project access")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project access", shared.ErrNotFound)
	}
	return nil
}
