package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
)

const userColumns = `id, company_id, email, COALESCE(password_hash, ''), first_name, last_name, role, tags, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.Tags, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	parsed, err := roles.Parse(role)
	if err != nil {
		return User{}, err
	}
	u.Role = parsed
	return u, nil
}

func collectUsers(rows pgx.Rows, err error) ([]User, error) {
	if err != nil {
		return nil, mapError(err, "users")
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err, "users")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "users")
	}
	return out, nil
}

// GetUser fetches a user by id.
func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, mapError(err, "user")
}

// GetUserByEmail fetches a user by case-folded email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
	return u, mapError(err, "user")
}

// ListUsers returns every user ordered by email.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	return collectUsers(q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`))
}

// ListUsersByCompany returns the users of one company.
func (q *Queries) ListUsersByCompany(ctx context.Context, companyID string) ([]User, error) {
	return collectUsers(q.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY email`, companyID))
}

// CreateUser inserts u. The email is case-folded and an empty hash is stored as NULL.
func (q *Queries) CreateUser(ctx context.Context, u User) (User, error) {
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("%w: role is required", shared.ErrValidation)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Tags == nil {
		u.Tags = []string{}
	}
	now := time.Now().UTC()
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (id, company_id, email, password_hash, first_name, last_name, role, tags, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+userColumns,
		u.ID, u.CompanyID, NormalizeEmail(u.Email), nullable(u.PasswordHash), u.FirstName, u.LastName, u.Role.String(), u.Tags, u.IsActive, now)
	created, err := scanUser(row)
	return created, mapError(err, "user")
}

// UserPatch lists the mutable user fields; nil means unchanged.
type UserPatch struct {
	CompanyID *string
	Email     *string
	FirstName *string
	LastName  *string
	Role      *roles.Role
	Tags      []string
	IsActive  *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.CompanyID == nil && p.Email == nil && p.FirstName == nil && p.LastName == nil &&
		p.Role == nil && p.Tags == nil && p.IsActive == nil
}

// UpdateUser applies patch and returns the updated row.
func (q *Queries) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.CompanyID != nil {
		add("company_id", *patch.CompanyID)
	}
	if patch.Email != nil {
		add("email", NormalizeEmail(*patch.Email))
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.Role != nil {
		add("role", patch.Role.String())
	}
	if patch.Tags != nil {
		add("tags", patch.Tags)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if len(sets) == 0 {
		return q.GetUser(ctx, id)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(q.db.QueryRow(ctx, query, args...))
	return u, mapError(err, "user")
}

// SetPasswordHash replaces the stored credential hash.
func (q *Queries) SetPasswordHash(ctx context.Context, id, hash string) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return mapError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", shared.ErrNotFound)
	}
	return nil
}

// TouchLastLogin stamps last_login.
func (q *Queries) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	return mapError(err, "user")
}

// DeleteUser hard-deletes a user.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", shared.ErrNotFound)
	}
	return nil
}
