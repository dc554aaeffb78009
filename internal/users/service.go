// Package users manages portal accounts.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Activity actions recorded by this package.
const (
	ActionCreate = "CREATE_USER"
	ActionInvite = "INVITE_USER"
	ActionUpdate = "UPDATE_USER"
	ActionDelete = "DELETE_USER"
)

var validate = validator.New()

// MinPasswordLength matches the self-registration rule.
const MinPasswordLength = 6

// RepositoryPort describes the store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetUser(ctx context.Context, id string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	ListUsersByCompany(ctx context.Context, companyID string) ([]store.User, error)
}

// TxRepository exposes the transactional writes.
type TxRepository interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetCompany(ctx context.Context, id string) (store.Company, error)
	CreateUser(ctx context.Context, u store.User) (store.User, error)
	UpdateUser(ctx context.Context, id string, patch store.UserPatch) (store.User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateAccessRequest(ctx context.Context, r store.AccessRequest) (store.AccessRequest, error)
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// Notifier sends the invitation email.
type Notifier interface {
	SendInvitation(ctx context.Context, to, invitedBy string) error
}

// Service orchestrates user management.
type Service struct {
	repo       RepositoryPort
	engine     *access.Engine
	notifier   Notifier
	logger     *slog.Logger
	bcryptCost int
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier enables invitation emails.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine *access.Engine, opts ...Option) *Service {
	s := &Service{repo: repo, engine: engine, logger: slog.Default(), bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new account.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	CompanyID string
	Role      roles.Role
	Tags      []string
}

// InviteInput describes an invitation.
type InviteInput struct {
	Email     string
	CompanyID string
	Role      roles.Role
}

func (s *Service) actor(ctx context.Context, actorID string) (store.User, error) {
	actor, err := s.repo.GetUser(ctx, actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return store.User{}, shared.ErrForbidden
	}
	return actor, err
}

// List returns the users the actor may browse. Roles that can list every
// user see all accounts, except that only owners see owners. Everyone else
// sees their own company. A company filter is access-checked.
func (s *Service) List(ctx context.Context, actorID, companyID string) ([]store.User, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var list []store.User
	switch {
	case companyID != "":
		ok, err := s.engine.CanAccessCompany(ctx, actorID, companyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.ErrForbidden
		}
		list, err = s.repo.ListUsersByCompany(ctx, companyID)
		if err != nil {
			return nil, err
		}
	case roles.PermittedActions(actor.Role).Has(roles.ActionUserListAll):
		list, err = s.repo.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
	default:
		list, err = s.repo.ListUsersByCompany(ctx, actor.CompanyID)
		if err != nil {
			return nil, err
		}
	}
	out := make([]store.User, 0, len(list))
	for _, u := range list {
		if u.Role == roles.Owner && actor.Role != roles.Owner {
			continue
		}
		out = append(out, u.Public())
	}
	return out, nil
}

// authorizeAssignment checks that actor may place a user with role into
// companyID.
func (s *Service) authorizeAssignment(ctx context.Context, actor store.User, companyID string, role roles.Role) error {
	if !roles.PermittedActions(actor.Role).Has(roles.ActionUserManage) {
		return shared.ErrForbidden
	}
	if !roles.CanManage(actor.Role, role) {
		return fmt.Errorf("%w: cannot assign role %s", shared.ErrForbidden, role)
	}
	ok, err := s.engine.CanAccessCompany(ctx, actor.ID, companyID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: company is not accessible", shared.ErrForbidden)
	}
	return nil
}

func companyExists(ctx context.Context, tx TxRepository, id string) error {
	if _, err := tx.GetCompany(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: company does not exist", shared.ErrValidation)
		}
		return err
	}
	return nil
}

// Create adds an account on behalf of actorID.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (store.User, error) {
	if !in.Role.Valid() {
		return store.User{}, fmt.Errorf("%w: role is required", shared.ErrValidation)
	}
	if in.Password != "" && len(in.Password) < MinPasswordLength {
		return store.User{}, fmt.Errorf("%w: password must be at least %d characters", shared.ErrValidation, MinPasswordLength)
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.User{}, err
	}
	if err := s.authorizeAssignment(ctx, actor, in.CompanyID, in.Role); err != nil {
		return store.User{}, err
	}

	user := store.User{
		CompanyID: in.CompanyID,
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
		Tags:      in.Tags,
		IsActive:  true,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			return store.User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	var created store.User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := companyExists(ctx, tx, in.CompanyID); err != nil {
			return err
		}
		var err error
		created, err = tx.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionCreate, "user", created.ID,
			map[string]any{"email": created.Email, "role": created.Role.String()}))
	})
	if err != nil {
		return store.User{}, err
	}
	return created.Public(), nil
}

// Invite records a pending access request for email and sends the
// invitation. Mail failures are logged and do not undo the request.
func (s *Service) Invite(ctx context.Context, actorID string, in InviteInput) (store.AccessRequest, error) {
	email := store.NormalizeEmail(in.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return store.AccessRequest{}, fmt.Errorf("%w: a valid email is required", shared.ErrValidation)
	}
	if !in.Role.Valid() {
		return store.AccessRequest{}, fmt.Errorf("%w: role is required", shared.ErrValidation)
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.AccessRequest{}, err
	}
	if err := s.authorizeAssignment(ctx, actor, in.CompanyID, in.Role); err != nil {
		return store.AccessRequest{}, err
	}

	var created store.AccessRequest
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return fmt.Errorf("%w: user already exists", shared.ErrConflict)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if err := companyExists(ctx, tx, in.CompanyID); err != nil {
			return err
		}
		companyID := in.CompanyID
		var err error
		created, err = tx.CreateAccessRequest(ctx, store.AccessRequest{
			RequesterEmail: email,
			RequesterName:  strings.SplitN(email, "@", 2)[0],
			CompanyID:      &companyID,
			RequestedRole:  in.Role,
			Message:        fmt.Sprintf("Invited by %s", actor.Email),
		})
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionInvite, "access_request", created.ID,
			map[string]any{"email": email, "role": in.Role.String()}))
	})
	if err != nil {
		return store.AccessRequest{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.SendInvitation(ctx, email, displayName(actor)); err != nil {
			s.logger.Warn("send invitation", slog.String("request_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

func displayName(u store.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Update applies patch to targetID. Role and company changes are checked
// against what the actor may assign.
func (s *Service) Update(ctx context.Context, actorID, targetID string, patch store.UserPatch) (store.User, error) {
	ok, err := s.engine.CanManageUser(ctx, actorID, targetID, roles.Unknown)
	if err != nil {
		return store.User{}, err
	}
	if !ok {
		return store.User{}, fmt.Errorf("%w: cannot update this user", shared.ErrForbidden)
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.User{}, err
	}
	if patch.Role != nil && !roles.CanManage(actor.Role, *patch.Role) {
		return store.User{}, fmt.Errorf("%w: cannot assign role %s", shared.ErrForbidden, *patch.Role)
	}
	if patch.CompanyID != nil {
		ok, err := s.engine.CanAccessCompany(ctx, actorID, *patch.CompanyID)
		if err != nil {
			return store.User{}, err
		}
		if !ok {
			return store.User{}, fmt.Errorf("%w: company is not accessible", shared.ErrForbidden)
		}
	}

	var updated store.User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if patch.CompanyID != nil {
			if err := companyExists(ctx, tx, *patch.CompanyID); err != nil {
				return err
			}
		}
		var err error
		updated, err = tx.UpdateUser(ctx, targetID, patch)
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionUpdate, "user", targetID, patchDetails(patch)))
	})
	if err != nil {
		return store.User{}, err
	}
	return updated.Public(), nil
}

func patchDetails(p store.UserPatch) map[string]any {
	var fields []string
	if p.CompanyID != nil {
		fields = append(fields, "companyId")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.FirstName != nil {
		fields = append(fields, "firstName")
	}
	if p.LastName != nil {
		fields = append(fields, "lastName")
	}
	if p.Role != nil {
		fields = append(fields, "role")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	if p.IsActive != nil {
		fields = append(fields, "isActive")
	}
	return map[string]any{"fields": fields}
}

// Delete removes targetID. Nobody may delete their own account.
func (s *Service) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return fmt.Errorf("%w: cannot delete your own account", shared.ErrValidation)
	}
	ok, err := s.engine.CanManageUser(ctx, actorID, targetID, roles.Unknown)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot delete this user", shared.ErrForbidden)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		target, err := tx.GetUser(ctx, targetID)
		if err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, targetID); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionDelete, "user", targetID,
			map[string]any{"email": target.Email}))
	})
}
