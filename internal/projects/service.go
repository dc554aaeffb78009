// Package projects manages client projects and their access grants.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Activity actions recorded by this package.
const (
	ActionCreate = "CREATE_PROJECT"
	ActionGrant  = "GRANT_PROJECT_ACCESS"
	ActionRevoke = "REVOKE_PROJECT_ACCESS"
)

// RepositoryPort describes the store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProject(ctx context.Context, id string) (store.Project, error)
	ListProjectGrants(ctx context.Context, projectID string) ([]store.ProjectAccess, error)
}

// TxRepository exposes the transactional writes.
type TxRepository interface {
	GetCompany(ctx context.Context, id string) (store.Company, error)
	GetUser(ctx context.Context, id string) (store.User, error)
	GetProject(ctx context.Context, id string) (store.Project, error)
	CreateProject(ctx context.Context, p store.Project) (store.Project, error)
	CreateProjectGrant(ctx context.Context, g store.ProjectAccess) (store.ProjectAccess, error)
	DeleteProjectGrant(ctx context.Context, projectID, grantID string) error
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// Service orchestrates project flows.
type Service struct {
	repo   RepositoryPort
	engine *access.Engine
}

// NewService constructs the project service.
func NewService(repo RepositoryPort, engine *access.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

// CreateInput describes a new project.
type CreateInput struct {
	ClientCompanyID string
	Name            string
	Description     string
	Status          store.ProjectStatus
	Settings        map[string]any
	StartDate       *time.Time
	EndDate         *time.Time
}

// GrantInput names the grantee of a project grant.
type GrantInput struct {
	UserID      string
	CompanyID   string
	AccessLevel store.AccessLevel
}

func (s *Service) actor(ctx context.Context, actorID string) (access.Actor, error) {
	actor, err := s.engine.ResolveActor(ctx, actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return access.Actor{}, shared.ErrForbidden
	}
	return actor, err
}

func (s *Service) require(ctx context.Context, actorID string, action roles.Action) (access.Actor, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return access.Actor{}, err
	}
	if !roles.PermittedActions(actor.User.Role).Has(action) {
		return access.Actor{}, shared.ErrForbidden
	}
	return actor, nil
}

// List returns the projects visible to actorID, newest first.
func (s *Service) List(ctx context.Context, actorID string) ([]store.Project, error) {
	return s.engine.UserProjects(ctx, actorID)
}

// Get returns a project the actor may see. Visibility is checked before the
// lookup, so a caller outside the owner tenant cannot tell a missing project
// from a hidden one.
func (s *Service) Get(ctx context.Context, actorID, id string) (store.Project, error) {
	ok, err := s.engine.CanAccessProject(ctx, actorID, id)
	if err != nil {
		return store.Project{}, err
	}
	if !ok {
		return store.Project{}, shared.ErrForbidden
	}
	return s.repo.GetProject(ctx, id)
}

func validStatus(st store.ProjectStatus) bool {
	switch st {
	case store.ProjectDraft, store.ProjectActive, store.ProjectCompleted, store.ProjectArchived:
		return true
	}
	return false
}

// Create adds a project for a client company the actor can access.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (store.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return store.Project{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if in.Status == "" {
		in.Status = store.ProjectActive
	}
	if !validStatus(in.Status) {
		return store.Project{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, in.Status)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return store.Project{}, fmt.Errorf("%w: endDate is before startDate", shared.ErrValidation)
	}

	actor, err := s.require(ctx, actorID, roles.ActionProjectCreate)
	if err != nil {
		return store.Project{}, err
	}
	ok, err := s.engine.CanActorAccessCompany(ctx, actor, in.ClientCompanyID)
	if err != nil {
		return store.Project{}, err
	}
	if !ok {
		return store.Project{}, fmt.Errorf("%w: client company is not accessible", shared.ErrForbidden)
	}

	var created store.Project
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		company, err := tx.GetCompany(ctx, in.ClientCompanyID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: client company does not exist", shared.ErrValidation)
			}
			return err
		}
		if company.Type != store.CompanyClient {
			return fmt.Errorf("%w: projects belong to client companies", shared.ErrValidation)
		}
		created, err = tx.CreateProject(ctx, store.Project{
			ClientCompanyID: company.ID,
			Name:            in.Name,
			Description:     in.Description,
			Status:          in.Status,
			CreatedBy:       actorID,
			Settings:        in.Settings,
			StartDate:       in.StartDate,
			EndDate:         in.EndDate,
		})
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionCreate, "project", created.ID,
			map[string]any{"name": created.Name, "clientCompanyId": created.ClientCompanyID}))
	})
	if err != nil {
		return store.Project{}, err
	}
	return created, nil
}

// Grants lists the access grants on a project.
func (s *Service) Grants(ctx context.Context, actorID, projectID string) ([]store.ProjectAccess, error) {
	if _, err := s.require(ctx, actorID, roles.ActionProjectGrant); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	grants, err := s.repo.ListProjectGrants(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []store.ProjectAccess{}
	}
	return grants, nil
}

// Grant extends project visibility to one user or one company.
func (s *Service) Grant(ctx context.Context, actorID, projectID string, in GrantInput) (store.ProjectAccess, error) {
	if (in.UserID == "") == (in.CompanyID == "") {
		return store.ProjectAccess{}, fmt.Errorf("%w: name exactly one of userId or companyId", shared.ErrValidation)
	}
	switch in.AccessLevel {
	case "":
		in.AccessLevel = store.AccessView
	case store.AccessView, store.AccessEdit:
	default:
		return store.ProjectAccess{}, fmt.Errorf("%w: unknown access level %q", shared.ErrValidation, in.AccessLevel)
	}
	if _, err := s.require(ctx, actorID, roles.ActionProjectGrant); err != nil {
		return store.ProjectAccess{}, err
	}

	var created store.ProjectAccess
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		grant := store.ProjectAccess{ProjectID: projectID, AccessLevel: in.AccessLevel, GrantedBy: actorID}
		details := map[string]any{"accessLevel": string(in.AccessLevel)}
		if in.UserID != "" {
			if _, err := tx.GetUser(ctx, in.UserID); err != nil {
				return granteeError(err, "user")
			}
			grant.UserID = &in.UserID
			details["userId"] = in.UserID
		} else {
			if _, err := tx.GetCompany(ctx, in.CompanyID); err != nil {
				return granteeError(err, "company")
			}
			grant.CompanyID = &in.CompanyID
			details["companyId"] = in.CompanyID
		}
		var err error
		created, err = tx.CreateProjectGrant(ctx, grant)
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionGrant, "project", projectID, details))
	})
	if err != nil {
		return store.ProjectAccess{}, err
	}
	return created, nil
}

func granteeError(err error, what string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: grantee %s does not exist", shared.ErrValidation, what)
	}
	return err
}

// Revoke removes a grant from a project.
func (s *Service) Revoke(ctx context.Context, actorID, projectID, grantID string) error {
	if _, err := s.require(ctx, actorID, roles.ActionProjectGrant); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteProjectGrant(ctx, projectID, grantID); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionRevoke, "project", projectID,
			map[string]any{"grantId": grantID}))
	})
}
