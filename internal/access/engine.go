// Package access decides whether an actor may see or mutate tenant resources.
//
// Every decision is total: a lookup miss is a deny with a nil error, and an
// infrastructure failure is a deny that also returns the error so callers can
// tell the two apart.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Check names used for decision metrics.
const (
	CheckCompany    = "company"
	CheckProject    = "project"
	CheckManageUser = "manage_user"
)

// Directory is the read-only store surface the engine needs.
type Directory interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	GetCompany(ctx context.Context, id string) (store.Company, error)
	GetProject(ctx context.Context, id string) (store.Project, error)
	HasProjectGrant(ctx context.Context, projectID, userID, companyID string) (bool, error)
	ListProjects(ctx context.Context) ([]store.Project, error)
	ListProjectsByClient(ctx context.Context, clientCompanyID string) ([]store.Project, error)
	ListGrantedProjects(ctx context.Context, userID, companyID string) ([]store.Project, error)
}

// Observer receives one call per decision.
type Observer interface {
	ObserveDecision(check string, allowed bool)
}

// Engine evaluates access decisions against the directory.
type Engine struct {
	dir      Directory
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches a decision observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine constructs an Engine.
func NewEngine(dir Directory, opts ...Option) *Engine {
	e := &Engine{dir: dir}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Actor is a resolved user together with their company.
type Actor struct {
	User    store.User
	Company store.Company
}

// IsOwnerTenant reports whether the actor belongs to the owner company.
func (a Actor) IsOwnerTenant() bool {
	return a.Company.Type == store.CompanyOwner
}

// ResolveActor loads the user and their company. A miss on either returns
// shared.ErrNotFound.
func (e *Engine) ResolveActor(ctx context.Context, actorID string) (Actor, error) {
	if actorID == "" {
		return Actor{}, fmt.Errorf("%w: actor", shared.ErrNotFound)
	}
	user, err := e.dir.GetUser(ctx, actorID)
	if err != nil {
		return Actor{}, err
	}
	company, err := e.dir.GetCompany(ctx, user.CompanyID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{User: user, Company: company}, nil
}

func (e *Engine) observe(check string, allowed bool, err error) (bool, error) {
	if err != nil {
		allowed = false
	}
	if e.observer != nil {
		e.observer.ObserveDecision(check, allowed)
	}
	return allowed, err
}

// miss turns a not-found lookup into a plain deny.
func miss(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

// CanAccessCompany reports whether actorID may see targetCompanyID. Owner
// tenants see everything, others see their own company and its direct children.
func (e *Engine) CanAccessCompany(ctx context.Context, actorID, targetCompanyID string) (bool, error) {
	actor, err := e.ResolveActor(ctx, actorID)
	if err != nil {
		return e.observe(CheckCompany, false, miss(err))
	}
	allowed, err := e.companyVisible(ctx, actor, targetCompanyID)
	return e.observe(CheckCompany, allowed, err)
}

// CanActorAccessCompany is CanAccessCompany for an already resolved actor.
func (e *Engine) CanActorAccessCompany(ctx context.Context, actor Actor, targetCompanyID string) (bool, error) {
	allowed, err := e.companyVisible(ctx, actor, targetCompanyID)
	return e.observe(CheckCompany, allowed, err)
}

func (e *Engine) companyVisible(ctx context.Context, actor Actor, targetCompanyID string) (bool, error) {
	if actor.IsOwnerTenant() {
		return true, nil
	}
	if targetCompanyID == "" {
		return false, nil
	}
	if targetCompanyID == actor.User.CompanyID {
		return true, nil
	}
	target, err := e.dir.GetCompany(ctx, targetCompanyID)
	if err != nil {
		return false, miss(err)
	}
	return target.ParentID != nil && *target.ParentID == actor.User.CompanyID, nil
}

// CanAccessProject reports whether actorID may see projectID.
func (e *Engine) CanAccessProject(ctx context.Context, actorID, projectID string) (bool, error) {
	actor, err := e.ResolveActor(ctx, actorID)
	if err != nil {
		return e.observe(CheckProject, false, miss(err))
	}
	allowed, err := e.projectVisible(ctx, actor, projectID)
	return e.observe(CheckProject, allowed, err)
}

func (e *Engine) projectVisible(ctx context.Context, actor Actor, projectID string) (bool, error) {
	if actor.IsOwnerTenant() {
		return true, nil
	}
	project, err := e.dir.GetProject(ctx, projectID)
	if err != nil {
		return false, miss(err)
	}
	if actor.Company.Type == store.CompanyClient && project.ClientCompanyID == actor.User.CompanyID {
		return true, nil
	}
	granted, err := e.dir.HasProjectGrant(ctx, project.ID, actor.User.ID, actor.User.CompanyID)
	if err != nil {
		return false, err
	}
	return granted, nil
}

// UserProjects lists the projects actorID can see, newest first. Each project
// appears once even when it is reachable through several grants.
func (e *Engine) UserProjects(ctx context.Context, actorID string) ([]store.Project, error) {
	actor, err := e.ResolveActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return []store.Project{}, nil
		}
		return nil, err
	}
	var projects []store.Project
	switch actor.Company.Type {
	case store.CompanyOwner:
		projects, err = e.dir.ListProjects(ctx)
	case store.CompanyClient:
		projects, err = e.dir.ListProjectsByClient(ctx, actor.User.CompanyID)
	default:
		projects, err = e.dir.ListGrantedProjects(ctx, actor.User.ID, actor.User.CompanyID)
	}
	if err != nil {
		return nil, err
	}
	return dedupeProjects(projects), nil
}

func dedupeProjects(in []store.Project) []store.Project {
	seen := make(map[string]struct{}, len(in))
	out := make([]store.Project, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// CanManageUser reports whether actorID may manage a user. When targetUserID
// is set the target's stored role is used and targetRole is ignored.
func (e *Engine) CanManageUser(ctx context.Context, actorID, targetUserID string, targetRole roles.Role) (bool, error) {
	actor, err := e.dir.GetUser(ctx, actorID)
	if err != nil {
		return e.observe(CheckManageUser, false, miss(err))
	}
	if targetUserID != "" {
		target, err := e.dir.GetUser(ctx, targetUserID)
		if err != nil {
			return e.observe(CheckManageUser, false, miss(err))
		}
		targetRole = target.Role
	}
	return e.observe(CheckManageUser, roles.CanManage(actor.Role, targetRole), nil)
}
