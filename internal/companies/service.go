// Package companies manages tenants.
package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/tenant"
)

// ActionCreate is the activity action for a new company.
const ActionCreate = "CREATE_COMPANY"

// RepositoryPort describes the store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCompany(ctx context.Context, id string) (store.Company, error)
}

// TxRepository exposes the transactional writes.
type TxRepository interface {
	GetCompany(ctx context.Context, id string) (store.Company, error)
	CreateCompany(ctx context.Context, c store.Company) (store.Company, error)
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// Service orchestrates company reads and writes.
type Service struct {
	repo   RepositoryPort
	engine *access.Engine
	graph  *tenant.Graph
}

// NewService constructs the company service.
func NewService(repo RepositoryPort, engine *access.Engine, graph *tenant.Graph) *Service {
	return &Service{repo: repo, engine: engine, graph: graph}
}

// CreateInput describes a new company.
type CreateInput struct {
	Type         store.CompanyType
	ParentID     string
	Name         string
	Domain       string
	LogoURL      string
	PrimaryColor string
	Settings     map[string]any
}

func (s *Service) actor(ctx context.Context, actorID string) (access.Actor, error) {
	actor, err := s.engine.ResolveActor(ctx, actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return access.Actor{}, shared.ErrForbidden
	}
	return actor, err
}

// List returns the companies the actor may browse. Roles that can list
// clients see client companies, optionally filtered by type when they may
// also create companies. Everyone else sees only their own company.
func (s *Service) List(ctx context.Context, actorID string, typ store.CompanyType) ([]store.Company, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	granted := roles.PermittedActions(actor.User.Role)
	if !granted.Has(roles.ActionCompanyListClients) {
		return []store.Company{actor.Company}, nil
	}
	if typ == "" {
		typ = store.CompanyClient
	}
	if typ != store.CompanyClient && !granted.Has(roles.ActionCompanyCreate) {
		return nil, fmt.Errorf("%w: only client companies can be listed", shared.ErrForbidden)
	}
	return s.graph.CompaniesByType(ctx, typ)
}

// Get returns one company when the actor may see it.
func (s *Service) Get(ctx context.Context, actorID, id string) (store.Company, error) {
	allowed, err := s.engine.CanAccessCompany(ctx, actorID, id)
	if err != nil {
		return store.Company{}, err
	}
	if !allowed {
		return store.Company{}, shared.ErrForbidden
	}
	return s.repo.GetCompany(ctx, id)
}

// Children lists the companies below id that the actor may see. With
// recursive set the whole subtree is considered, not just direct children.
func (s *Service) Children(ctx context.Context, actorID, id string, recursive bool) ([]store.Company, error) {
	if _, err := s.Get(ctx, actorID, id); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var candidates []store.Company
	if recursive {
		candidates, err = s.subtree(ctx, id)
	} else {
		candidates, err = s.graph.CompaniesByParent(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	out := make([]store.Company, 0, len(candidates))
	for _, c := range candidates {
		ok, err := s.engine.CanActorAccessCompany(ctx, actor, c.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) subtree(ctx context.Context, rootID string) ([]store.Company, error) {
	var out []store.Company
	for _, typ := range []store.CompanyType{store.CompanyPartner, store.CompanyClient, store.CompanySub} {
		companies, err := s.graph.CompaniesByType(ctx, typ)
		if err != nil {
			return nil, err
		}
		for _, c := range companies {
			below, err := s.graph.IsDescendant(ctx, c.ID, rootID)
			if err != nil {
				return nil, err
			}
			if below {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// Create adds a company. Only roles allowed to create companies may call it,
// and a parent must be visible to the actor.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (store.Company, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return store.Company{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	switch in.Type {
	case store.CompanyPartner, store.CompanyClient, store.CompanySub:
	case store.CompanyOwner:
		return store.Company{}, fmt.Errorf("%w: the owner company already exists", shared.ErrValidation)
	default:
		return store.Company{}, fmt.Errorf("%w: unknown company type %q", shared.ErrValidation, in.Type)
	}
	if in.Type == store.CompanySub && in.ParentID == "" {
		return store.Company{}, fmt.Errorf("%w: sub companies need a parent", shared.ErrValidation)
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.Company{}, err
	}
	if !roles.PermittedActions(actor.User.Role).Has(roles.ActionCompanyCreate) {
		return store.Company{}, shared.ErrForbidden
	}
	if in.ParentID != "" {
		ok, err := s.engine.CanActorAccessCompany(ctx, actor, in.ParentID)
		if err != nil {
			return store.Company{}, err
		}
		if !ok {
			return store.Company{}, fmt.Errorf("%w: parent company is not accessible", shared.ErrForbidden)
		}
	}

	company := store.Company{
		Type:         in.Type,
		Name:         in.Name,
		Domain:       strings.TrimSpace(in.Domain),
		LogoURL:      in.LogoURL,
		PrimaryColor: in.PrimaryColor,
		Settings:     in.Settings,
	}
	var created store.Company
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != "" {
			parent, err := tx.GetCompany(ctx, in.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("%w: parent company does not exist", shared.ErrValidation)
				}
				return err
			}
			if in.Type == store.CompanySub && parent.Type != store.CompanyClient {
				return fmt.Errorf("%w: sub companies belong to a client company", shared.ErrValidation)
			}
			company.ParentID = &parent.ID
		}
		var err error
		created, err = tx.CreateCompany(ctx, company)
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionCreate, "company", created.ID,
			map[string]any{"name": created.Name, "type": string(created.Type)}))
	})
	if err != nil {
		return store.Company{}, err
	}
	return created, nil
}
