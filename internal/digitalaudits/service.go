// Package digitalaudits serves the HTML audit reports delivered to client
// companies.
package digitalaudits

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
	"github.com/clientportal/portal/internal/tenant"
)

// Activity actions recorded by this package.
const (
	ActionCreate  = "CREATE_AUDIT"
	ActionPublish = "PUBLISH_AUDIT"

	resourceType = "digital_audit"
)

// RepositoryPort describes the store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDigitalAudit(ctx context.Context, id string) (store.DigitalAudit, error)
	ListAuditsByClients(ctx context.Context, clientCompanyIDs []string) ([]store.DigitalAudit, error)
}

// TxRepository exposes the transactional writes.
type TxRepository interface {
	GetCompany(ctx context.Context, id string) (store.Company, error)
	GetDigitalAudit(ctx context.Context, id string) (store.DigitalAudit, error)
	CreateDigitalAudit(ctx context.Context, a store.DigitalAudit) (store.DigitalAudit, error)
	PublishDigitalAudit(ctx context.Context, id string, at time.Time) (store.DigitalAudit, error)
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// Service orchestrates digital audit flows.
type Service struct {
	repo   RepositoryPort
	engine *access.Engine
	graph  *tenant.Graph
	now    func() time.Time
}

// Option customises Service.
type Option func(*Service)

// WithClock overrides the time source used for expiry and publication.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the audit service.
func NewService(repo RepositoryPort, engine *access.Engine, graph *tenant.Graph, opts ...Option) *Service {
	s := &Service{repo: repo, engine: engine, graph: graph, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new audit.
type CreateInput struct {
	ClientCompanyID string
	Title           string
	HTMLContent     string
	Status          store.AuditStatus
	AccessType      store.AuditAccessType
	AccessExpiresAt *time.Time
}

func (s *Service) actor(ctx context.Context, actorID string) (access.Actor, error) {
	actor, err := s.engine.ResolveActor(ctx, actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return access.Actor{}, shared.ErrForbidden
	}
	return actor, err
}

// hidesExpired reports whether role loses sight of temporary audits once
// their window closes.
func hidesExpired(role roles.Role) bool {
	f := role.Family()
	return f == roles.FamilyClient || f == roles.FamilyViewer
}

// List returns audits for clientCompanyID when set, otherwise for every
// client company (list-all roles) or the actor's own company.
func (s *Service) List(ctx context.Context, actorID, clientCompanyID string) ([]store.DigitalAudit, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var ids []string
	switch {
	case clientCompanyID != "":
		if err := s.authorizeClient(ctx, actor, clientCompanyID); err != nil {
			return nil, err
		}
		ids = []string{clientCompanyID}
	case roles.Can(actor.User.Role, roles.ActionAuditListAll):
		clients, err := s.graph.CompaniesByType(ctx, store.CompanyClient)
		if err != nil {
			return nil, err
		}
		for _, c := range clients {
			ids = append(ids, c.ID)
		}
	default:
		ids = []string{actor.User.CompanyID}
	}

	out := []store.DigitalAudit{}
	if len(ids) == 0 {
		return out, nil
	}
	audits, err := s.repo.ListAuditsByClients(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := s.now()
	hide := hidesExpired(actor.User.Role)
	for _, a := range audits {
		if hide && a.Expired(now) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Get returns one audit the actor may see. Expired temporary audits are
// reported as missing to client and viewer roles. Actors limited to their own
// tenants get ErrForbidden for unknown ids as well as for hidden ones.
func (s *Service) Get(ctx context.Context, actorID, id string) (store.DigitalAudit, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.DigitalAudit{}, err
	}
	wide := seesAllClients(actor)
	audit, err := s.repo.GetDigitalAudit(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) && !wide {
			return store.DigitalAudit{}, shared.ErrForbidden
		}
		return store.DigitalAudit{}, err
	}
	if err := s.authorizeClient(ctx, actor, audit.ClientCompanyID); err != nil {
		return store.DigitalAudit{}, err
	}
	if hidesExpired(actor.User.Role) && audit.Expired(s.now()) {
		return store.DigitalAudit{}, fmt.Errorf("%w: digital audit", shared.ErrNotFound)
	}
	return audit, nil
}

// seesAllClients reports whether actor reads audits of every client company,
// either through the owner tenant or the audit:list-all permission.
func seesAllClients(actor access.Actor) bool {
	return actor.IsOwnerTenant() || roles.Can(actor.User.Role, roles.ActionAuditListAll)
}

func (s *Service) authorizeClient(ctx context.Context, actor access.Actor, clientCompanyID string) error {
	if seesAllClients(actor) {
		return nil
	}
	ok, err := s.engine.CanActorAccessCompany(ctx, actor, clientCompanyID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrForbidden
	}
	return nil
}

func (in *CreateInput) normalize(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	switch in.Status {
	case "":
		in.Status = store.AuditDraft
	case store.AuditDraft, store.AuditReview:
	default:
		return fmt.Errorf("%w: new audits start as draft or review", shared.ErrValidation)
	}
	switch in.AccessType {
	case "", store.AuditPermanent:
		in.AccessType = store.AuditPermanent
		in.AccessExpiresAt = nil
	case store.AuditTemporary:
		if in.AccessExpiresAt == nil {
			return fmt.Errorf("%w: temporary audits need accessExpiresAt", shared.ErrValidation)
		}
		if !in.AccessExpiresAt.After(now) {
			return fmt.Errorf("%w: accessExpiresAt must be in the future", shared.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown access type %q", shared.ErrValidation, in.AccessType)
	}
	return nil
}

// Create stores a new audit for a client company the actor can access.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (store.DigitalAudit, error) {
	if err := in.normalize(s.now()); err != nil {
		return store.DigitalAudit{}, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.DigitalAudit{}, err
	}
	if !roles.Can(actor.User.Role, roles.ActionAuditCreate) {
		return store.DigitalAudit{}, shared.ErrForbidden
	}
	ok, err := s.engine.CanActorAccessCompany(ctx, actor, in.ClientCompanyID)
	if err != nil {
		return store.DigitalAudit{}, err
	}
	if !ok {
		return store.DigitalAudit{}, fmt.Errorf("%w: client company is not accessible", shared.ErrForbidden)
	}

	var created store.DigitalAudit
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		company, err := tx.GetCompany(ctx, in.ClientCompanyID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: client company does not exist", shared.ErrValidation)
			}
			return err
		}
		if company.Type != store.CompanyClient {
			return fmt.Errorf("%w: audits belong to client companies", shared.ErrValidation)
		}
		created, err = tx.CreateDigitalAudit(ctx, store.DigitalAudit{
			ClientCompanyID: company.ID,
			Title:           in.Title,
			HTMLContent:     in.HTMLContent,
			Status:          in.Status,
			AccessType:      in.AccessType,
			AccessExpiresAt: in.AccessExpiresAt,
			CreatedBy:       actorID,
		})
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionCreate, resourceType, created.ID,
			map[string]any{"title": created.Title, "clientCompanyId": created.ClientCompanyID}))
	})
	if err != nil {
		return store.DigitalAudit{}, err
	}
	return created, nil
}

// Publish makes an audit visible as delivered. Publishing twice is a conflict.
func (s *Service) Publish(ctx context.Context, actorID, id string) (store.DigitalAudit, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return store.DigitalAudit{}, err
	}
	if !roles.Can(actor.User.Role, roles.ActionAuditPublish) {
		return store.DigitalAudit{}, shared.ErrForbidden
	}

	var published store.DigitalAudit
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		audit, err := tx.GetDigitalAudit(ctx, id)
		if err != nil {
			return err
		}
		ok, err := s.engine.CanActorAccessCompany(ctx, actor, audit.ClientCompanyID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrForbidden
		}
		switch audit.Status {
		case store.AuditPublished:
			return fmt.Errorf("%w: audit is already published", shared.ErrConflict)
		case store.AuditArchived:
			return fmt.Errorf("%w: archived audits cannot be published", shared.ErrConflict)
		}
		published, err = tx.PublishDigitalAudit(ctx, id, s.now())
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionPublish, resourceType, id, nil))
	})
	if err != nil {
		return store.DigitalAudit{}, err
	}
	return published, nil
}
