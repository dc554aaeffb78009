// Package dashboard aggregates the headline counters shown after sign-in.
package dashboard

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/tenant"
)

// Repository exposes the counters Service needs.
type Repository interface {
	CountPublishedAudits(ctx context.Context, clientCompanyIDs []string) (int, error)
	CountPendingAccessRequests(ctx context.Context) (int, error)
}

// Stats is the dashboard payload.
type Stats struct {
	ActiveProjects   int `json:"activeProjects"`
	CompletedAudits  int `json:"completedAudits"`
	ActiveClients    int `json:"activeClients"`
	PendingApprovals int `json:"pendingApprovals"`
}

// Service computes dashboard stats.
type Service struct {
	repo   Repository
	engine *access.Engine
	graph  *tenant.Graph
}

// NewService constructs the dashboard service.
func NewService(repo Repository, engine *access.Engine, graph *tenant.Graph) *Service {
	return &Service{repo: repo, engine: engine, graph: graph}
}

// Stats counts what actorID can see. Roles with the global dashboard see
// every client company; everyone else sees their own company only.
// Pending approvals are reported to roles that can review them.
func (s *Service) Stats(ctx context.Context, actorID string) (Stats, error) {
	actor, err := s.engine.ResolveActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Stats{}, shared.ErrForbidden
		}
		return Stats{}, err
	}
	role := actor.User.Role

	var out Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		projects, err := s.engine.UserProjects(ctx, actorID)
		if err != nil {
			return err
		}
		for _, p := range projects {
			if p.Status == store.ProjectActive {
				out.ActiveProjects++
			}
		}
		return nil
	})

	if roles.Can(role, roles.ActionDashboardGlobal) {
		g.Go(func() error {
			clients, err := s.graph.CompaniesByType(ctx, store.CompanyClient)
			if err != nil {
				return err
			}
			out.ActiveClients = len(clients)
			if len(clients) == 0 {
				return nil
			}
			ids := make([]string, len(clients))
			for i, c := range clients {
				ids[i] = c.ID
			}
			out.CompletedAudits, err = s.repo.CountPublishedAudits(ctx, ids)
			return err
		})
	} else {
		out.ActiveClients = 1
		g.Go(func() (err error) {
			out.CompletedAudits, err = s.repo.CountPublishedAudits(ctx, []string{actor.User.CompanyID})
			return err
		})
	}

	if roles.Can(role, roles.ActionAccessRequestReview) {
		g.Go(func() (err error) {
			out.PendingApprovals, err = s.repo.CountPendingAccessRequests(ctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return out, nil
}
