// Package tenant answers questions about the company hierarchy.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// MaxDepth bounds parent-link walks.
const MaxDepth = 32

// Directory is the subset of store queries the graph reads.
type Directory interface {
	GetCompany(ctx context.Context, id string) (store.Company, error)
	ListCompaniesByType(ctx context.Context, typ store.CompanyType) ([]store.Company, error)
	ListCompaniesByParent(ctx context.Context, parentID string) ([]store.Company, error)
	FirstCompanyOfType(ctx context.Context, typ store.CompanyType) (store.Company, error)
}

// Graph walks companies through their parent links.
type Graph struct {
	dir Directory
}

// NewGraph constructs a Graph.
func NewGraph(dir Directory) *Graph {
	return &Graph{dir: dir}
}

// IsDescendant reports whether ancestorID appears above companyID in the
// parent chain. A company is not its own descendant. The walk stops on a
// revisited node or after MaxDepth hops.
func (g *Graph) IsDescendant(ctx context.Context, companyID, ancestorID string) (bool, error) {
	if companyID == "" || ancestorID == "" || companyID == ancestorID {
		return false, nil
	}
	visited := map[string]struct{}{companyID: {}}
	current := companyID
	for depth := 0; depth < MaxDepth; depth++ {
		company, err := g.dir.GetCompany(ctx, current)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("tenant: resolve %s: %w", current, err)
		}
		if company.ParentID == nil || *company.ParentID == "" {
			return false, nil
		}
		parent := *company.ParentID
		if parent == ancestorID {
			return true, nil
		}
		if _, seen := visited[parent]; seen {
			return false, nil
		}
		visited[parent] = struct{}{}
		current = parent
	}
	return false, nil
}

// CompaniesByType lists companies of one type ordered by name.
func (g *Graph) CompaniesByType(ctx context.Context, typ store.CompanyType) ([]store.Company, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown company type %q", shared.ErrValidation, typ)
	}
	return g.dir.ListCompaniesByType(ctx, typ)
}

// CompaniesByParent lists the direct children of parentID ordered by name.
func (g *Graph) CompaniesByParent(ctx context.Context, parentID string) ([]store.Company, error) {
	return g.dir.ListCompaniesByParent(ctx, parentID)
}

// DefaultClientCompany returns the oldest client company.
func (g *Graph) DefaultClientCompany(ctx context.Context) (store.Company, error) {
	company, err := g.dir.FirstCompanyOfType(ctx, store.CompanyClient)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return store.Company{}, fmt.Errorf("%w: no client company available", shared.ErrValidation)
		}
		return store.Company{}, err
	}
	return company, nil
}
