// Package audit records and reads the portal's activity trail.
package audit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/clientportal/portal/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxExportRows caps a single CSV export.
	MaxExportRows = 5000
)

// Repository reads activity entries.
type Repository interface {
	ListActivity(ctx context.Context, f store.ActivityFilter) ([]store.ActivityEntry, error)
	CountActivity(ctx context.Context, f store.ActivityFilter) (int, error)
}

// Service serves the activity timeline.
type Service struct {
	repo Repository
}

// NewService builds a timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	window := filters.query()
	window.Offset = (page - 1) * pageSize
	window.Limit = pageSize + 1

	var (
		rows  []store.ActivityEntry
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.ListActivity(gctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountActivity(gctx, filters.query())
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []store.ActivityEntry{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, Total: total, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching entry up to MaxExportRows.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]store.ActivityEntry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	q := filters.query()
	q.Limit = MaxExportRows
	return s.repo.ListActivity(ctx, q)
}
