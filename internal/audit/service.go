package audit

import (
	"context"
	"fmt"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service coordinates audit persistence and timeline reads.
type Service struct {
	repo Repository
}

// NewService creates a new audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record persists one authorization event.
func (s *Service) Record(ctx context.Context, event authz.AuditEvent) error {
	if s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Insert(ctx, Entry{
		PrincipalID: event.PrincipalID,
		SocieteID:   event.SocieteID,
		Route:       event.Route,
		Outcome:     event.Outcome,
		Reason:      event.Reason,
		OccurredAt:  event.Timestamp,
	})
}

// Timeline fetches audit entries with paging. One extra row is requested to
// detect whether a next page exists.
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
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
