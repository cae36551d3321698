package services

import (
	"context"
	"fmt"
	"log/slog"

	"quantifier/internal/core"
)

// ProjectService owns project lifecycle. The storage layer creates the
// sentinel root category together with the project; this layer validates and
// keeps the rollup tree cache honest.
type ProjectService struct {
	store  ProjectStore
	rollup *RollupService
}

func NewProjectService(store ProjectStore, rollup *RollupService) *ProjectService {
	return &ProjectService{store: store, rollup: rollup}
}

func (s *ProjectService) Create(ctx context.Context, p core.Project) (core.Project, error) {
	if p.Interval == "" {
		p.Interval = core.IntervalNone
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, fmt.Errorf("validate project: %w", err)
	}
	created, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	return created, nil
}

func (s *ProjectService) Get(ctx context.Context, id int64) (core.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *ProjectService) List(ctx context.Context) ([]core.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *ProjectService) Update(ctx context.Context, p core.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validate project: %w", err)
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if s.rollup != nil {
		s.rollup.InvalidateProject(p.ID)
	}
	return nil
}

func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if s.rollup != nil {
		s.rollup.InvalidateProject(id)
	}
	slog.InfoContext(ctx, "Project deleted", "project_id", id)
	return nil
}
