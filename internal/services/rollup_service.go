package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"quantifier/internal/cache"
	"quantifier/internal/core"
)

// RollupResult bundles the engine output with the snapshot it was computed
// from, so callers can render per-category records in tree order.
type RollupResult struct {
	Project core.Project
	Query   core.RollupQuery
	Tree    *core.CategoryTree
	Records map[int64]core.Record
}

// RollupService assembles immutable snapshots and runs the aggregation
// engine over them. Tree snapshots are cached per project and explicitly
// invalidated on category or project writes; sums are always fetched fresh.
type RollupService struct {
	store SnapshotStore
	trees *cache.LRUCache[*core.CategoryTree]
}

func NewRollupService(store SnapshotStore, trees *cache.LRUCache[*core.CategoryTree]) *RollupService {
	return &RollupService{store: store, trees: trees}
}

// Rollup computes the per-category rollup of a project for the given
// reference date and display interval. A zero date means no temporal filter;
// an empty interval defaults to the project's own.
func (s *RollupService) Rollup(ctx context.Context, projectID int64, date time.Time, display core.Interval) (*RollupResult, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	tree, err := s.categoryTree(ctx, projectID)
	if err != nil {
		return nil, err
	}

	query := core.NewRollupQuery(project, date, display)
	sums, err := s.store.SumQuantities(ctx, projectID, query.SumRange())
	if err != nil {
		return nil, fmt.Errorf("sum quantities: %w", err)
	}

	records := core.Rollup(project, tree, sums, query)

	slog.DebugContext(ctx, "Rollup computed",
		"project_id", projectID,
		"interval", query.Interval,
		"alltime", query.AllTime,
		"categories", tree.Len())

	return &RollupResult{Project: project, Query: query, Tree: tree, Records: records}, nil
}

// CategoryTree returns the cached tree snapshot of a project, building it
// from storage on a miss.
func (s *RollupService) CategoryTree(ctx context.Context, projectID int64) (*core.CategoryTree, error) {
	return s.categoryTree(ctx, projectID)
}

func (s *RollupService) categoryTree(ctx context.Context, projectID int64) (*core.CategoryTree, error) {
	key := treeCacheKey(projectID)
	if s.trees != nil {
		if tree, ok := s.trees.Get(key); ok {
			return tree, nil
		}
	}

	categories, err := s.store.ListCategories(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	tree, err := core.NewCategoryTree(categories)
	if err != nil {
		return nil, fmt.Errorf("build category tree: %w", err)
	}

	if s.trees != nil {
		s.trees.Set(key, tree)
	}
	return tree, nil
}

// InvalidateProject drops every cached snapshot of a project after a
// structural write. Serving a stale tree across writes would be a
// correctness bug, not a performance one.
func (s *RollupService) InvalidateProject(projectID int64) {
	if s.trees != nil {
		s.trees.DeletePrefix(projectKeyPrefix(projectID))
	}
}

// projectKeyPrefix namespaces all cached views of one project. The trailing
// colon keeps project 1 from matching project 12.
func projectKeyPrefix(projectID int64) string {
	return "project:" + strconv.FormatInt(projectID, 10) + ":"
}

func treeCacheKey(projectID int64) string {
	return projectKeyPrefix(projectID) + "tree"
}
