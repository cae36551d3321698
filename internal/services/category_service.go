package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quantifier/internal/core"
)

var (
	ErrRootImmutable  = errors.New("the root category cannot be edited or deleted")
	ErrCycle          = errors.New("a category cannot be moved under its own subtree")
	ErrForeignParent  = errors.New("parent category belongs to another project")
	ErrUnknownParent  = errors.New("parent category does not exist")
	ErrProjectMissing = errors.New("category project does not exist")
)

// CategoryService manages tree structure mutations. Every successful write
// invalidates the project's cached tree snapshot.
type CategoryService struct {
	store  CategoryStore
	rollup *RollupService
}

func NewCategoryService(store CategoryStore, rollup *RollupService) *CategoryService {
	return &CategoryService{store: store, rollup: rollup}
}

// Create adds a category. A zero ParentID attaches it to the project root.
func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	tree, err := s.rollup.CategoryTree(ctx, c.ProjectID)
	if err != nil {
		return core.Category{}, fmt.Errorf("%w: %v", ErrProjectMissing, err)
	}
	if c.ParentID == 0 {
		c.ParentID = tree.RootID()
	}
	if err := s.checkParent(tree, c); err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("validate category: %w", err)
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.rollup.InvalidateProject(c.ProjectID)

	slog.InfoContext(ctx, "Category created",
		"category_id", created.ID, "project_id", c.ProjectID, "parent_id", c.ParentID)
	return created, nil
}

// Update edits a category, possibly reparenting it. The root is immutable
// and a category can never be moved under itself or one of its descendants.
func (s *CategoryService) Update(ctx context.Context, c core.Category) error {
	tree, err := s.rollup.CategoryTree(ctx, c.ProjectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProjectMissing, err)
	}
	current, ok := tree.Get(c.ID)
	if !ok {
		return core.ErrCategoryNotInTree
	}
	if current.IsRoot() {
		return ErrRootImmutable
	}
	if c.ParentID == 0 {
		c.ParentID = tree.RootID()
	}
	if err := s.checkParent(tree, c); err != nil {
		return err
	}
	if c.ParentID == c.ID {
		return ErrCycle
	}
	for _, descendant := range tree.Descendants(c.ID) {
		if descendant.ID == c.ParentID {
			return ErrCycle
		}
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate category: %w", err)
	}

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	s.rollup.InvalidateProject(c.ProjectID)
	return nil
}

// Delete removes a category and, through storage cascading, its whole
// subtree and all quantities recorded in it.
func (s *CategoryService) Delete(ctx context.Context, projectID, id int64) error {
	tree, err := s.rollup.CategoryTree(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProjectMissing, err)
	}
	c, ok := tree.Get(id)
	if !ok {
		return core.ErrCategoryNotInTree
	}
	if c.IsRoot() {
		return ErrRootImmutable
	}

	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.rollup.InvalidateProject(projectID)

	slog.InfoContext(ctx, "Category deleted", "category_id", id, "project_id", projectID)
	return nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) checkParent(tree *core.CategoryTree, c core.Category) error {
	parent, ok := tree.Get(c.ParentID)
	if !ok {
		return ErrUnknownParent
	}
	if parent.ProjectID != c.ProjectID {
		return ErrForeignParent
	}
	return nil
}
