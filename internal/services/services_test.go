package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"quantifier/internal/cache"
	"quantifier/internal/core"
)

// fakeStore is an in-memory implementation of the storage surface the
// services need.
type fakeStore struct {
	projects   map[int64]core.Project
	categories map[int64]core.Category
	quantities map[int64]core.Quantity
	nextID     int64

	listCategoryCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:   make(map[int64]core.Project),
		categories: make(map[int64]core.Category),
		quantities: make(map[int64]core.Quantity),
		nextID:     1,
	}
}

func (f *fakeStore) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	p.ID = f.id()
	f.projects[p.ID] = p
	root := core.Category{ID: f.id(), ProjectID: p.ID}
	f.categories[root.ID] = root
	return p, nil
}

func (f *fakeStore) GetProject(_ context.Context, id int64) (core.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return core.Project{}, errors.New("project not found")
	}
	return p, nil
}

func (f *fakeStore) ListProjects(context.Context) ([]core.Project, error) {
	var out []core.Project
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, p core.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id int64) error {
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) ListCategories(_ context.Context, projectID int64) ([]core.Category, error) {
	f.listCategoryCalls++
	var out []core.Category
	for _, c := range f.categories {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return core.Category{}, errors.New("category not found")
	}
	return c, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c.ID = f.id()
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, c core.Category) error {
	f.categories[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id int64) error {
	delete(f.categories, id)
	return nil
}

func (f *fakeStore) CreateQuantity(_ context.Context, q core.Quantity) (core.Quantity, error) {
	q.ID = f.id()
	f.quantities[q.ID] = q
	return q, nil
}

func (f *fakeStore) GetQuantity(_ context.Context, id int64) (core.Quantity, error) {
	q, ok := f.quantities[id]
	if !ok {
		return core.Quantity{}, errors.New("quantity not found")
	}
	return q, nil
}

func (f *fakeStore) UpdateQuantity(_ context.Context, q core.Quantity) error {
	f.quantities[q.ID] = q
	return nil
}

func (f *fakeStore) DeleteQuantity(_ context.Context, id int64) error {
	delete(f.quantities, id)
	return nil
}

func (f *fakeStore) ListQuantities(_ context.Context, projectID, categoryID int64, dr *core.DateRange, limit int) ([]core.Quantity, error) {
	var out []core.Quantity
	for _, q := range f.quantities {
		if categoryID != 0 && q.CategoryID != categoryID {
			continue
		}
		if dr != nil && !dr.Contains(q.RecordedOn.Time) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeStore) SumQuantities(_ context.Context, projectID int64, dr *core.DateRange) (map[int64]int64, error) {
	sums := make(map[int64]int64)
	for _, c := range f.categories {
		if c.ProjectID == projectID {
			sums[c.ID] = 0
		}
	}
	for _, q := range f.quantities {
		if _, ok := sums[q.CategoryID]; !ok {
			continue
		}
		if dr != nil && !dr.Contains(q.RecordedOn.Time) {
			continue
		}
		sums[q.CategoryID] += q.Value
	}
	return sums, nil
}

type fakePublisher struct {
	exports []int64
	deletes []int64
}

func (p *fakePublisher) PublishQuantityExport(_ context.Context, id int64) error {
	p.exports = append(p.exports, id)
	return nil
}

func (p *fakePublisher) PublishQuantityDelete(_ context.Context, q core.Quantity) error {
	p.deletes = append(p.deletes, q.ID)
	return nil
}

func newServices(t *testing.T) (*fakeStore, *RollupService, *ProjectService, *CategoryService, *QuantityService, *fakePublisher) {
	t.Helper()
	store := newFakeStore()
	trees := cache.NewLRUCache[*core.CategoryTree](16, time.Minute)
	rollup := NewRollupService(store, trees)
	publisher := &fakePublisher{}
	return store, rollup,
		NewProjectService(store, rollup),
		NewCategoryService(store, rollup),
		NewQuantityService(store, rollup, publisher),
		publisher
}

func TestRollupServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	_, rollup, projects, categories, quantities, _ := newServices(t)

	project, err := projects.Create(ctx, core.Project{
		Name:             "Budget",
		Interval:         core.Monthly,
		IntervalQuantity: intp(300),
		QuantityName:     "euros",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	food, err := categories.Create(ctx, core.Category{ProjectID: project.ID, Name: "Food"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	day := time.Date(2024, time.August, 7, 0, 0, 0, 0, time.UTC)
	if _, err := quantities.Record(ctx, project.ID, core.Quantity{
		CategoryID: food.ID,
		Value:      350,
		RecordedOn: core.Date{Time: day},
	}); err != nil {
		t.Fatalf("record quantity: %v", err)
	}

	result, err := rollup.Rollup(ctx, project.ID, day, "")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}

	root := result.Records[result.Tree.RootID()]
	if root.Used != 350 {
		t.Fatalf("root used = %d, want 350", root.Used)
	}
	if root.Availability == nil || root.Availability.Available != -50 {
		t.Fatalf("availability = %+v", root.Availability)
	}
	if root.Limit == nil || !root.Limit.Exceeded {
		t.Fatalf("limit = %+v", root.Limit)
	}
}

func TestRollupServiceTreeCache(t *testing.T) {
	ctx := context.Background()
	store, rollup, projects, categories, _, _ := newServices(t)

	project, err := projects.Create(ctx, core.Project{Name: "P", Interval: core.IntervalNone})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if _, err := rollup.Rollup(ctx, project.ID, time.Time{}, ""); err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if _, err := rollup.Rollup(ctx, project.ID, time.Time{}, ""); err != nil {
		t.Fatalf("rollup: %v", err)
	}
	// Category creation reads the tree once more, then invalidates.
	calls := store.listCategoryCalls
	if calls != 1 {
		t.Fatalf("tree fetched %d times across two rollups, want 1", calls)
	}

	if _, err := categories.Create(ctx, core.Category{ProjectID: project.ID, Name: "A"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	result, err := rollup.Rollup(ctx, project.ID, time.Time{}, "")
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if result.Tree.Len() != 2 {
		t.Fatalf("stale tree served after category write: %d categories", result.Tree.Len())
	}
}

// Invalidation drops every cached view of the written project and nothing
// else; an ID that is a decimal prefix of another must not collide.
func TestInvalidateProjectScopedToOneProject(t *testing.T) {
	ctx := context.Background()
	store, rollup, projects, _, _, _ := newServices(t)

	p1, err := projects.Create(ctx, core.Project{Name: "First", Interval: core.IntervalNone})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	store.nextID = 12
	p12, err := projects.Create(ctx, core.Project{Name: "Twelfth", Interval: core.IntervalNone})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if p1.ID != 1 || p12.ID != 12 {
		t.Fatalf("ids = %d, %d; want 1 and 12", p1.ID, p12.ID)
	}

	if _, err := rollup.CategoryTree(ctx, p1.ID); err != nil {
		t.Fatalf("warm tree %d: %v", p1.ID, err)
	}
	if _, err := rollup.CategoryTree(ctx, p12.ID); err != nil {
		t.Fatalf("warm tree %d: %v", p12.ID, err)
	}
	warmed := store.listCategoryCalls

	rollup.InvalidateProject(p1.ID)

	if _, err := rollup.CategoryTree(ctx, p12.ID); err != nil {
		t.Fatalf("tree %d: %v", p12.ID, err)
	}
	if store.listCategoryCalls != warmed {
		t.Fatalf("project %d was evicted by invalidating project %d", p12.ID, p1.ID)
	}
	if _, err := rollup.CategoryTree(ctx, p1.ID); err != nil {
		t.Fatalf("tree %d: %v", p1.ID, err)
	}
	if store.listCategoryCalls != warmed+1 {
		t.Fatalf("project %d should have been refetched after invalidation", p1.ID)
	}
}

func TestCategoryServiceRejectsCycles(t *testing.T) {
	ctx := context.Background()
	_, _, projects, categories, _, _ := newServices(t)

	project, _ := projects.Create(ctx, core.Project{Name: "P", Interval: core.IntervalNone})
	parent, _ := categories.Create(ctx, core.Category{ProjectID: project.ID, Name: "Parent"})
	child, err := categories.Create(ctx, core.Category{ProjectID: project.ID, Name: "Child", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	parent.ParentID = child.ID
	if err := categories.Update(ctx, parent); !errors.Is(err, ErrCycle) {
		t.Fatalf("moving a category under its descendant should fail, got %v", err)
	}
	parent.ParentID = parent.ID
	if err := categories.Update(ctx, parent); !errors.Is(err, ErrCycle) {
		t.Fatalf("self-parenting should fail, got %v", err)
	}
}

func TestCategoryServiceProtectsRoot(t *testing.T) {
	ctx := context.Background()
	_, rollup, projects, categories, _, _ := newServices(t)

	project, _ := projects.Create(ctx, core.Project{Name: "P", Interval: core.IntervalNone})
	tree, err := rollup.CategoryTree(ctx, project.ID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}

	if err := categories.Delete(ctx, project.ID, tree.RootID()); !errors.Is(err, ErrRootImmutable) {
		t.Fatalf("deleting the root should fail, got %v", err)
	}
	root := tree.Root()
	root.Name = "renamed"
	if err := categories.Update(ctx, root); !errors.Is(err, ErrRootImmutable) {
		t.Fatalf("editing the root should fail, got %v", err)
	}
}

func TestQuantityServicePublishesExports(t *testing.T) {
	ctx := context.Background()
	_, _, projects, categories, quantities, publisher := newServices(t)

	project, _ := projects.Create(ctx, core.Project{Name: "P", Interval: core.IntervalNone})
	food, _ := categories.Create(ctx, core.Category{ProjectID: project.ID, Name: "Food"})

	q, err := quantities.Record(ctx, project.ID, core.Quantity{
		CategoryID: food.ID,
		Value:      10,
		RecordedOn: core.NewDate(2024, 8, 7),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(publisher.exports) != 1 || publisher.exports[0] != q.ID {
		t.Fatalf("exports = %v", publisher.exports)
	}

	if err := quantities.Delete(ctx, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(publisher.deletes) != 1 || publisher.deletes[0] != q.ID {
		t.Fatalf("deletes = %v", publisher.deletes)
	}
}

func TestQuantityServiceRejectsForeignCategory(t *testing.T) {
	ctx := context.Background()
	_, _, projects, categories, quantities, _ := newServices(t)

	first, _ := projects.Create(ctx, core.Project{Name: "A", Interval: core.IntervalNone})
	second, _ := projects.Create(ctx, core.Project{Name: "B", Interval: core.IntervalNone})
	foreign, _ := categories.Create(ctx, core.Category{ProjectID: second.ID, Name: "Other"})

	_, err := quantities.Record(ctx, first.ID, core.Quantity{
		CategoryID: foreign.ID,
		Value:      1,
		RecordedOn: core.NewDate(2024, 8, 7),
	})
	if !errors.Is(err, ErrCategoryMismatch) {
		t.Fatalf("expected category mismatch, got %v", err)
	}
}

func intp(v int64) *int64 { return &v }
