package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quantifier/internal/cache"
	"quantifier/internal/core"
	"quantifier/internal/services"
	"quantifier/internal/storage"
)

// fakeBackend implements every store interface the services need, keyed by
// the same maps, so handler tests run against the real service layer.
type fakeBackend struct {
	projects   map[int64]core.Project
	categories map[int64]core.Category
	quantities map[int64]core.Quantity
	nextID     int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		projects:   make(map[int64]core.Project),
		categories: make(map[int64]core.Category),
		quantities: make(map[int64]core.Quantity),
		nextID:     1,
	}
}

func (f *fakeBackend) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeBackend) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	p.ID = f.id()
	f.projects[p.ID] = p
	rootID := f.id()
	f.categories[rootID] = core.Category{ID: rootID, ProjectID: p.ID}
	return p, nil
}

func (f *fakeBackend) GetProject(_ context.Context, id int64) (core.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return core.Project{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeBackend) ListProjects(context.Context) ([]core.Project, error) {
	var out []core.Project
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeBackend) UpdateProject(_ context.Context, p core.Project) error {
	if _, ok := f.projects[p.ID]; !ok {
		return storage.ErrNotFound
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeBackend) DeleteProject(_ context.Context, id int64) error {
	if _, ok := f.projects[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeBackend) ListCategories(_ context.Context, projectID int64) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.categories {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return core.Category{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeBackend) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c.ID = f.id()
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeBackend) UpdateCategory(_ context.Context, c core.Category) error {
	f.categories[c.ID] = c
	return nil
}

func (f *fakeBackend) DeleteCategory(_ context.Context, id int64) error {
	delete(f.categories, id)
	return nil
}

func (f *fakeBackend) CreateQuantity(_ context.Context, q core.Quantity) (core.Quantity, error) {
	q.ID = f.id()
	f.quantities[q.ID] = q
	return q, nil
}

func (f *fakeBackend) GetQuantity(_ context.Context, id int64) (core.Quantity, error) {
	q, ok := f.quantities[id]
	if !ok {
		return core.Quantity{}, storage.ErrNotFound
	}
	return q, nil
}

func (f *fakeBackend) UpdateQuantity(_ context.Context, q core.Quantity) error {
	f.quantities[q.ID] = q
	return nil
}

func (f *fakeBackend) DeleteQuantity(_ context.Context, id int64) error {
	if _, ok := f.quantities[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.quantities, id)
	return nil
}

func (f *fakeBackend) ListQuantities(_ context.Context, projectID, categoryID int64, dr *core.DateRange, limit int) ([]core.Quantity, error) {
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

func (f *fakeBackend) SumQuantities(_ context.Context, projectID int64, dr *core.DateRange) (map[int64]int64, error) {
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

func newTestServer(t *testing.T) (*Server, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	trees := cache.NewLRUCache[*core.CategoryTree](16, time.Minute)
	rollup := services.NewRollupService(backend, trees)
	return NewServer(
		"127.0.0.1:0",
		services.NewProjectService(backend, rollup),
		services.NewCategoryService(backend, rollup),
		services.NewQuantityService(backend, rollup, nil),
		rollup,
	), backend
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/projects", map[string]any{
		"name":              "Budget",
		"interval":          "monthly",
		"interval_quantity": 300,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[projectPayload](t, rec)
	if created.ID == 0 || created.Interval != "monthly" {
		t.Fatalf("created = %+v", created)
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/projects/%d", created.ID), map[string]any{
		"name":     "Renamed",
		"interval": "monthly",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/projects/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}

func TestCreateProjectRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/projects", map[string]any{
		"name":     "X",
		"interval": "fortnightly",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown interval = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/projects", map[string]any{
		"name": "",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/projects", map[string]any{
		"name":    "X",
		"mystery": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field = %d", rec.Code)
	}
}

func setupProject(t *testing.T, s *Server) (projectID int64, rootID int64, foodID int64) {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/projects", map[string]any{
		"name":              "Budget",
		"interval":          "monthly",
		"interval_quantity": 300,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project = %d: %s", rec.Code, rec.Body.String())
	}
	project := decodeBody[projectPayload](t, rec)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/categories", project.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list categories = %d: %s", rec.Code, rec.Body.String())
	}
	categories := decodeBody[[]categoryPayload](t, rec)
	if len(categories) != 1 || !categories[0].Root {
		t.Fatalf("fresh project categories = %+v", categories)
	}

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/categories", project.ID), map[string]any{
		"name":              "Food",
		"expected_quantity": 200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category = %d: %s", rec.Code, rec.Body.String())
	}
	food := decodeBody[categoryPayload](t, rec)
	return project.ID, categories[0].ID, food.ID
}

func TestCategoryTreeOrder(t *testing.T) {
	s, _ := newTestServer(t)
	projectID, rootID, foodID := setupProject(t, s)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/categories", projectID), map[string]any{
		"name":      "Groceries",
		"parent_id": foodID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create child = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/categories", projectID), nil)
	categories := decodeBody[[]categoryPayload](t, rec)
	if len(categories) != 3 {
		t.Fatalf("categories = %d, want 3", len(categories))
	}
	if categories[0].ID != rootID || categories[0].Level != 0 {
		t.Errorf("first = %+v, want root at level 0", categories[0])
	}
	if categories[1].Name != "Food" || categories[1].Level != 1 {
		t.Errorf("second = %+v", categories[1])
	}
	if categories[2].Name != "Groceries" || categories[2].Level != 2 {
		t.Errorf("third = %+v", categories[2])
	}
}

func TestDeleteRootCategoryRejected(t *testing.T) {
	s, _ := newTestServer(t)
	_, rootID, _ := setupProject(t, s)

	rec := doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/categories/%d", rootID), nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("delete root = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQuantityEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	projectID, _, foodID := setupProject(t, s)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/quantities", projectID), map[string]any{
		"category_id": foodID,
		"value":       42,
		"recorded_on": "2024-08-07",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[quantityPayload](t, rec)
	if created.Value != 42 || created.RecordedOn != "2024-08-07" {
		t.Fatalf("created = %+v", created)
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/quantities?category_id=%d", projectID, foodID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	listed := decodeBody[[]quantityPayload](t, rec)
	if len(listed) != 1 {
		t.Fatalf("listed = %+v", listed)
	}

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/quantities", projectID), map[string]any{
		"category_id": foodID,
		"value":       -1,
		"recorded_on": "2024-08-07",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative value = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/quantities/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
}

func TestRollupEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	projectID, rootID, foodID := setupProject(t, s)

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/quantities", projectID), map[string]any{
		"category_id": foodID,
		"value":       350,
		"recorded_on": "2024-08-07",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/rollup?date=2024-08-07", projectID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rollup = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody[rollupPayload](t, rec)

	if payload.Interval != "monthly" || payload.AllTime {
		t.Fatalf("query info = %+v", payload)
	}
	if payload.Period == nil || payload.Period.Start != "2024-08-01" || payload.Period.End != "2024-08-31" {
		t.Fatalf("period = %+v", payload.Period)
	}
	if len(payload.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(payload.Categories))
	}

	root := payload.Categories[0]
	if root.ID != rootID {
		t.Fatalf("first category = %+v, want root", root)
	}
	if root.Used != 350 {
		t.Errorf("root used = %d, want 350", root.Used)
	}
	if root.Availability == nil || root.Availability.Available != -50 {
		t.Errorf("availability = %+v", root.Availability)
	}
	if root.Limit == nil || !root.Limit.Exceeded {
		t.Errorf("limit = %+v", root.Limit)
	}

	food := payload.Categories[1]
	if food.ID != foodID || food.Used != 350 {
		t.Errorf("food = %+v", food)
	}
	if food.Details == nil || food.Details.Unexpected != 150 {
		t.Errorf("food details = %+v", food.Details)
	}
}

func TestRollupRejectsBadParams(t *testing.T) {
	s, _ := newTestServer(t)
	projectID, _, _ := setupProject(t, s)

	rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/rollup?interval=hourly", projectID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad interval = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/rollup?date=07-08-2024", projectID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/projects/999/rollup", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing project = %d", rec.Code)
	}
}

func TestRollupAllTimeView(t *testing.T) {
	s, _ := newTestServer(t)
	projectID, _, foodID := setupProject(t, s)

	doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/quantities", projectID), map[string]any{
		"category_id": foodID,
		"value":       10,
		"recorded_on": "2023-01-15",
	})
	doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/projects/%d/quantities", projectID), map[string]any{
		"category_id": foodID,
		"value":       20,
		"recorded_on": "2024-08-07",
	})

	rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/projects/%d/rollup?interval=none", projectID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rollup = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody[rollupPayload](t, rec)
	if !payload.AllTime || !payload.NoDetails {
		t.Fatalf("flags = %+v", payload)
	}
	if payload.Period != nil {
		t.Errorf("period should be absent in all-time view: %+v", payload.Period)
	}
	food := payload.Categories[1]
	if food.Used != 30 {
		t.Errorf("all-time used = %d, want 30", food.Used)
	}
	if food.Details != nil {
		t.Errorf("details should be suppressed: %+v", food.Details)
	}
}

func TestNotFoundMapping(t *testing.T) {
	if !errors.Is(fmt.Errorf("get project: %w", storage.ErrNotFound), storage.ErrNotFound) {
		t.Fatal("wrapped storage.ErrNotFound must unwrap")
	}
}
