package core

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoRootCategory    = errors.New("project has no root category")
	ErrMultipleRoots     = errors.New("project has more than one root category")
	ErrCategoryNotInTree = errors.New("category not found in tree")
)

// CategoryTree is an immutable snapshot of a project's categories, indexed by
// id. It is built once per aggregation call from the flat list returned by
// storage; relationships are id references, never live pointers, so one
// snapshot can serve concurrent reads.
type CategoryTree struct {
	ordered  []Category // depth-first, root first, siblings in sort order
	index    map[int64]int
	children map[int64][]int64
	levels   map[int64]int
	rootID   int64
}

// NewCategoryTree builds a snapshot from a project's categories in any order.
// It fails when there is no single root, when a parent reference points
// outside the list, or when a category is unreachable from the root.
func NewCategoryTree(categories []Category) (*CategoryTree, error) {
	t := &CategoryTree{
		index:    make(map[int64]int, len(categories)),
		children: make(map[int64][]int64),
		levels:   make(map[int64]int, len(categories)),
	}

	byID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %d", c.ID)
		}
		byID[c.ID] = c
		if c.IsRoot() {
			if t.rootID != 0 {
				return nil, ErrMultipleRoots
			}
			t.rootID = c.ID
		}
	}
	if t.rootID == 0 {
		return nil, ErrNoRootCategory
	}

	for _, c := range categories {
		if c.IsRoot() {
			continue
		}
		if _, ok := byID[c.ParentID]; !ok {
			return nil, fmt.Errorf("category %d references unknown parent %d", c.ID, c.ParentID)
		}
		t.children[c.ParentID] = append(t.children[c.ParentID], c.ID)
	}
	for _, ids := range t.children {
		sort.Slice(ids, func(a, b int) bool {
			ca, cb := byID[ids[a]], byID[ids[b]]
			if ca.SortOrder != cb.SortOrder {
				return ca.SortOrder < cb.SortOrder
			}
			return ca.ID < cb.ID
		})
	}

	t.ordered = make([]Category, 0, len(categories))
	var walk func(id int64, level int)
	walk = func(id int64, level int) {
		t.index[id] = len(t.ordered)
		t.ordered = append(t.ordered, byID[id])
		t.levels[id] = level
		for _, child := range t.children[id] {
			walk(child, level+1)
		}
	}
	walk(t.rootID, 0)

	if len(t.ordered) != len(categories) {
		return nil, fmt.Errorf("%d categories unreachable from root", len(categories)-len(t.ordered))
	}
	return t, nil
}

// Len returns the number of categories, root included.
func (t *CategoryTree) Len() int {
	return len(t.ordered)
}

// RootID returns the id of the sentinel root category.
func (t *CategoryTree) RootID() int64 {
	return t.rootID
}

// Root returns the sentinel root category.
func (t *CategoryTree) Root() Category {
	return t.ordered[t.index[t.rootID]]
}

// Categories returns all categories in depth-first order, parents before
// children. Callers must not mutate the returned slice.
func (t *CategoryTree) Categories() []Category {
	return t.ordered
}

// Get returns the category with the given id.
func (t *CategoryTree) Get(id int64) (Category, bool) {
	i, ok := t.index[id]
	if !ok {
		return Category{}, false
	}
	return t.ordered[i], true
}

// Level returns the depth of a category, 0 for the root.
func (t *CategoryTree) Level(id int64) int {
	return t.levels[id]
}

// Children returns the direct children of a category in sibling order.
func (t *CategoryTree) Children(id int64) []Category {
	ids := t.children[id]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Category, len(ids))
	for i, childID := range ids {
		out[i] = t.ordered[t.index[childID]]
	}
	return out
}

// Parent returns the parent of a category; ok is false for the root or an
// unknown id.
func (t *CategoryTree) Parent(id int64) (Category, bool) {
	c, ok := t.Get(id)
	if !ok || c.IsRoot() {
		return Category{}, false
	}
	return t.Get(c.ParentID)
}

// Ancestors returns the chain from the root down to (excluding) the category.
func (t *CategoryTree) Ancestors(id int64) []Category {
	var out []Category
	for {
		parent, ok := t.Parent(id)
		if !ok {
			break
		}
		out = append(out, parent)
		id = parent.ID
	}
	// collected bottom-up, reverse to root-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Descendants returns every category below the given one, depth-first.
func (t *CategoryTree) Descendants(id int64) []Category {
	start, ok := t.index[id]
	if !ok {
		return nil
	}
	level := t.levels[id]
	var out []Category
	for _, c := range t.ordered[start+1:] {
		if t.levels[c.ID] <= level {
			break
		}
		out = append(out, c)
	}
	return out
}

// Siblings returns the other children of the category's parent, in order.
func (t *CategoryTree) Siblings(id int64) []Category {
	c, ok := t.Get(id)
	if !ok || c.IsRoot() {
		return nil
	}
	var out []Category
	for _, sibling := range t.Children(c.ParentID) {
		if sibling.ID != id {
			out = append(out, sibling)
		}
	}
	return out
}
