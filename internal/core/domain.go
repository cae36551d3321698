package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a calendar day; the time of day is never inspected by the
	// aggregation engine.
	Date struct {
		time.Time
	}

	// Project is the top-level budget configuration owning a category tree.
	// IntervalQuantity is the optional overall budget per unit of Interval;
	// nil means no overall budget and is distinct from an explicit zero.
	Project struct {
		ID                 int64
		Name               string
		Description        string
		Interval           Interval
		IntervalQuantity   *int64
		GoalMode           bool
		QuantityName       string
		QuickAddQuantities string
		SortOrder          int
	}

	// Category is a node in a project's tree. The root category has
	// ParentID 0 and an empty name; exactly one exists per project.
	// ExpectedQuantity is the plan per one unit of the project's own
	// interval; nil means no plan set.
	Category struct {
		ID               int64
		ProjectID        int64
		ParentID         int64
		Name             string
		Description      string
		ExpectedQuantity *int64
		SortOrder        int
	}

	// Quantity is one recorded observation in a category.
	Quantity struct {
		ID          int64
		CategoryID  int64
		Name        string
		Description string
		Value       int64
		RecordedOn  Date
	}
)

var (
	ErrEmptyName        = errors.New("empty name")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrNegativeValue    = errors.New("value must not be negative")
	ErrNegativeQuantity = errors.New("planned quantity must not be negative")
	ErrMissingCategory  = errors.New("quantity must belong to a category")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// HasInterval reports whether the project has a native periodicity.
func (p Project) HasInterval() bool {
	return p.Interval != "" && p.Interval != IntervalNone
}

// HasIntervalQuantity reports whether an overall budget is configured.
func (p Project) HasIntervalQuantity() bool {
	return p.IntervalQuantity != nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if _, err := ParseInterval(string(p.Interval)); err != nil {
		return err
	}
	if p.IntervalQuantity != nil && *p.IntervalQuantity < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// IsRoot reports whether the category is its project's sentinel root.
func (c Category) IsRoot() bool {
	return c.ParentID == 0
}

func (c Category) Validate() error {
	if !c.IsRoot() && strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.ExpectedQuantity != nil && *c.ExpectedQuantity < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

func (q Quantity) Validate() error {
	if q.CategoryID == 0 {
		return ErrMissingCategory
	}
	if q.Value < 0 {
		return ErrNegativeValue
	}
	return q.RecordedOn.Validate()
}
