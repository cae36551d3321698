// Package services provides business logic and orchestration on top of the
// storage layer: snapshot assembly for the aggregation engine, tree cache
// invalidation and export event publishing.
package services

import (
	"context"

	"quantifier/internal/core"
)

type (
	// ProjectStore is the storage surface project orchestration needs.
	ProjectStore interface {
		CreateProject(ctx context.Context, p core.Project) (core.Project, error)
		GetProject(ctx context.Context, id int64) (core.Project, error)
		ListProjects(ctx context.Context) ([]core.Project, error)
		UpdateProject(ctx context.Context, p core.Project) error
		DeleteProject(ctx context.Context, id int64) error
	}

	// CategoryStore gives access to a project's category tree rows.
	CategoryStore interface {
		ListCategories(ctx context.Context, projectID int64) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id int64) error
	}

	// QuantityStore records and lists observations.
	QuantityStore interface {
		CreateQuantity(ctx context.Context, q core.Quantity) (core.Quantity, error)
		GetQuantity(ctx context.Context, id int64) (core.Quantity, error)
		UpdateQuantity(ctx context.Context, q core.Quantity) error
		DeleteQuantity(ctx context.Context, id int64) error
		ListQuantities(ctx context.Context, projectID, categoryID int64, dr *core.DateRange, limit int) ([]core.Quantity, error)
	}

	// SnapshotStore provides the two queries an aggregation call reads up
	// front: the category tree and the per-category direct sums over an
	// optional range.
	SnapshotStore interface {
		GetProject(ctx context.Context, id int64) (core.Project, error)
		ListCategories(ctx context.Context, projectID int64) ([]core.Category, error)
		SumQuantities(ctx context.Context, projectID int64, dr *core.DateRange) (map[int64]int64, error)
	}

	// ExportPublisher announces quantity writes to the export pipeline.
	// A nil publisher disables exporting.
	ExportPublisher interface {
		PublishQuantityExport(ctx context.Context, id int64) error
		PublishQuantityDelete(ctx context.Context, q core.Quantity) error
	}
)
