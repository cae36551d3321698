package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quantifier/internal/core"
)

// ErrCategoryMismatch is returned when a quantity references a category
// outside the project it was addressed to.
var ErrCategoryMismatch = errors.New("category does not belong to this project")

// QuantityService records observations and feeds the export pipeline.
// Quantity writes do not touch the tree cache: they change sums, which are
// never cached, not structure.
type QuantityService struct {
	store     QuantityStore
	rollup    *RollupService
	publisher ExportPublisher
}

func NewQuantityService(store QuantityStore, rollup *RollupService, publisher ExportPublisher) *QuantityService {
	return &QuantityService{store: store, rollup: rollup, publisher: publisher}
}

// Record validates and stores a quantity, then announces it to the export
// queue. Export failures are logged, not returned: the row stays pending and
// the worker's reconciliation pass picks it up.
func (s *QuantityService) Record(ctx context.Context, projectID int64, q core.Quantity) (core.Quantity, error) {
	if err := q.Validate(); err != nil {
		return core.Quantity{}, fmt.Errorf("validate quantity: %w", err)
	}
	if err := s.checkCategory(ctx, projectID, q.CategoryID); err != nil {
		return core.Quantity{}, err
	}

	created, err := s.store.CreateQuantity(ctx, q)
	if err != nil {
		return core.Quantity{}, fmt.Errorf("create quantity: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishQuantityExport(ctx, created.ID); err != nil {
			slog.WarnContext(ctx, "Failed to publish quantity export, left pending",
				"quantity_id", created.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Quantity recorded",
		"quantity_id", created.ID,
		"project_id", projectID,
		"category_id", created.CategoryID,
		"value", created.Value,
		"date", created.RecordedOn.Format("2006-01-02"))
	return created, nil
}

func (s *QuantityService) Update(ctx context.Context, projectID int64, q core.Quantity) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("validate quantity: %w", err)
	}
	if err := s.checkCategory(ctx, projectID, q.CategoryID); err != nil {
		return err
	}
	if err := s.store.UpdateQuantity(ctx, q); err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishQuantityExport(ctx, q.ID); err != nil {
			slog.WarnContext(ctx, "Failed to publish quantity export, left pending",
				"quantity_id", q.ID, "error", err)
		}
	}
	return nil
}

func (s *QuantityService) Delete(ctx context.Context, id int64) error {
	q, err := s.store.GetQuantity(ctx, id)
	if err != nil {
		return fmt.Errorf("get quantity: %w", err)
	}
	if err := s.store.DeleteQuantity(ctx, id); err != nil {
		return fmt.Errorf("delete quantity: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishQuantityDelete(ctx, q); err != nil {
			slog.WarnContext(ctx, "Failed to publish quantity deletion",
				"quantity_id", id, "error", err)
		}
	}

	slog.InfoContext(ctx, "Quantity deleted", "quantity_id", id, "category_id", q.CategoryID)
	return nil
}

func (s *QuantityService) Get(ctx context.Context, id int64) (core.Quantity, error) {
	return s.store.GetQuantity(ctx, id)
}

// List returns a project's quantities, optionally narrowed to one category
// and a period of the given interval around date.
func (s *QuantityService) List(ctx context.Context, projectID, categoryID int64, dr *core.DateRange, limit int) ([]core.Quantity, error) {
	return s.store.ListQuantities(ctx, projectID, categoryID, dr, limit)
}

func (s *QuantityService) checkCategory(ctx context.Context, projectID, categoryID int64) error {
	tree, err := s.rollup.CategoryTree(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProjectMissing, err)
	}
	if _, ok := tree.Get(categoryID); !ok {
		return ErrCategoryMismatch
	}
	return nil
}
