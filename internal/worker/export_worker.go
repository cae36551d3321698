// Package worker moves recorded quantities from SQLite to the spreadsheet
// backend. The queue is the fast path; a periodic reconciliation pass over
// pending rows covers lost messages and worker downtime.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quantifier/internal/amqp"
	"quantifier/internal/core"
	"quantifier/internal/sheets"
	"quantifier/internal/storage"
)

// Storage is the persistence surface the export worker needs.
type Storage interface {
	GetQuantity(ctx context.Context, id int64) (core.Quantity, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	GetProject(ctx context.Context, id int64) (core.Project, error)
	GetPendingExportQuantities(ctx context.Context, limit int) ([]core.Quantity, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error
}

// ExportWorker handles export of quantities from SQLite to a sheet backend.
type ExportWorker struct {
	storage   Storage
	exporter  sheets.Exporter
	batchSize int
}

func NewExportWorker(storage Storage, exporter sheets.Exporter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single message from the export queue.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportMessage) error {
	switch msg.Kind {
	case amqp.KindUpsert:
		return w.exportQuantity(ctx, msg.ID)
	case amqp.KindDelete:
		slog.InfoContext(ctx, "Clearing exported quantity",
			"id", msg.ID, "recorded_on", msg.RecordedOn)
		if err := w.exporter.Delete(ctx, msg.ID, msg.RecordedOn); err != nil {
			return fmt.Errorf("delete exported quantity %d: %w", msg.ID, err)
		}
		return nil
	default:
		// Unknown kinds are dropped, requeueing would loop forever.
		slog.WarnContext(ctx, "Dropping export message of unknown kind",
			"kind", msg.Kind, "id", msg.ID)
		return nil
	}
}

// ProcessPending exports quantities still marked pending. This is the backup
// mechanism in case queue messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupCheck drains a larger pending batch once at worker startup to
// recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingExportQuantities(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending quantities for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending quantities found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending quantities on startup, processing",
		"count", len(pending))

	exported := 0
	failed := 0
	for _, q := range pending {
		if err := w.exportQuantity(ctx, q.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export quantity during startup",
				"id", q.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ExportWorker) processPending(ctx context.Context, limit int) error {
	pending, err := w.storage.GetPendingExportQuantities(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending quantities: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending quantities", "count", len(pending))
	for _, q := range pending {
		if err := w.exportQuantity(ctx, q.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export quantity", "id", q.ID, "error", err)
		}
	}
	return nil
}

// exportQuantity fetches the row and its naming context, appends it to the
// sheet and advances the export state.
func (w *ExportWorker) exportQuantity(ctx context.Context, id int64) error {
	quantity, err := w.storage.GetQuantity(ctx, id)
	if err != nil {
		// A row deleted between publish and handling is terminal: erroring
		// here would requeue the message forever with nothing left to export.
		if errors.Is(err, storage.ErrNotFound) {
			slog.InfoContext(ctx, "Quantity gone before export, dropping", "id", id)
			return nil
		}
		w.markError(ctx, id)
		return fmt.Errorf("get quantity from storage: %w", err)
	}

	category, err := w.storage.GetCategory(ctx, quantity.CategoryID)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("get category %d: %w", quantity.CategoryID, err)
	}

	project, err := w.storage.GetProject(ctx, category.ProjectID)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("get project %d: %w", category.ProjectID, err)
	}

	row := sheets.ExportRow{
		QuantityID: quantity.ID,
		Project:    project.Name,
		Category:   category.Name,
		Name:       quantity.Name,
		Value:      quantity.Value,
		RecordedOn: quantity.RecordedOn.Format("2006-01-02"),
	}

	ref, err := w.exporter.Append(ctx, row)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		// The export itself worked, keep going.
		slog.ErrorContext(ctx, "Failed to mark quantity exported", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Exported quantity",
		"id", id,
		"sheets_ref", ref,
		"project", project.Name,
		"category", category.Name,
		"value", quantity.Value)
	return nil
}

func (w *ExportWorker) markError(ctx context.Context, id int64) {
	if err := w.storage.MarkExportError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", err)
	}
}
