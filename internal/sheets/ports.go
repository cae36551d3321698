package sheets

import (
	"context"
)

// ExportRow is the flattened form of a quantity written to a spreadsheet.
type ExportRow struct {
	QuantityID int64
	Project    string
	Category   string
	Name       string
	Value      int64
	RecordedOn string // YYYY-MM-DD
}

// Ports for outbound adapters.
type (
	// QuantityWriter appends an exported quantity row and returns a
	// backend-specific row reference.
	QuantityWriter interface {
		Append(ctx context.Context, row ExportRow) (rowRef string, err error)
	}

	// QuantityDeleter clears the exported row for a removed quantity.
	// recordedOn (YYYY-MM-DD, may be empty) locates the row in backends
	// that shard by year.
	QuantityDeleter interface {
		Delete(ctx context.Context, quantityID int64, recordedOn string) error
	}

	// Exporter is the full surface the export worker needs.
	Exporter interface {
		QuantityWriter
		QuantityDeleter
	}
)
