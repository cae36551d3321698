package backend

import (
	"context"
	"fmt"

	applog "quantifier/internal/log"
	"quantifier/internal/sheets"
	gsheet "quantifier/internal/sheets/google"
	"quantifier/internal/sheets/memory"
)

// NewExporter builds the exporter named by the given backend type.
func NewExporter(ctx context.Context, t Type, logger *applog.Logger) (sheets.Exporter, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentSheets)
	}

	switch t {
	case Google:
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize google sheets client: %w", err)
		}
		logger.Info("Initialized Google Sheets export backend")
		return cli, nil
	case Memory:
		logger.Info("Initialized memory export backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported export backend: %q", t)
	}
}
