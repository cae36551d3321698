// Package memory provides an in-process export backend for local runs and
// tests, so the worker can be exercised without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "quantifier/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	rows  []ports.ExportRow
	index map[int64]int
}

var (
	_ ports.QuantityWriter  = (*Store)(nil)
	_ ports.QuantityDeleter = (*Store)(nil)
)

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row ports.ExportRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[row.QuantityID]; ok {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, row)
	s.index[row.QuantityID] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Delete clears the row for the quantity; missing rows are ignored. The
// store is not sharded, so the recorded date is unused.
func (s *Store) Delete(_ context.Context, quantityID int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[quantityID]
	if !ok {
		return nil
	}
	s.rows[i] = ports.ExportRow{}
	delete(s.index, quantityID)
	return nil
}

// Rows returns a copy of the stored rows, cleared slots included.
func (s *Store) Rows() []ports.ExportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ExportRow(nil), s.rows...)
}
