package google

import (
	"testing"
	"time"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		year     int
		expected string
	}{
		{"plain base", "Quantities", 2024, "2024 Quantities"},
		{"already prefixed", "2023 Quantities", 2024, "2023 Quantities"},
		{"empty base", "", 2024, ""},
		{"whitespace base", "  Quantities  ", 2024, "2024 Quantities"},
		{"short base", "Q", 2024, "2024 Q"},
		{"numeric but not a year", "1234Quantities", 2024, "2024 1234Quantities"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := yearPrefixedName(tt.base, tt.year)
			if got != tt.expected {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.expected)
			}
		})
	}
}

// Rows live in the sheet of the year they were recorded in, so deletes must
// target that shard even when handled in a later year.
func TestYearOf(t *testing.T) {
	tests := []struct {
		name       string
		recordedOn string
		expected   int
	}{
		{"past year", "2024-08-07", 2024},
		{"year boundary", "2025-12-31", 2025},
		{"empty falls back to current year", "", time.Now().Year()},
		{"malformed falls back to current year", "07-08-2024", time.Now().Year()},
		{"whitespace tolerated", " 2023-01-15 ", 2023},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := yearOf(tt.recordedOn); got != tt.expected {
				t.Errorf("yearOf(%q) = %d, want %d", tt.recordedOn, got, tt.expected)
			}
		})
	}
}

func TestFindRowByID(t *testing.T) {
	values := [][]interface{}{
		{"ID"}, // header
		{"101"},
		{""},
		{103},
		{"not a number"},
		{"105"},
	}

	tests := []struct {
		name     string
		id       int64
		expected int
	}{
		{"first data row", 101, 1},
		{"numeric cell", 103, 3},
		{"last row", 105, 5},
		{"missing", 999, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findRowByID(values, tt.id)
			if got != tt.expected {
				t.Errorf("findRowByID(values, %d) = %d, want %d", tt.id, got, tt.expected)
			}
		})
	}
}

func TestFindRowByIDEmpty(t *testing.T) {
	if got := findRowByID(nil, 1); got != -1 {
		t.Errorf("findRowByID(nil, 1) = %d, want -1", got)
	}
	if got := findRowByID([][]interface{}{{}}, 1); got != -1 {
		t.Errorf("findRowByID with empty row = %d, want -1", got)
	}
}
