package google

import (
	"fmt"
	"strconv"
	"strings"
)

// findRowByID scans an ID column (as returned by the Sheets API) and returns
// the zero-based row index of the matching quantity ID, or -1. Header rows
// and blanks parse as non-numeric and are skipped.
func findRowByID(values [][]interface{}, id int64) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(row[0]))
		if cell == "" {
			continue
		}
		parsed, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			continue
		}
		if parsed == id {
			return i
		}
	}
	return -1
}
