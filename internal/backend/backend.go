// Package backend selects the export destination for the worker.
package backend

// Type represents an export backend.
type Type string

const (
	// Memory keeps exported rows in process memory. Useful for local
	// development and tests.
	Memory Type = "memory"
	// Google appends exported rows to a Google Sheets spreadsheet.
	Google Type = "google"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case Memory, Google:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{Memory, Google}
}
