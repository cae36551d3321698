package http

import (
	"net/http"
)

// handleRollup serves the aggregated view of a project for a reference date
// and display interval. The date defaults to today; the interval defaults to
// the project's own. Unknown intervals and malformed dates are rejected.
func (s *Server) handleRollup(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params, err := parseRollupParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.rollup.Rollup(r.Context(), projectID, params.date, params.interval)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupPayload(result))
}
