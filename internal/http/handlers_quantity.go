package http

import (
	"net/http"
)

func (s *Server) handleListQuantities(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quantities, err := s.quantities.List(r.Context(), projectID, params.categoryID, params.dateRange, params.limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]quantityPayload, 0, len(quantities))
	for _, q := range quantities {
		out = append(out, toQuantityPayload(q))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecordQuantity(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quantity, err := req.toQuantity(0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.quantities.Record(r.Context(), projectID, quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuantityPayload(created))
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := s.quantities.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	category, err := s.categories.Get(r.Context(), existing.CategoryID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quantity, err := req.toQuantity(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.quantities.Update(r.Context(), category.ProjectID, quantity); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuantityPayload(quantity))
}

func (s *Server) handleDeleteQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.quantities.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
