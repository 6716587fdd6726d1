package http

import (
	"net/http"

	"bucks/internal/core"
)

func (s *Server) handleListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := s.funds.ListFunds(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if funds == nil {
		funds = []core.Fund{}
	}
	respondJSON(w, http.StatusOK, funds)
}

func (s *Server) handleCreateFund(w http.ResponseWriter, r *http.Request) {
	var f core.Fund
	if !decodeJSON(w, r, &f) {
		return
	}
	created, err := s.funds.CreateFund(r.Context(), f)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetFund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, err := s.funds.GetFund(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var f core.Fund
	if !decodeJSON(w, r, &f) {
		return
	}
	f.ID = id
	if err := s.funds.UpdateFund(r.Context(), f); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.funds.DeleteFund(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFundComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fwm, err := s.funds.GetFundComplete(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if fwm == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, fwm)
}
