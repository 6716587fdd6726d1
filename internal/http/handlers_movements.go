package http

import (
	"net/http"
	"strings"

	"bucks/internal/core"
	"bucks/internal/services"
)

// movementRequest is the wire form of a transfer request. Direction is
// relative to the fund in the URL: "in" receives, "out" sends.
type movementRequest struct {
	Direction        string `json:"direction"`
	CounterpartyID   *int64 `json:"counterpartyID"`
	CounterpartyName string `json:"counterpartyName"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Amount           string `json:"amount"`
}

func (s *Server) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var direction core.Direction
	switch strings.ToLower(strings.TrimSpace(req.Direction)) {
	case "in":
		direction = core.In
	case "out":
		direction = core.Out
	default:
		respondError(w, http.StatusBadRequest, "direction must be \"in\" or \"out\"")
		return
	}

	m, err := s.movements.Record(r.Context(), services.MovementInput{
		ActiveFundID:     id,
		Direction:        direction,
		CounterpartyID:   req.CounterpartyID,
		CounterpartyName: req.CounterpartyName,
		Title:            req.Title,
		Description:      req.Description,
		AmountText:       req.Amount,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := s.movements.ListMovements(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if movements == nil {
		movements = []core.Movement{}
	}
	respondJSON(w, http.StatusOK, movements)
}

func (s *Server) handleGetMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := s.movements.GetMovement(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.movements.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
