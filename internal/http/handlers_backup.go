package http

import (
	"net/http"

	"bucks/internal/backup"
)

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.backups.Export(r.Context())
	s.respondOutcome(w, r, outcome, err)
}

func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.backups.Import(r.Context())
	s.respondOutcome(w, r, outcome, err)
}

func (s *Server) respondOutcome(w http.ResponseWriter, r *http.Request, outcome backup.Outcome, err error) {
	if err != nil {
		// The outcome already carries the failure; surface it with an
		// error status instead of the generic mapping.
		respondJSON(w, http.StatusInternalServerError, outcome)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

type backupStatus struct {
	LastExport int64 `json:"lastExport"`
	LastImport int64 `json:"lastImport"`
}

func (s *Server) handleBackupStatus(w http.ResponseWriter, r *http.Request) {
	exported, restored, err := s.backups.LastRun(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, backupStatus{LastExport: exported, LastImport: restored})
}
