package http

import (
	"net/http"
)

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Load(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// prefsUpdate carries partial preference updates; absent fields stay
// untouched.
type prefsUpdate struct {
	OnboardingDone *bool  `json:"onboardingDone"`
	Currency       *int   `json:"currency"`
	DateFormat     *int   `json:"dateFormat"`
	ReportFilter   *int   `json:"reportFilter"`
	BackupCreation *int64 `json:"backupCreation"`
	BackupRecover  *int64 `json:"backupRecover"`
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	var upd prefsUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	ctx := r.Context()
	apply := []struct {
		set func() error
		ok  bool
	}{
		{func() error { return s.prefs.SetOnboardingDone(ctx, *upd.OnboardingDone) }, upd.OnboardingDone != nil},
		{func() error { return s.prefs.SetCurrency(ctx, *upd.Currency) }, upd.Currency != nil},
		{func() error { return s.prefs.SetDateFormat(ctx, *upd.DateFormat) }, upd.DateFormat != nil},
		{func() error { return s.prefs.SetReportFilter(ctx, *upd.ReportFilter) }, upd.ReportFilter != nil},
		{func() error { return s.prefs.SetBackupCreation(ctx, *upd.BackupCreation) }, upd.BackupCreation != nil},
		{func() error { return s.prefs.SetBackupRecover(ctx, *upd.BackupRecover) }, upd.BackupRecover != nil},
	}
	for _, a := range apply {
		if !a.ok {
			continue
		}
		if err := a.set(); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}

	p, err := s.prefs.Load(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
