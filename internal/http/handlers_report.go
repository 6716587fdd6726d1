package http

import (
	"log/slog"
	"net/http"
	"strings"

	"bucks/internal/core"
	"bucks/internal/report"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("window"))
	if name == "" {
		name = "ever"
	}
	window, err := report.ParseWindow(name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	normalize := r.URL.Query().Get("normalize") == "true"

	if rep, found := s.reportCache.Get(name); found {
		slog.DebugContext(r.Context(), "Report cache hit", "window", name)
		respondJSON(w, http.StatusOK, presentReport(rep, normalize))
		return
	}

	funds, err := s.funds.ListFundsComplete(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	rep := report.Compute(funds, window, core.NowMillis())
	s.reportCache.Set(name, rep)

	respondJSON(w, http.StatusOK, presentReport(rep, normalize))
}

type reportResponse struct {
	Window string              `json:"window"`
	Global report.Totals       `json:"global"`
	Funds  []report.FundReport `json:"funds"`
}

func presentReport(rep report.Report, normalize bool) reportResponse {
	out := reportResponse{
		Window: rep.Window.String(),
		Global: rep.Global,
		Funds:  rep.Funds,
	}
	if normalize {
		out.Global = out.Global.Normalized()
		scaled := make([]report.FundReport, len(out.Funds))
		for i, fr := range out.Funds {
			fr.Totals = fr.Totals.Normalized()
			scaled[i] = fr
		}
		out.Funds = scaled
	}
	if out.Funds == nil {
		out.Funds = []report.FundReport{}
	}
	return out
}
