package http

import (
	"net/http"

	applog "finboard/internal/log"
)

// handleSummary answers GET /api/dashboard/summary?asOf=YYYY-MM-DD.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w)
		return
	}
	asOf, err := parseDateParam(r.URL.Query(), "asOf")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := s.userID(r)

	summary, err := s.svc.Summaries.Summarize(r.Context(), userID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(summary.FallbackRates) > 0 {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Summary used fallback rates",
			applog.FieldUserID, userID,
			"pairs", summary.FallbackRates)
	}
	NewJSONResponse().Body(encoder{rule: summary.RoundingRule}.summary(summary)).Write(w)
}

// handleSnapshotExport answers POST /api/snapshots/export?asOf=YYYY-MM-DD. The export
// is queued when a worker is reachable and runs inline otherwise.
func (s *Server) handleSnapshotExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}
	asOf, err := parseDateParam(r.URL.Query(), "asOf")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if asOf.IsEmpty() {
		asOf = s.today()
	}
	userID := s.userID(r)

	ref, queued, err := s.svc.Jobs.ExportSnapshot(r.Context(), userID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Snapshot export requested",
		applog.FieldUserID, userID,
		applog.FieldAsOf, asOf.String(),
		"queued", queued,
		"ref", ref)

	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	NewJSONResponse().Status(status).Body(jobDTO{Queued: queued, Ref: ref}).Write(w)
}
