package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"riskwatch/internal/adapters/postgres"
	"riskwatch/internal/domain"
	"riskwatch/internal/ports"
	"riskwatch/internal/workers/syncrunner"
)

// Server exposes the sync and read operations over HTTP. Presentation beyond
// this thin surface (dashboards, review UIs) lives elsewhere.
type Server struct {
	syncer ports.Syncer
	intel  ports.IntelligenceReader
	scores ports.ScoreRepository
	alerts ports.AlertRepository
	jobs   ports.JobRepository
}

func New(syncer ports.Syncer, intel ports.IntelligenceReader, scores ports.ScoreRepository, alerts ports.AlertRepository, jobs ports.JobRepository) *Server {
	return &Server{syncer: syncer, intel: intel, scores: scores, alerts: alerts, jobs: jobs}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Post("/vendors/{id}/sync", s.syncVendor)
	r.Get("/vendors/{id}/intelligence", s.vendorIntelligence)
	r.Get("/vendors/{id}/score", s.vendorScore)
	r.Post("/syncs/batch", s.syncBatch)
	r.Post("/alerts/{id}/read", s.markRead)
	r.Post("/alerts/{id}/dismiss", s.dismissAlert)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type syncRequest struct {
	Sources  []domain.Source `json:"sources,omitempty"`
	Domain   string          `json:"domain,omitempty"`
	FilingID string          `json:"filing_id,omitempty"`
	Keywords []string        `json:"keywords,omitempty"`
}

func (o syncRequest) options() domain.SyncOptions {
	return domain.SyncOptions{
		Sources:  o.Sources,
		Domain:   o.Domain,
		FilingID: o.FilingID,
		Keywords: o.Keywords,
	}
}

// syncVendor triggers one vendor's refresh. With ?wait=true the sync runs
// inline through the same job path the background workers use; otherwise a
// job is queued and 202 returned.
func (s *Server) syncVendor(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if r.URL.Query().Get("wait") == "true" {
		res, err := syncrunner.ProcessInline(r.Context(), s.jobs, s.syncer, vendorID, req.options())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	jobID, err := s.jobs.Enqueue(r.Context(), vendorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

type batchRequest struct {
	VendorIDs []string `json:"vendor_ids"`
	syncRequest
}

func (s *Server) syncBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.VendorIDs) == 0 {
		writeError(w, http.StatusBadRequest, "vendor_ids is required")
		return
	}
	res := s.syncer.SyncBatch(r.Context(), req.VendorIDs, req.options())
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) vendorIntelligence(w http.ResponseWriter, r *http.Request) {
	view, err := s.intel.GetIntelligence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) vendorScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.scores.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "no score computed yet")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	s.triage(w, r, s.alerts.MarkRead)
}

func (s *Server) dismissAlert(w http.ResponseWriter, r *http.Request) {
	s.triage(w, r, s.alerts.Dismiss)
}

func (s *Server) triage(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	if err := op(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
