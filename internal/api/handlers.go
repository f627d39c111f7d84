package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/review"
)

type importRequest struct {
	importer.RunOptions
	Records []model.BusinessRecord `json:"records"`
}

func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "records are required")
		return
	}
	if req.Source == "" {
		req.Source = importer.DefaultOptions().ImportSource
	}
	if req.Type == "" {
		req.Type = "api"
	}

	out, err := s.svc.Runner.Run(r.Context(), req.Records, req.RunOptions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	status := model.BatchStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}
	list, err := s.svc.Tracker.List(r.Context(), queryInt(r, "limit", 50), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getImport(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteImport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Tracker.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fixPending(w http.ResponseWriter, r *http.Request) {
	fixes, err := s.svc.Tracker.FixPending(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fixed": len(fixes), "batches": fixes})
}

func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Tracker.CleanupOld(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) exportImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exp, err := s.svc.Tracker.Export(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-%s.json"`, id))
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) validateImport(w http.ResponseWriter, r *http.Request) {
	full, _ := strconv.ParseBool(r.URL.Query().Get("full"))
	res, err := s.svc.Validator.Run(r.Context(), chi.URLParam(r, "id"), full)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listValidations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Validator.List(r.Context(), r.URL.Query().Get("batch_id"), queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) analyzeReviews(w http.ResponseWriter, r *http.Request) {
	req := review.Request{SkipExisting: true}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	req.BusinessID = chi.URLParam(r, "id")

	resp, err := s.svc.Reviews.AnalyzeBusiness(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Sources.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type sourceUpdate struct {
	// Source forces that source's latest value active and locks the field.
	Source string `json:"source"`
	// Locked without Source locks or unlocks the field as it stands.
	Locked *bool `json:"locked"`
}

func (s *Server) updateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceUpdate
	if !decode(w, r, &req) {
		return
	}
	id, field := chi.URLParam(r, "id"), chi.URLParam(r, "field")

	var (
		rec *model.SourceRecord
		err error
	)
	switch {
	case req.Source != "":
		rec, err = s.svc.Sources.SetActiveSource(r.Context(), id, field, req.Source)
	case req.Locked != nil && *req.Locked:
		rec, err = s.svc.Sources.Lock(r.Context(), id, field)
	case req.Locked != nil:
		rec, err = s.svc.Sources.Unlock(r.Context(), id, field)
	default:
		writeError(w, http.StatusBadRequest, "source or locked is required")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func queryInt(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n > 0 {
		return n
	}
	return def
}
