package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/quartzlabs/wikiexport/internal/errors"
	"github.com/quartzlabs/wikiexport/internal/server/middleware"
	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/jobstore"
	"github.com/quartzlabs/wikiexport/pkg/scope"
)

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Version)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.deps.Store.ListJobs(r.Context())
	if err != nil {
		h.internal(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*job.ExportJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// createRequest is the POST /v1/jobs body.
type createRequest struct {
	Kind   job.Kind        `json:"kind"`
	Owner  job.Owner       `json:"owner"`
	Scope  json.RawMessage `json:"scope"`
	Format job.Format      `json:"format"`
}

func (h *handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.invalid(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validateCreate(&req); err != nil {
		h.invalid(w, r, err.Error())
		return
	}

	sc, err := scope.Parse(req.Scope)
	if err != nil {
		h.invalid(w, r, fmt.Sprintf("invalid scope: %v", err))
		return
	}
	scopeHash, err := scope.Hash(sc)
	if err != nil {
		h.internal(w, r, err)
		return
	}

	// An in-progress job with the same identity is already producing
	// this artifact; creating a second would duplicate the work.
	dup, err := h.deps.Store.FindInProgressDuplicate(r.Context(), req.Kind, scopeHash, req.Format)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	if dup != nil {
		apperrors.WriteError(w, http.StatusConflict, apperrors.CodeConflict,
			fmt.Sprintf("an export with the same kind, scope, and format is already in progress: %s", dup.ID),
			middleware.RequestIDFrom(r.Context()))
		return
	}

	created, err := h.deps.Store.CreateJob(r.Context(), jobstore.CreateJobParams{
		Kind:      req.Kind,
		Owner:     req.Owner,
		ScopeJSON: req.Scope,
		ScopeHash: scopeHash,
		Format:    req.Format,
	})
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.deps.Store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, jobstore.ErrNotFound) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound,
			"job not found", middleware.RequestIDFrom(r.Context()))
		return
	}
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *handler) restartJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := h.deps.Store.GetJob(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.CodeNotFound,
			"job not found", middleware.RequestIDFrom(r.Context()))
		return
	}
	if err != nil {
		h.internal(w, r, err)
		return
	}
	if j.Status.Terminal() {
		h.invalid(w, r, fmt.Sprintf("job is %s; only in-progress jobs can be restarted", j.Status))
		return
	}

	if err := h.deps.Store.RequestRestart(r.Context(), id); err != nil {
		h.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "restart": "requested"})
}

func (h *handler) validateCreate(req *createRequest) error {
	switch req.Kind {
	case job.KindPages, job.KindActivity:
	default:
		return fmt.Errorf("unknown kind %q", req.Kind)
	}
	switch req.Format {
	case job.FormatMarkdown, job.FormatHTML, job.FormatJSON:
	case job.FormatPDF:
		if !h.deps.PDFEnabled {
			return fmt.Errorf("pdf export is unavailable: no conversion service is configured")
		}
	default:
		return fmt.Errorf("unknown format %q", req.Format)
	}
	if req.Owner.ID == "" {
		return fmt.Errorf("owner.id is required")
	}
	return nil
}

func (h *handler) invalid(w http.ResponseWriter, r *http.Request, msg string) {
	apperrors.WriteError(w, http.StatusBadRequest, apperrors.CodeInvalidRequest,
		msg, middleware.RequestIDFrom(r.Context()))
}

func (h *handler) internal(w http.ResponseWriter, r *http.Request, err error) {
	h.deps.Logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	apperrors.WriteError(w, http.StatusInternalServerError, apperrors.CodeInternal,
		"internal error", middleware.RequestIDFrom(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
