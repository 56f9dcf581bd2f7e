package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/export"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/policy"
)

func (h *Handler) ExportJobApplications(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)
	job := r.Context().Value(JobCtx).(*domain.Job)

	scope, err := policy.ApplicationScope(caller)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	scope.JobID = job.ID

	apps, err := h.repository.GetApplications(scope)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeCSV(w, r, export.JobFileName(job.ID), export.PerJob, apps)
}

func (h *Handler) ExportAllApplications(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	scope, err := policy.ApplicationScope(caller)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	apps, err := h.repository.GetApplications(scope)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeCSV(w, r, export.AllFileName(), export.All, apps)
}

func (h *Handler) ExportCollegeApplications(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	// chi matches on RawPath when it is set, leaving the param escaped
	college := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(college)
		if err != nil {
			h.errorResponse(w, r, apperror.BadRequest("Invalid college name"))
			return
		}
		college = decoded
	}
	college = strings.TrimSpace(college)
	if college == "" {
		h.errorResponse(w, r, apperror.BadRequest("College name is required"))
		return
	}

	scope, err := policy.CollegeExportScope(caller, college)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	apps, err := h.repository.GetApplications(scope)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeCSV(w, r, export.CollegeFileName(college), export.ByCollege, apps)
}
