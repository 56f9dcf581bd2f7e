package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/policy"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/utils"
)

func (h *Handler) GetJobs(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	jobs, err := h.repository.GetJobs(policy.JobCollegeFilter(caller))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Jobs fetched", jobs)
}

func (h *Handler) GetColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := h.repository.GetDistinctColleges()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Colleges fetched", colleges)
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	var req struct {
		Title           string   `json:"title" validate:"required"`
		Company         string   `json:"company" validate:"required"`
		Location        string   `json:"location" validate:"required"`
		Salary          string   `json:"salary"`
		Experience      string   `json:"experience"`
		Description     string   `json:"description" validate:"required"`
		Skills          []string `json:"skills"`
		AllowedColleges []string `json:"allowedColleges" validate:"required,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	job := &domain.Job{
		Title:           req.Title,
		Company:         req.Company,
		Location:        req.Location,
		Salary:          req.Salary,
		Experience:      req.Experience,
		Description:     req.Description,
		Skills:          req.Skills,
		AllowedColleges: req.AllowedColleges,
		PostedBy:        &caller.ID,
	}
	if err := utils.NormalizeJob(job); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateJob(job); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Job created", job)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)
	job := r.Context().Value(JobCtx).(*domain.Job)

	if err := policy.CanViewJob(caller, job); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	h.successResponse(w, r, "Job fetched", job)
}

func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	job := r.Context().Value(JobCtx).(*domain.Job)

	deleted, err := h.repository.DeleteJob(job.ID)
	if err != nil {
		h.errorResponse(w, r, notFoundOr(err, "Job not found"))
		return
	}

	h.successResponse(w, r, "Job deleted", map[string]int64{
		"deletedApplications": deleted,
	})
}
