package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

func (h *Handler) GetAdminStats(w http.ResponseWriter, r *http.Request) {
	colleges, err := h.repository.GetCollegeStats()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	apps, err := h.repository.GetApplications(domain.ApplicationFilter{})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	totals, err := h.repository.GetStatsTotals()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Stats fetched", domain.AdminStats{
		Colleges:     colleges,
		Applications: apps,
		Totals:       *totals,
	})
}
