package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/policy"
)

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repository.GetAllUsersWithStats()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Users fetched", users)
}

func (h *Handler) ToggleUserStatus(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if err := policy.CanDeactivateUser(caller, user.ID); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	user.IsActive = !user.IsActive

	if err := h.repository.UpdateUser(user); err != nil {
		switch {
		case errors.Is(err, domain.ErrEditConflict):
			h.errorResponse(w, r, apperror.Conflict("User was modified concurrently, please retry"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	msg := "User deactivated"
	if user.IsActive {
		msg = "User activated"
	}
	h.successResponse(w, r, msg, user)
}

// DeleteUser removes the account together with every application filed under
// it. For staff this includes the bulk records they uploaded, since those carry
// the staff id as the student.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if err := policy.CanDeleteUser(caller, user.ID); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	deleted, err := h.repository.DeleteUser(user.ID)
	if err != nil {
		h.errorResponse(w, r, notFoundOr(err, "User not found"))
		return
	}

	h.successResponse(w, r, "User deleted", map[string]int64{
		"deletedApplications": deleted,
	})
}
