package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)
	h.successResponse(w, r, "Profile fetched", caller)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(caller.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, apperror.BadRequest("Old password is incorrect"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	caller.PasswordHash = string(hashedPassword)

	if err := h.repository.UpdateUser(caller); err != nil {
		switch {
		case errors.Is(err, domain.ErrEditConflict):
			h.errorResponse(w, r, apperror.Conflict("Failed to update password, please retry"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "Password updated", nil)
}
