package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/export"
)

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("internal server error", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Wrap(apperror.KindValidation, "Invalid JSON body", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// errorResponse writes err with the status its kind maps to. Anything that is
// not an *apperror.Error is treated as an internal error.
func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.StatusCode(err)
	if status == http.StatusInternalServerError {
		h.internalServerError(w, r, err)
		return
	}

	h.writeJSON(w, r, status, Response{
		Success: false,
		Message: err.Error(),
		Data:    nil,
	})
}

// validationMessage returns the first validator error in readable form.
func (h *Handler) validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return validationErrors[0].Translate(h.translator)
	}
	return err.Error()
}

// notFoundOr turns a repository miss into a 404 with msg and passes any other
// error through.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperror.Wrap(apperror.KindNotFound, msg, err)
	}
	return err
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, apperror.Wrap(apperror.KindValidation, h.validationMessage(err), err))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)

	msg := "Internal server error"
	if !h.config.IsProduction() {
		msg = fmt.Sprintf("Internal server error: %v", err)
	}

	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

// writeCSV renders the whole file before sending so a failure still produces
// a JSON error instead of a truncated attachment.
func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, variant export.Variant, apps []*domain.ApplicationDetail) {
	var buf bytes.Buffer
	if err := variant.Write(&buf, apps); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logInternalServerError(r, err)
	}
}
