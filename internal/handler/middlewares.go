package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("request handled", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // slog would flatten the trace into one line
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest prefers the Authorization header and falls back to the
// token query parameter used by download links.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			h.errorResponse(w, r, apperror.Unauthorized("No token, authorization denied"))
			return
		}

		claims := &AuthClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(h.config.JWT.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			h.errorResponse(w, r, apperror.Wrap(apperror.KindAuthentication, "Token is not valid", err))
			return
		}

		sub, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			h.errorResponse(w, r, apperror.Wrap(apperror.KindAuthentication, "Token is not valid", err))
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, sub)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller loads the account behind the token. Role and college always come
// from the database so a changed or deactivated account takes effect at once.
func (h *Handler) caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := r.Context().Value(SubCtxKey).(int64)

		user, err := h.repository.GetUserByID(sub)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				h.errorResponse(w, r, apperror.Unauthorized("Account no longer exists"))
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		if !user.IsActive {
			h.errorResponse(w, r, apperror.Unauthorized("Your account has been deactivated"))
			return
		}

		ctx := context.WithValue(r.Context(), CallerCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize runs a role check from the policy package before the handler.
func (h *Handler) authorize(check func(caller *domain.User) error) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Context().Value(CallerCtx).(*domain.User)
			if err := check(caller); err != nil {
				h.errorResponse(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userIDParam := chi.URLParam(r, "id")
		userID, err := strconv.ParseInt(userIDParam, 10, 64)
		if err != nil {
			h.errorResponse(w, r, apperror.BadRequest("Invalid user ID"))
			return
		}

		user, err := h.repository.GetUserByID(userID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				h.errorResponse(w, r, apperror.NotFound("User not found"))
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), UserInfoCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jobInfo loads the job named by the given URL parameter.
func (h *Handler) jobInfo(param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jobID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil {
				h.errorResponse(w, r, apperror.BadRequest("Invalid job ID"))
				return
			}

			job, err := h.loadJob(jobID)
			if err != nil {
				h.errorResponse(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), JobCtx, job)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) loadJob(id int64) (*domain.Job, error) {
	job, err := h.repository.GetJobByID(id)
	if err != nil {
		return nil, notFoundOr(err, "Job not found")
	}
	return job, nil
}
