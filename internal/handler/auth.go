package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/kvstore"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authUser struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Role        domain.Role `json:"role"`
	CollegeName string      `json:"collegeName"`
}

type authPayload struct {
	Token string   `json:"token"`
	User  authUser `json:"user"`
}

func (h *Handler) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	})
	return token.SignedString([]byte(h.config.JWT.Secret))
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, msg string, user *domain.User) {
	ss, err := h.issueToken(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, authPayload{
		Token: ss,
		User: authUser{
			ID:          user.ID,
			Name:        user.Name,
			Role:        user.Role,
			CollegeName: user.CollegeName,
		},
	})
}

func (h *Handler) kvContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
}

// publishMail hands a message to the mail worker. Callers decide whether a
// failure matters.
func (h *Handler) publishMail(msg domain.MailMessage) error {
	if err := h.mailer.Publish(msg); err != nil {
		slog.Error("failed to publish mail", "type", msg.Type, "to", msg.To, "error", err)
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name" validate:"required"`
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required,min=6"`
		CollegeName string `json:"collegeName" validate:"required"`
		Role        string `json:"role" validate:"required,oneof=student staff"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.CollegeName = strings.TrimSpace(req.CollegeName)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if _, err := h.repository.GetUserByEmail(req.Email); err == nil {
		h.errorResponse(w, r, apperror.BadRequest("User already exists"))
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		h.internalServerError(w, r, err)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		CollegeName:  req.CollegeName,
		Role:         domain.Role(req.Role),
		IsActive:     true,
	}

	if err := h.repository.CreateUser(user); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			h.errorResponse(w, r, apperror.BadRequest("User already exists"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	_ = h.publishMail(domain.MailMessage{
		Type: domain.MailTypeWelcome,
		To:   user.Email,
		Data: domain.WelcomeMailData{
			Name:        user.Name,
			Role:        string(user.Role),
			CollegeName: user.CollegeName,
		},
	})

	h.respondWithToken(w, r, "Registration successful", user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, apperror.BadRequest("Invalid credentials"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			h.errorResponse(w, r, apperror.BadRequest("Invalid credentials"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if !user.IsActive {
		h.errorResponse(w, r, apperror.Forbidden("Your account has been deactivated"))
		return
	}

	h.respondWithToken(w, r, "Login successful", user)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AdminLogin exchanges the shared admin key for a token of the bootstrap admin
// account, creating that account on first use. Failed attempts are counted
// per client address.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminKey string `json:"adminKey" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	ctx, cancel := h.kvContext()
	defer cancel()

	attemptsKey := kvstore.AdminLoginKey(clientIP(r))
	attempts, err := h.kv.GetAttempts(ctx, attemptsKey)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if attempts >= int64(h.config.AdminLogin.MaxAttempts) {
		h.errorResponse(w, r, apperror.TooManyRequests("Too many failed attempts, try again later"))
		return
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.AdminKey)), []byte(h.config.AdminLogin.Key)) != 1 {
		window := time.Duration(h.config.AdminLogin.Window) * time.Second
		if _, err := h.kv.IncrementAttempts(ctx, attemptsKey, window); err != nil {
			h.internalServerError(w, r, err)
			return
		}
		slog.Warn("failed admin login", "ip", clientIP(r), "attempts", attempts+1)
		h.errorResponse(w, r, apperror.Unauthorized("Invalid admin key"))
		return
	}

	if err := h.kv.Delete(ctx, attemptsKey); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	admin, err := h.ensureInitialAdmin()
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	h.respondWithToken(w, r, "Admin login successful", admin)
}

func (h *Handler) ensureInitialAdmin() (*domain.User, error) {
	email := normalizeEmail(h.config.InitialAdmin.Email)

	admin, err := h.repository.GetUserByEmail(email)
	if err == nil {
		return checkInitialAdmin(admin)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(h.config.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	admin = &domain.User{
		Name:         h.config.InitialAdmin.Name,
		Email:        email,
		PasswordHash: string(passwordHash),
		CollegeName:  h.config.InitialAdmin.CollegeName,
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	if err := h.repository.CreateUser(admin); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			// created concurrently by another request
			existing, err := h.repository.GetUserByEmail(email)
			if err != nil {
				return nil, err
			}
			return checkInitialAdmin(existing)
		}
		return nil, err
	}

	slog.Info("initial admin created", "email", email)
	return admin, nil
}

// checkInitialAdmin refuses to issue an admin-login token for an account that
// is not an active admin, such as a student registered under the admin email.
func checkInitialAdmin(user *domain.User) (*domain.User, error) {
	if user.Role != domain.RoleAdmin {
		slog.Error("initial admin email belongs to a non-admin account", "email", user.Email, "role", user.Role)
		return nil, apperror.Conflict("Initial admin email is taken by a non-admin account")
	}
	if !user.IsActive {
		return nil, apperror.Forbidden("Your account has been deactivated")
	}
	return user, nil
}

func (h *Handler) RequireResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	const msg = "If the account exists, a verification code has been sent"

	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// same answer as for a real account so the endpoint cannot probe emails
			h.successResponse(w, r, msg, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	otp := utils.GenerateRandomOTP()

	ctx, cancel := h.kvContext()
	defer cancel()

	ttl := time.Duration(h.config.OTP.Expiration) * time.Second
	if err := h.kv.SetOTP(ctx, kvstore.OTPKey("reset_password", user.Email), otp, ttl); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.publishMail(domain.MailMessage{
		Type: domain.MailTypeResetPassword,
		To:   user.Email,
		Data: domain.ResetPasswordMailData{
			Name:       user.Name,
			OTP:        otp,
			Expiration: h.config.OTP.Expiration / 60, // minutes in the mail, seconds in config
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, nil)
}

func (h *Handler) ConfirmResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		OTP      string `json:"otp" validate:"required"`
		Password string `json:"password" validate:"required,min=6"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	ctx, cancel := h.kvContext()
	defer cancel()

	key := kvstore.OTPKey("reset_password", req.Email)
	otp, err := h.kv.GetOTP(ctx, key)
	if err != nil && !errors.Is(err, kvstore.ErrMissing) {
		h.internalServerError(w, r, err)
		return
	}
	if err != nil || subtle.ConstantTimeCompare([]byte(otp), []byte(strings.TrimSpace(req.OTP))) != 1 {
		h.errorResponse(w, r, apperror.BadRequest("Invalid or expired verification code"))
		return
	}

	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, apperror.NotFound("User not found"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	user.PasswordHash = string(passwordHash)

	if err := h.repository.UpdateUser(user); err != nil {
		switch {
		case errors.Is(err, domain.ErrEditConflict):
			h.errorResponse(w, r, apperror.Conflict("Failed to reset password, please retry"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.kv.Delete(ctx, key); err != nil {
		slog.Error("failed to delete used otp", "email", req.Email, "error", err)
	}

	h.successResponse(w, r, "Password reset successful", nil)
}
