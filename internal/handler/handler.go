package handler

import (
	"context"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/config"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/policy"
)

// Repository is the persistence the handlers need; *repository.Repository
// satisfies it.
type Repository interface {
	GetUserByID(id int64) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	CreateUser(user *domain.User) error
	UpdateUser(user *domain.User) error
	GetAllUsersWithStats() ([]*domain.UserWithStats, error)
	DeleteUser(id int64) (int64, error)
	GetDistinctColleges() ([]string, error)

	CreateJob(job *domain.Job) error
	GetJobByID(id int64) (*domain.Job, error)
	GetJobs(college string) ([]*domain.Job, error)
	DeleteJob(id int64) (int64, error)

	ApplicationExists(jobID, studentID int64) (bool, error)
	CreateApplication(app *domain.Application) error
	GetApplications(filter domain.ApplicationFilter) ([]*domain.ApplicationDetail, error)

	GetCollegeStats() ([]*domain.CollegeStats, error)
	GetStatsTotals() (*domain.StatsTotals, error)
}

type KeyValueStore interface {
	SetOTP(ctx context.Context, key, otp string, ttl time.Duration) error
	GetOTP(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	IncrementAttempts(ctx context.Context, key string, window time.Duration) (int64, error)
	GetAttempts(ctx context.Context, key string) (int64, error)
}

type MailPublisher interface {
	Publish(msg domain.MailMessage) error
}

type ResumeStore interface {
	SaveResume(folder, filename string, src io.Reader) (string, error)
	RemoveResume(url string) error
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository Repository
	translator ut.Translator
	mailer     MailPublisher
	kv         KeyValueStore
	resumes    ResumeStore

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Repository, mailer MailPublisher, kv KeyValueStore, resumes ResumeStore) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		mailer:     mailer,
		kv:         kv,
		resumes:    resumes,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// uploaded resumes are public links, same as the object storage URLs students paste
	if base := strings.TrimRight(h.config.Upload.BaseURL, "/"); strings.HasPrefix(base, "/") {
		fs := http.StripPrefix(base, http.FileServer(http.Dir(h.config.Upload.Dir)))
		h.Mux.Handle(base+"/*", fs)
	}

	h.Mux.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/admin-login", h.AdminLogin)
			r.Route("/reset-password", func(r chi.Router) {
				r.Post("/require", h.RequireResetPassword)
				r.Post("/confirm", h.ConfirmResetPassword)
			})
		})

		// everything below needs a valid token from an existing, active account
		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Use(h.caller)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.GetMyInfo)
				r.Patch("/password", h.UpdateMyPassword)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", h.GetJobs)
				r.Get("/colleges", h.GetColleges)
				r.With(h.authorize(policy.CanMutateJobs)).Post("/", h.CreateJob)
				r.With(h.jobInfo("id")).Get("/{id}", h.GetJob)
				r.With(h.authorize(policy.CanMutateJobs), h.jobInfo("id")).Delete("/{id}", h.DeleteJob)
			})

			r.Route("/applications", func(r chi.Router) {
				r.Post("/submit", h.SubmitApplication)
				r.Post("/bulk-submit", h.BulkSubmitApplications)
				r.Post("/upload-single-cv", h.UploadSingleCV)

				r.Group(func(r chi.Router) {
					r.Use(h.authorize(policy.CanReadApplications))
					r.With(h.jobInfo("jobId")).Get("/job/{jobId}", h.GetJobApplications)
					r.With(h.jobInfo("jobId")).Get("/export/{jobId}", h.ExportJobApplications)
					r.Get("/export-all", h.ExportAllApplications)
					r.Get("/export-by-college/{name}", h.ExportCollegeApplications)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(h.authorize(policy.CanManageUsers))
				r.Get("/", h.GetAllUsers)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(h.userInfo)
					r.Patch("/toggle-status", h.ToggleUserStatus)
					r.Delete("/", h.DeleteUser)
				})
			})

			r.With(h.authorize(policy.CanManageUsers)).Get("/admin/stats", h.GetAdminStats)
		})
	})
}
