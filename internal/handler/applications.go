package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/policy"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/storage"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/utils"
)

// room for the non-file fields of a multipart submission
const multipartOverhead = 1 << 20

type resumeUpload struct {
	file   multipart.File
	header *multipart.FileHeader
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Upload.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.config.Upload.MaxFileSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperror.Wrap(apperror.KindValidation, storage.ErrFileTooLarge.Error(), err)
		}
		return apperror.Wrap(apperror.KindValidation, "Invalid multipart form", err)
	}
	return nil
}

func formJobID(r *http.Request) (int64, error) {
	value := strings.TrimSpace(r.FormValue("jobId"))
	if value == "" {
		return 0, apperror.BadRequest("jobId is a required field")
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, apperror.BadRequest("Invalid job ID")
	}
	return id, nil
}

// formResume returns nil when the request carries no resume file.
func formResume(r *http.Request) (*resumeUpload, error) {
	file, header, err := r.FormFile("resume")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperror.Wrap(apperror.KindValidation, "Invalid resume file", err)
	}
	return &resumeUpload{file: file, header: header}, nil
}

func (h *Handler) saveResume(folder string, upload *resumeUpload) (string, error) {
	if upload.header.Size > h.config.Upload.MaxFileSize {
		return "", apperror.Wrap(apperror.KindValidation, storage.ErrFileTooLarge.Error(), storage.ErrFileTooLarge)
	}

	url, err := h.resumes.SaveResume(folder, upload.header.Filename, upload.file)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrFileTooLarge) {
			return "", apperror.Wrap(apperror.KindValidation, err.Error(), err)
		}
		return "", err
	}
	return url, nil
}

// discardResume removes a stored file whose application row was never written.
func (h *Handler) discardResume(url string) {
	if err := h.resumes.RemoveResume(url); err != nil {
		slog.Error("failed to remove orphaned resume", "url", url, "error", err)
	}
}

type submitRequest struct {
	JobID       int64  `json:"jobId" validate:"required"`
	StudentName string `json:"studentName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	RollNumber  string `json:"rollNumber"`
	ResumeURL   string `json:"resumeUrl" validate:"omitempty,url"`
}

// SubmitApplication records a student's own application. It accepts either a
// JSON body with a resume link or a multipart form with a resume file.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	var req submitRequest
	var upload *resumeUpload

	if isMultipart(r) {
		if err := h.parseMultipart(w, r); err != nil {
			h.errorResponse(w, r, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		jobID, err := formJobID(r)
		if err != nil {
			h.errorResponse(w, r, err)
			return
		}
		req = submitRequest{
			JobID:       jobID,
			StudentName: r.FormValue("studentName"),
			Email:       r.FormValue("email"),
			Phone:       r.FormValue("phone"),
			RollNumber:  r.FormValue("rollNumber"),
			ResumeURL:   r.FormValue("resumeUrl"),
		}

		upload, err = formResume(r)
		if err != nil {
			h.errorResponse(w, r, err)
			return
		}
		if upload != nil {
			defer upload.file.Close()
		}
	} else if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	req.StudentName = strings.TrimSpace(req.StudentName)
	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.ResumeURL = strings.TrimSpace(req.ResumeURL)
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if upload == nil && req.ResumeURL == "" {
		h.errorResponse(w, r, apperror.BadRequest("A resume link or file is required"))
		return
	}

	if err := policy.CanSubmitApplication(caller, nil); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	job, err := h.loadJob(req.JobID)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := policy.CanSubmitApplication(caller, job); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	exists, err := h.repository.ApplicationExists(job.ID, caller.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if exists {
		h.errorResponse(w, r, apperror.Conflict("You have already applied for this job"))
		return
	}

	resumeURL := req.ResumeURL
	stored := false
	if upload != nil {
		resumeURL, err = h.saveResume("resumes", upload)
		if err != nil {
			h.errorResponse(w, r, err)
			return
		}
		stored = true
	}

	app := &domain.Application{
		JobID:       job.ID,
		StudentID:   caller.ID,
		StudentName: req.StudentName,
		Email:       &req.Email,
		Phone:       &req.Phone,
		RollNumber:  utils.OptionalString(&req.RollNumber),
		ResumeURL:   &resumeURL,
		IsBulk:      false,
	}

	if err := h.repository.CreateApplication(app); err != nil {
		if stored {
			h.discardResume(resumeURL)
		}
		switch {
		case errors.Is(err, domain.ErrDuplicateApplication):
			h.errorResponse(w, r, apperror.Conflict("You have already applied for this job"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	_ = h.publishMail(domain.MailMessage{
		Type: domain.MailTypeApplicationReceived,
		To:   req.Email,
		Data: domain.ApplicationReceivedMailData{
			StudentName: app.StudentName,
			JobTitle:    job.Title,
			Company:     job.Company,
		},
	})

	h.successResponse(w, r, "Application submitted successfully", app)
}

// BulkSubmitApplications records candidates on behalf of a staff member. Every
// entry is validated and stored on its own; failures are reported per index
// and do not undo the entries that succeeded.
func (h *Handler) BulkSubmitApplications(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	var req struct {
		JobID    int64                `json:"jobId" validate:"required"`
		Students []domain.BulkStudent `json:"students" validate:"required,min=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := policy.CanBulkIngest(caller, nil); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	job, err := h.loadJob(req.JobID)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := policy.CanBulkIngest(caller, job); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	result := domain.BulkResult{Errors: []domain.BulkError{}}
	for i, s := range req.Students {
		s.StudentName = strings.TrimSpace(s.StudentName)
		s.Email = utils.OptionalString(s.Email)
		s.Phone = utils.OptionalString(s.Phone)
		s.RollNumber = utils.OptionalString(s.RollNumber)
		s.ResumeURL = utils.OptionalString(s.ResumeURL)

		if err := h.validate.Struct(s); err != nil {
			result.AddFailure(i, s.StudentName, h.validationMessage(err))
			continue
		}

		app := &domain.Application{
			JobID:       job.ID,
			StudentID:   caller.ID,
			StudentName: s.StudentName,
			Email:       s.Email,
			Phone:       s.Phone,
			RollNumber:  s.RollNumber,
			ResumeURL:   s.ResumeURL,
			IsBulk:      true,
			UploadedBy:  &caller.ID,
		}
		if err := h.repository.CreateApplication(app); err != nil {
			slog.Error("failed to store bulk application", "jobID", job.ID, "index", i, "error", err)
			result.AddFailure(i, s.StudentName, "Failed to save application")
			continue
		}
		result.Success++
	}

	slog.Info("bulk applications processed", "jobID", job.ID, "uploadedBy", caller.ID, "success", result.Success, "failed", result.Failed)
	h.successResponse(w, r, fmt.Sprintf("%d applications uploaded, %d failed", result.Success, result.Failed), result)
}

// UploadSingleCV stores one resume file as a bulk application whose candidate
// name is guessed from the file name. The frontend calls it once per file.
func (h *Handler) UploadSingleCV(w http.ResponseWriter, r *http.Request) {
	caller := r.Context().Value(CallerCtx).(*domain.User)

	if err := policy.CanBulkIngest(caller, nil); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	if !isMultipart(r) {
		h.errorResponse(w, r, apperror.BadRequest("A resume file is required"))
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.errorResponse(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	jobID, err := formJobID(r)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	upload, err := formResume(r)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if upload == nil {
		h.errorResponse(w, r, apperror.BadRequest("A resume file is required"))
		return
	}
	defer upload.file.Close()

	job, err := h.loadJob(jobID)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}
	if err := policy.CanBulkIngest(caller, job); err != nil {
		h.errorResponse(w, r, err)
		return
	}

	resumeURL, err := h.saveResume("bulk", upload)
	if err != nil {
		h.errorResponse(w, r, err)
		return
	}

	app := &domain.Application{
		JobID:       job.ID,
		StudentID:   caller.ID,
		StudentName: utils.CandidateNameFromFilename(upload.header.Filename),
		ResumeURL:   &resumeURL,
		IsBulk:      true,
		UploadedBy:  &caller.ID,
	}
	if err := h.repository.CreateApplication(app); err != nil {
		h.discardResume(resumeURL)
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "Resume uploaded", map[string]any{
		"application": app,
		"fileName":    upload.header.Filename,
	})
}

func (h *Handler) GetJobApplications(w http.ResponseWriter, r *http.Request) {
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

	h.successResponse(w, r, "Applications fetched", apps)
}
