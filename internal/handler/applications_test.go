package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

func submission(jobID int64) map[string]any {
	return map[string]any{
		"jobId":       jobID,
		"studentName": "Asha Rao",
		"email":       "asha@example.com",
		"phone":       "9876543210",
		"rollNumber":  "CS-101",
		"resumeUrl":   "https://drive.example.com/asha.pdf",
	}
}

func TestSubmitApplication(t *testing.T) {
	env := newTestEnv(t)
	student, token := env.addUser(t, "asha", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	rec := env.do(t, http.MethodPost, "/api/applications/submit", token, submission(job.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var app domain.Application
	decode(t, rec, &app)
	assert.False(t, app.IsBulk)
	assert.Equal(t, student.ID, app.StudentID)
	assert.Nil(t, app.UploadedBy)
	require.NotNil(t, app.RollNumber)
	assert.Equal(t, "CS-101", *app.RollNumber)

	mails := env.mailer.sent(domain.MailTypeApplicationReceived)
	require.Len(t, mails, 1)
	assert.Equal(t, "asha@example.com", mails[0].To)
}

func TestSubmitApplicationTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	student, token := env.addUser(t, "asha", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	rec := env.do(t, http.MethodPost, "/api/applications/submit", token, submission(job.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/applications/submit", token, submission(job.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, env.repo.countApplications(job.ID, student.ID))
}

func TestSubmitApplicationIneligibleCollege(t *testing.T) {
	env := newTestEnv(t)
	student, token := env.addUser(t, "asha", domain.RoleStudent, "Y College")
	job := env.addJob(t, "Backend Intern", "X College")

	rec := env.do(t, http.MethodPost, "/api/applications/submit", token, submission(job.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, env.repo.countApplications(job.ID, student.ID))
}

func TestSubmitApplicationRejections(t *testing.T) {
	env := newTestEnv(t)
	_, student := env.addUser(t, "asha", domain.RoleStudent, "X College")
	_, staff := env.addUser(t, "staff", domain.RoleStaff, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	noResume := submission(job.ID)
	delete(noResume, "resumeUrl")
	noPhone := submission(job.ID)
	delete(noPhone, "phone")
	badURL := submission(job.ID)
	badURL["resumeUrl"] = "not a url"

	tests := []struct {
		name   string
		token  string
		body   map[string]any
		status int
	}{
		{"staff cannot self-submit", staff, submission(job.ID), http.StatusForbidden},
		{"missing resume", student, noResume, http.StatusBadRequest},
		{"missing phone", student, noPhone, http.StatusBadRequest},
		{"malformed resume url", student, badURL, http.StatusBadRequest},
		{"unknown job", student, submission(job.ID + 100), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/applications/submit", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSubmitApplicationSurvivesMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errBrokerDown
	_, token := env.addUser(t, "asha", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	rec := env.do(t, http.MethodPost, "/api/applications/submit", token, submission(job.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitApplicationWithResumeFile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "asha", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	fields := map[string]string{
		"jobId":       strconv.FormatInt(job.ID, 10),
		"studentName": "Asha Rao",
		"email":       "asha@example.com",
		"phone":       "9876543210",
		"resumeUrl":   "https://drive.example.com/ignored.pdf",
	}

	rec := env.upload(t, "/api/applications/submit", token, fields, "Asha Resume.pdf", samplePDF)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var app domain.Application
	decode(t, rec, &app)
	require.NotNil(t, app.ResumeURL)
	assert.True(t, strings.HasPrefix(*app.ResumeURL, "/uploads/resumes/"), *app.ResumeURL)
	assert.True(t, strings.HasSuffix(*app.ResumeURL, ".pdf"))
	assert.Nil(t, app.RollNumber)

	stored := filepath.Join(env.cfg.Upload.Dir, strings.TrimPrefix(*app.ResumeURL, "/uploads/"))
	content, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, content)

	// the stored file is served back under the upload base URL
	rec = env.do(t, http.MethodGet, *app.ResumeURL, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, samplePDF, rec.Body.Bytes())
}

func TestSubmitApplicationLosingRaceRemovesResume(t *testing.T) {
	env := newTestEnv(t)
	student, token := env.addUser(t, "asha", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")
	env.repo.createApplicationErr = domain.ErrDuplicateApplication

	fields := map[string]string{
		"jobId":       strconv.FormatInt(job.ID, 10),
		"studentName": "Asha Rao",
		"email":       "asha@example.com",
		"phone":       "9876543210",
	}

	rec := env.upload(t, "/api/applications/submit", token, fields, "resume.pdf", samplePDF)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Zero(t, env.repo.countApplications(job.ID, student.ID))

	entries, err := os.ReadDir(filepath.Join(env.cfg.Upload.Dir, "resumes"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitApplicationRejectsUnsupportedFile(t *testing.T) {
	env := newTestEnv(t)
	student, token := env.addUser(t, "asha", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	fields := map[string]string{
		"jobId":       strconv.FormatInt(job.ID, 10),
		"studentName": "Asha Rao",
		"email":       "asha@example.com",
		"phone":       "9876543210",
	}

	rec := env.upload(t, "/api/applications/submit", token, fields, "resume.pdf", []byte("#!/bin/sh\necho hi\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, "/api/applications/submit", token, fields, "resume.exe", samplePDF)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.repo.countApplications(job.ID, student.ID))
}

func TestBulkSubmit(t *testing.T) {
	env := newTestEnv(t)
	staff, token := env.addUser(t, "staff", domain.RoleStaff, "X College")
	job := env.addJob(t, "Backend Intern", "X College")

	rec := env.do(t, http.MethodPost, "/api/applications/bulk-submit", token, map[string]any{
		"jobId": job.ID,
		"students": []map[string]any{
			{"studentName": "Ravi Kumar", "email": "ravi@example.com", "phone": "9000000001"},
			{"studentName": "  "},
			{"studentName": "Ravi Kumar", "email": "ravi@example.com"},
			{"studentName": "Priya", "email": "not-an-email"},
			{"studentName": "Vikram", "resumeUrl": "https://cv.example.com/vikram.pdf", "phone": ""},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.BulkResult
	decode(t, rec, &result)
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, 3, result.Errors[1].Index)
	assert.Equal(t, "Priya", result.Errors[1].StudentName)

	// bulk records are exempt from the one-per-student rule
	assert.Equal(t, 3, env.repo.countApplications(job.ID, staff.ID))

	apps, err := env.repo.GetApplications(domain.ApplicationFilter{JobID: job.ID})
	require.NoError(t, err)
	for _, a := range apps {
		assert.True(t, a.IsBulk)
		require.NotNil(t, a.UploadedBy)
		assert.Equal(t, staff.ID, *a.UploadedBy)
	}
	assert.Nil(t, apps[0].Phone, "blank optional fields are stored as null")
}

func TestBulkSubmitPolicy(t *testing.T) {
	env := newTestEnv(t)
	_, student := env.addUser(t, "student", domain.RoleStudent, "X College")
	_, admin := env.addUser(t, "admin", domain.RoleAdmin, "HQ")
	_, otherStaff := env.addUser(t, "other", domain.RoleStaff, "Y College")
	job := env.addJob(t, "Backend Intern", "X College")

	body := map[string]any{
		"jobId":    job.ID,
		"students": []map[string]any{{"studentName": "Ravi"}},
	}

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/applications/bulk-submit", student, body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/applications/bulk-submit", admin, body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/applications/bulk-submit", otherStaff, body).Code)
	assert.Zero(t, env.repo.applicationsOfJob(job.ID))

	body["students"] = []map[string]any{}
	_, staff := env.addUser(t, "staff", domain.RoleStaff, "X College")
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/applications/bulk-submit", staff, body).Code)
}

func TestUploadSingleCV(t *testing.T) {
	env := newTestEnv(t)
	staff, token := env.addUser(t, "staff", domain.RoleStaff, "X College")
	job := env.addJob(t, "Backend Intern", "X College")
	fields := map[string]string{"jobId": strconv.FormatInt(job.ID, 10)}

	for i := 0; i < 2; i++ {
		rec := env.upload(t, "/api/applications/upload-single-cv", token, fields, "rahul_sharma_resume_2024.pdf", samplePDF)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var payload struct {
			Application domain.Application `json:"application"`
			FileName    string             `json:"fileName"`
		}
		decode(t, rec, &payload)
		assert.Equal(t, "Rahul Sharma", payload.Application.StudentName)
		assert.Equal(t, "rahul_sharma_resume_2024.pdf", payload.FileName)
		assert.True(t, payload.Application.IsBulk)
		assert.Nil(t, payload.Application.Email)
		assert.Nil(t, payload.Application.Phone)
		require.NotNil(t, payload.Application.ResumeURL)
		assert.Contains(t, *payload.Application.ResumeURL, "/uploads/bulk/")
	}

	// the same file twice makes two records with distinct stored names
	apps, err := env.repo.GetApplications(domain.ApplicationFilter{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.NotEqual(t, *apps[0].ResumeURL, *apps[1].ResumeURL)
	assert.Equal(t, 2, env.repo.countApplications(job.ID, staff.ID))
}

func TestUploadSingleCVStoreFailureRemovesResume(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "ravi", domain.RoleStaff, "X College")
	job := env.addJob(t, "Backend Intern", "X College")
	env.repo.createApplicationErr = errors.New("connection reset")

	fields := map[string]string{"jobId": strconv.FormatInt(job.ID, 10)}
	rec := env.upload(t, "/api/applications/upload-single-cv", token, fields, "rahul_sharma.pdf", samplePDF)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries, err := os.ReadDir(filepath.Join(env.cfg.Upload.Dir, "bulk"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadSingleCVRejections(t *testing.T) {
	env := newTestEnv(t)
	_, staff := env.addUser(t, "staff", domain.RoleStaff, "X College")
	_, student := env.addUser(t, "student", domain.RoleStudent, "X College")
	job := env.addJob(t, "Backend Intern", "X College")
	fields := map[string]string{"jobId": strconv.FormatInt(job.ID, 10)}

	rec := env.upload(t, "/api/applications/upload-single-cv", student, fields, "cv.pdf", samplePDF)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.upload(t, "/api/applications/upload-single-cv", staff, fields, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, "/api/applications/upload-single-cv", staff, map[string]string{"jobId": "abc"}, "cv.pdf", samplePDF)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, "/api/applications/upload-single-cv", staff, map[string]string{"jobId": "999"}, "cv.pdf", samplePDF)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	big := append([]byte{}, samplePDF...)
	big = append(big, make([]byte, env.cfg.Upload.MaxFileSize)...)
	rec = env.upload(t, "/api/applications/upload-single-cv", staff, fields, "cv.pdf", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, env.repo.applicationsOfJob(job.ID))
}

func TestGetJobApplicationsScopedByCollege(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.addUser(t, "admin", domain.RoleAdmin, "HQ")
	_, staffX := env.addUser(t, "staffx", domain.RoleStaff, "X College")
	_, staffY := env.addUser(t, "staffy", domain.RoleStaff, "Y College")
	_, student := env.addUser(t, "viewer", domain.RoleStudent, "X College")
	x1, _ := env.addUser(t, "x1", domain.RoleStudent, "X College")
	x2, _ := env.addUser(t, "x2", domain.RoleStudent, "X College")
	y1, _ := env.addUser(t, "y1", domain.RoleStudent, "Y College")
	job := env.addJob(t, "Backend Intern", "X College", "Y College")

	for _, s := range []*domain.User{x1, x2, y1} {
		require.NoError(t, env.repo.CreateApplication(&domain.Application{JobID: job.ID, StudentID: s.ID, StudentName: s.Name}))
	}

	list := func(token string) []domain.ApplicationDetail {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/applications/job/%d", job.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var apps []domain.ApplicationDetail
		decode(t, rec, &apps)
		return apps
	}

	for _, a := range list(staffX) {
		assert.Equal(t, "X College", a.StudentCollege)
	}
	assert.Len(t, list(staffX), 2)
	assert.Len(t, list(staffY), 1)
	assert.Len(t, list(admin), 3)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/applications/job/%d", job.ID), student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
