package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/config"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword = "password123"
	testAdminKey = "let-me-in"
)

type testEnv struct {
	h      *Handler
	cfg    *config.Config
	repo   *fakeRepository
	kv     *fakeKV
	mailer *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{Environment: "test"}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 3600
	cfg.AdminLogin.Key = testAdminKey
	cfg.AdminLogin.MaxAttempts = 3
	cfg.AdminLogin.Window = 900
	cfg.InitialAdmin.Name = "System Admin"
	cfg.InitialAdmin.Email = "admin@campushb.com"
	cfg.InitialAdmin.Password = "admin-password"
	cfg.InitialAdmin.CollegeName = "HiringBazar Headquarters"
	cfg.Upload.Dir = t.TempDir()
	cfg.Upload.BaseURL = "/uploads"
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.OTP.Expiration = 900
	cfg.Redis.OperationExpiration = 5

	resumes, err := storage.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.BaseURL, cfg.Upload.MaxFileSize)
	require.NoError(t, err)

	env := &testEnv{
		cfg:    cfg,
		repo:   newFakeRepository(),
		kv:     newFakeKV(),
		mailer: &fakeMailer{},
	}
	env.h, err = NewHandler(cfg, env.repo, env.mailer, env.kv, resumes)
	require.NoError(t, err)
	env.h.RegisterRoutes()

	return env
}

// addUser stores an account directly and returns it with a valid token.
func (e *testEnv) addUser(t *testing.T, name string, role domain.Role, college string) (*domain.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: string(hash),
		CollegeName:  college,
		Role:         role,
	}
	require.NoError(t, e.repo.CreateUser(user))

	token, err := e.h.issueToken(user)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) addJob(t *testing.T, title string, colleges ...string) *domain.Job {
	t.Helper()

	job := &domain.Job{
		Title:           title,
		Company:         "Acme",
		Location:        "Pune",
		Description:     "Build things",
		Skills:          []string{"Go"},
		AllowedColleges: colleges,
	}
	require.NoError(t, e.repo.CreateJob(job))
	return job
}

func (e *testEnv) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.Mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// upload sends a multipart form with the given fields and an optional resume.
func (e *testEnv) upload(t *testing.T, path, token string, fields map[string]string, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.serve(req, token)
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decode reads the envelope and, when v is not nil, its data field.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) testResponse {
	t.Helper()

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), string(resp.Data))
	}
	return resp
}

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
