package handler

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/kvstore"
)

// fakeRepository keeps rows in memory and enforces the same constraints as
// the postgres schema: unique emails, one direct application per job and
// student, and cascading deletes.
type fakeRepository struct {
	mu     sync.Mutex
	nextID int64
	clock  time.Time

	users map[int64]*domain.User
	jobs  map[int64]*domain.Job
	apps  []*domain.Application

	// returned by the next CreateApplication, as if another request won the insert
	createApplicationErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users: make(map[int64]*domain.User),
		jobs:  make(map[int64]*domain.Job),
	}
}

func (f *fakeRepository) tick() (int64, time.Time) {
	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	return f.nextID, f.clock
}

func (f *fakeRepository) GetUserByID(id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepository) GetUserByEmail(email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRepository) CreateUser(user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}

	user.ID, user.CreatedAt = f.tick()
	user.IsActive = true
	user.Version = 1
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeRepository) UpdateUser(user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.users[user.ID]
	if !ok || stored.Version != user.Version {
		return domain.ErrEditConflict
	}

	stored.Name = user.Name
	stored.PasswordHash = user.PasswordHash
	stored.IsActive = user.IsActive
	stored.Version++
	user.Version = stored.Version
	return nil
}

func (f *fakeRepository) GetAllUsersWithStats() ([]*domain.UserWithStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]*domain.UserWithStats, 0, len(f.users))
	for _, u := range f.users {
		stats := &domain.UserWithStats{User: *u}
		for _, a := range f.apps {
			if a.StudentID == u.ID {
				stats.ApplicationCount++
			}
		}
		users = append(users, stats)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (f *fakeRepository) DeleteUser(id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[id]; !ok {
		return 0, domain.ErrNotFound
	}

	var deleted int64
	kept := f.apps[:0]
	for _, a := range f.apps {
		if a.StudentID == id {
			deleted++
			continue
		}
		if a.UploadedBy != nil && *a.UploadedBy == id {
			a.UploadedBy = nil
		}
		kept = append(kept, a)
	}
	f.apps = kept

	for _, j := range f.jobs {
		if j.PostedBy != nil && *j.PostedBy == id {
			j.PostedBy = nil
		}
	}
	delete(f.users, id)
	return deleted, nil
}

func (f *fakeRepository) GetDistinctColleges() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	colleges := make([]string, 0)
	for _, u := range f.users {
		if !slices.Contains(colleges, u.CollegeName) {
			colleges = append(colleges, u.CollegeName)
		}
	}
	slices.Sort(colleges)
	return colleges, nil
}

func (f *fakeRepository) CreateJob(job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	job.ID, job.CreatedAt = f.tick()
	job.FormURL = domain.JobFormURL(job.ID)
	job.Version = 1
	if job.Skills == nil {
		job.Skills = []string{}
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeRepository) GetJobByID(id int64) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeRepository) GetJobs(college string) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	jobs := make([]*domain.Job, 0)
	for _, j := range f.jobs {
		if college != "" && !j.AllowsCollege(college) {
			continue
		}
		cp := *j
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	return jobs, nil
}

func (f *fakeRepository) DeleteJob(id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.jobs[id]; !ok {
		return 0, domain.ErrNotFound
	}

	var deleted int64
	kept := f.apps[:0]
	for _, a := range f.apps {
		if a.JobID == id {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	f.apps = kept
	delete(f.jobs, id)
	return deleted, nil
}

func (f *fakeRepository) applicationExists(jobID, studentID int64) bool {
	for _, a := range f.apps {
		if a.JobID == jobID && a.StudentID == studentID && !a.IsBulk {
			return true
		}
	}
	return false
}

func (f *fakeRepository) ApplicationExists(jobID, studentID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.applicationExists(jobID, studentID), nil
}

func (f *fakeRepository) CreateApplication(app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.createApplicationErr; err != nil {
		f.createApplicationErr = nil
		return err
	}
	if !app.IsBulk && f.applicationExists(app.JobID, app.StudentID) {
		return domain.ErrDuplicateApplication
	}

	app.ID, app.AppliedAt = f.tick()
	app.Version = 1
	cp := *app
	f.apps = append(f.apps, &cp)
	return nil
}

func (f *fakeRepository) GetApplications(filter domain.ApplicationFilter) ([]*domain.ApplicationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	apps := make([]*domain.ApplicationDetail, 0)
	for i := len(f.apps) - 1; i >= 0; i-- {
		a := f.apps[i]
		job, ok := f.jobs[a.JobID]
		if !ok {
			continue
		}
		student, ok := f.users[a.StudentID]
		if !ok {
			continue
		}
		if filter.JobID != 0 && a.JobID != filter.JobID {
			continue
		}
		if filter.College != "" && student.CollegeName != filter.College {
			continue
		}
		apps = append(apps, &domain.ApplicationDetail{
			Application:    *a,
			JobTitle:       job.Title,
			Company:        job.Company,
			StudentCollege: student.CollegeName,
		})
	}
	return apps, nil
}

func (f *fakeRepository) GetCollegeStats() ([]*domain.CollegeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byCollege := make(map[string]*domain.CollegeStats)
	for _, u := range f.users {
		s, ok := byCollege[u.CollegeName]
		if !ok {
			s = &domain.CollegeStats{CollegeName: u.CollegeName}
			byCollege[u.CollegeName] = s
		}
		s.UserCount++
	}
	for _, a := range f.apps {
		student, ok := f.users[a.StudentID]
		if !ok {
			continue
		}
		s := byCollege[student.CollegeName]
		s.ApplicationCount++
		if a.IsBulk {
			s.BulkApplicationCount++
		}
	}

	stats := make([]*domain.CollegeStats, 0, len(byCollege))
	for _, s := range byCollege {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CollegeName < stats[j].CollegeName })
	return stats, nil
}

func (f *fakeRepository) GetStatsTotals() (*domain.StatsTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	totals := &domain.StatsTotals{
		Users:        int64(len(f.users)),
		Jobs:         int64(len(f.jobs)),
		Applications: int64(len(f.apps)),
	}
	for _, a := range f.apps {
		if a.IsBulk {
			totals.BulkApplications++
		}
	}
	return totals, nil
}

// countApplications counts stored rows for a job and student pair.
func (f *fakeRepository) countApplications(jobID, studentID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, a := range f.apps {
		if a.JobID == jobID && a.StudentID == studentID {
			n++
		}
	}
	return n
}

func (f *fakeRepository) applicationsOfJob(jobID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, a := range f.apps {
		if a.JobID == jobID {
			n++
		}
	}
	return n
}

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string), counts: make(map[string]int64)}
}

func (f *fakeKV) SetOTP(_ context.Context, key, otp string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = otp
	return nil
}

func (f *fakeKV) GetOTP(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", kvstore.ErrMissing
	}
	return v, nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.counts, key)
	return nil
}

func (f *fakeKV) IncrementAttempts(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeKV) GetAttempts(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key], nil
}

type fakeMailer struct {
	mu       sync.Mutex
	err      error
	messages []domain.MailMessage
}

func (f *fakeMailer) Publish(msg domain.MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMailer) sent(mailType string) []domain.MailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MailMessage
	for _, m := range f.messages {
		if m.Type == mailType {
			out = append(out, m)
		}
	}
	return out
}

var errBrokerDown = errors.New("broker unavailable")
