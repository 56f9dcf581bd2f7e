// Package seed fills a development database with random users, jobs and
// applications, and imports staff-collected candidate sheets.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/policy"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/utils"
)

var DefaultColleges = []string{
	"Government Engineering College",
	"St. Xavier's College",
	"National Institute of Technology",
	"City College of Engineering",
}

// Store is the part of the repository the seeder writes through.
type Store interface {
	CreateUser(user *domain.User) error
	GetUserByEmail(email string) (*domain.User, error)
	GetAllUsersWithStats() ([]*domain.UserWithStats, error)
	CreateJob(job *domain.Job) error
	GetJobByID(id int64) (*domain.Job, error)
	GetJobs(college string) ([]*domain.Job, error)
	CreateApplication(app *domain.Application) error
}

// SeedUsers inserts n random accounts. An empty role picks one at random for
// every user. It returns how many were stored.
func SeedUsers(s Store, n int, role domain.Role, password, emailDomain string, colleges []string) int {
	cnt := 0
	for i := 0; i < n; i++ {
		user, err := utils.GenerateRandomUser(password, emailDomain, colleges)
		if err != nil {
			slog.Error("failed to generate user", "error", err)
			continue
		}
		if role != "" {
			user.Role = role
		}

		if err := s.CreateUser(user); err != nil {
			slog.Error("failed to insert user", "email", user.Email, "error", err)
			continue
		}
		cnt++
	}
	return cnt
}

func SeedJobs(s Store, n int, colleges []string, postedBy int64) int {
	cnt := 0
	for i := 0; i < n; i++ {
		job := utils.GenerateRandomJob(colleges, postedBy)
		if err := s.CreateJob(job); err != nil {
			slog.Error("failed to insert job", "title", job.Title, "error", err)
			continue
		}
		cnt++
	}
	return cnt
}

// SeedApplications lets every active student apply to up to perStudent of the
// jobs open to their college.
func SeedApplications(s Store, perStudent int) (int, error) {
	users, err := s.GetAllUsersWithStats()
	if err != nil {
		return 0, err
	}

	cnt := 0
	for _, u := range users {
		if u.Role != domain.RoleStudent || !u.IsActive {
			continue
		}

		jobs, err := s.GetJobs(u.CollegeName)
		if err != nil {
			return cnt, err
		}
		rand.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })

		for _, job := range jobs[:min(perStudent, len(jobs))] {
			email := u.Email
			phone := utils.GenerateRandomPhone()
			roll := utils.GenerateRandomRollNumber()
			resume := fmt.Sprintf("https://drive.example.com/%s.pdf", utils.Slugify(u.Name))

			app := &domain.Application{
				JobID:       job.ID,
				StudentID:   u.ID,
				StudentName: u.Name,
				Email:       &email,
				Phone:       &phone,
				RollNumber:  &roll,
				ResumeURL:   &resume,
			}
			if err := s.CreateApplication(app); err != nil {
				if errors.Is(err, domain.ErrDuplicateApplication) {
					continue
				}
				return cnt, err
			}
			cnt++
		}
	}
	return cnt, nil
}

// header aliases accepted in candidate sheets, keyed by lowercase header text
var candidateColumns = map[string]string{
	"name":         "studentName",
	"student name": "studentName",
	"studentname":  "studentName",
	"email":        "email",
	"phone":        "phone",
	"mobile":       "phone",
	"roll number":  "rollNumber",
	"rollnumber":   "rollNumber",
	"roll no":      "rollNumber",
	"resume":       "resumeUrl",
	"resume url":   "resumeUrl",
	"resumeurl":    "resumeUrl",
}

// ImportBulkCandidates reads a CSV sheet with a header row and records every
// row as a bulk application uploaded by the given staff member. Rows without a
// name are reported and skipped.
func ImportBulkCandidates(s Store, r io.Reader, jobID int64, staffEmail string) (*domain.BulkResult, error) {
	staff, err := s.GetUserByEmail(staffEmail)
	if err != nil {
		return nil, fmt.Errorf("staff account %s: %w", staffEmail, err)
	}
	job, err := s.GetJobByID(jobID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", jobID, err)
	}
	if err := policy.CanBulkIngest(staff, job); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int)
	for i, h := range headers {
		if field, ok := candidateColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			index[field] = i
		}
	}
	if _, ok := index["studentName"]; !ok {
		return nil, errors.New("sheet has no name column")
	}

	result := &domain.BulkResult{Errors: []domain.BulkError{}}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("row %d: %w", row+1, err)
		}

		cell := func(field string) *string {
			i, ok := index[field]
			if !ok || i >= len(record) {
				return nil
			}
			return utils.OptionalString(&record[i])
		}

		name := cell("studentName")
		if name == nil {
			result.AddFailure(row, "", "missing student name")
			continue
		}

		app := &domain.Application{
			JobID:       job.ID,
			StudentID:   staff.ID,
			StudentName: *name,
			Email:       cell("email"),
			Phone:       cell("phone"),
			RollNumber:  cell("rollNumber"),
			ResumeURL:   cell("resumeUrl"),
			IsBulk:      true,
			UploadedBy:  &staff.ID,
		}
		if err := s.CreateApplication(app); err != nil {
			result.AddFailure(row, *name, err.Error())
			continue
		}
		result.Success++
	}

	return result, nil
}
