// Package export flattens resolved applications into CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/utils"
)

type column struct {
	header string
	value  func(a *domain.ApplicationDetail) string
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var (
	colJobTitle    = column{"Job Title", func(a *domain.ApplicationDetail) string { return a.JobTitle }}
	colCompany     = column{"Company", func(a *domain.ApplicationDetail) string { return a.Company }}
	colStudentName = column{"Student Name", func(a *domain.ApplicationDetail) string { return a.StudentName }}
	colEmail       = column{"Email", func(a *domain.ApplicationDetail) string { return optional(a.Email) }}
	colPhone       = column{"Phone", func(a *domain.ApplicationDetail) string { return optional(a.Phone) }}
	colRollNumber  = column{"Roll Number", func(a *domain.ApplicationDetail) string { return optional(a.RollNumber) }}
	colCollege     = column{"College", func(a *domain.ApplicationDetail) string { return a.StudentCollege }}
	colResumeURL   = column{"Resume URL", func(a *domain.ApplicationDetail) string { return optional(a.ResumeURL) }}
	colBulk        = column{"Bulk Upload", func(a *domain.ApplicationDetail) string { return yesNo(a.IsBulk) }}
	colAppliedAt   = column{"Applied At", func(a *domain.ApplicationDetail) string { return a.AppliedAt.UTC().Format(time.RFC3339) }}
)

// Variant selects the column set of an export.
type Variant struct {
	columns []column
}

var (
	PerJob = Variant{[]column{
		colStudentName, colEmail, colPhone, colRollNumber, colCollege, colResumeURL, colBulk, colAppliedAt,
	}}
	All = Variant{[]column{
		colJobTitle, colCompany, colStudentName, colEmail, colPhone, colRollNumber, colCollege, colResumeURL, colBulk, colAppliedAt,
	}}
	ByCollege = Variant{[]column{
		colJobTitle, colCompany, colStudentName, colEmail, colPhone, colRollNumber, colResumeURL, colAppliedAt,
	}}
)

func (v Variant) Headers() []string {
	headers := make([]string, len(v.columns))
	for i, c := range v.columns {
		headers[i] = c.header
	}
	return headers
}

// Write emits a header row followed by one row per application.
func (v Variant) Write(w io.Writer, apps []*domain.ApplicationDetail) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(v.Headers()); err != nil {
		return err
	}

	record := make([]string, len(v.columns))
	for _, a := range apps {
		for i, c := range v.columns {
			record[i] = c.value(a)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func JobFileName(jobID int64) string {
	return fmt.Sprintf("applications_job_%d.csv", jobID)
}

func AllFileName() string {
	return "applications_all.csv"
}

func CollegeFileName(college string) string {
	return fmt.Sprintf("applications_%s.csv", utils.Slugify(college))
}
