package utils

import (
	"errors"
	"strings"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

// normalizeList trims every entry and drops blanks and repeats, keeping the
// first occurrence order.
func normalizeList(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// NormalizeJob cleans skills and allowed colleges in place and checks that
// the posting can be seen by at least one college.
func NormalizeJob(job *domain.Job) error {
	job.Title = strings.TrimSpace(job.Title)
	job.Company = strings.TrimSpace(job.Company)
	job.Location = strings.TrimSpace(job.Location)
	job.Skills = normalizeList(job.Skills)
	job.AllowedColleges = normalizeList(job.AllowedColleges)

	if job.Title == "" || job.Company == "" || job.Location == "" {
		return errors.New("title, company and location cannot be blank")
	}
	if len(job.AllowedColleges) == 0 {
		return errors.New("at least one allowed college is required")
	}
	return nil
}

// OptionalString turns blank strings into nil so they are stored as NULL.
func OptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
