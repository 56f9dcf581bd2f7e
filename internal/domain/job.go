package domain

import (
	"fmt"
	"slices"
	"time"
)

type Job struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Salary          string    `json:"salary"`
	Experience      string    `json:"experience"`
	Description     string    `json:"description"`
	Skills          []string  `json:"skills"`
	AllowedColleges []string  `json:"allowedColleges"`
	FormURL         string    `json:"formUrl"`
	PostedBy        *int64    `json:"postedBy"`
	CreatedAt       time.Time `json:"createdAt"`
	Version         int32     `json:"-"`
}

func (j *Job) AllowsCollege(college string) bool {
	return slices.Contains(j.AllowedColleges, college)
}

func JobFormURL(id int64) string {
	return fmt.Sprintf("/apply/%d", id)
}
