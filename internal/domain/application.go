package domain

import "time"

type Application struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"jobId"`
	StudentID   int64     `json:"studentId"`
	StudentName string    `json:"studentName"`
	Email       *string   `json:"email"`
	Phone       *string   `json:"phone"`
	RollNumber  *string   `json:"rollNumber"`
	ResumeURL   *string   `json:"resumeUrl"`
	AppliedAt   time.Time `json:"appliedAt"`
	IsBulk      bool      `json:"isBulk"`
	UploadedBy  *int64    `json:"uploadedBy"`
	Version     int32     `json:"-"`
}

// ApplicationDetail carries the references an application points to, resolved
// for listing and export.
type ApplicationDetail struct {
	Application
	JobTitle       string `json:"jobTitle"`
	Company        string `json:"company"`
	StudentCollege string `json:"studentCollege"`
}

// ApplicationFilter narrows an application query. Zero values mean "no filter".
type ApplicationFilter struct {
	JobID   int64
	College string
}

type BulkStudent struct {
	StudentName string  `json:"studentName" validate:"required"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone"`
	RollNumber  *string `json:"rollNumber"`
	ResumeURL   *string `json:"resumeUrl" validate:"omitempty,url"`
}

type BulkError struct {
	Index       int    `json:"index"`
	StudentName string `json:"studentName"`
	Error       string `json:"error"`
}

type BulkResult struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Errors  []BulkError `json:"errors"`
}

func (r *BulkResult) AddFailure(index int, studentName, msg string) {
	r.Failed++
	r.Errors = append(r.Errors, BulkError{Index: index, StudentName: studentName, Error: msg})
}
