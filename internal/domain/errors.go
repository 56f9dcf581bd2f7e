package domain

import "errors"

// Errors returned by the repository layer, independent of the database driver.
var (
	ErrNotFound             = errors.New("record not found")
	ErrEditConflict         = errors.New("record was modified concurrently")
	ErrEmailTaken           = errors.New("email already registered")
	ErrDuplicateApplication = errors.New("application already submitted for this job")
)
