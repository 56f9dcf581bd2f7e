package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ParseRole rejects anything outside the three known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CollegeName  string    `json:"collegeName"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}

// UserWithStats is a user row as seen by the admin user list.
type UserWithStats struct {
	User
	ApplicationCount int64 `json:"applicationCount"`
}
