// Package policy decides what a caller may see or do. Every function is pure:
// it looks only at the caller's role and college and at the resource, and
// returns nil when the action is allowed.
package policy

import (
	"github.com/sysu-ecnc-dev/campushb/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

// JobCollegeFilter returns the college a job listing must be restricted to.
// Admins get an empty filter and see every job.
func JobCollegeFilter(caller *domain.User) string {
	if caller.Role == domain.RoleAdmin {
		return ""
	}
	return caller.CollegeName
}

func CanMutateJobs(caller *domain.User) error {
	if caller.Role != domain.RoleAdmin {
		return apperror.Forbidden("Access denied. Admins only.")
	}
	return nil
}

func CanViewJob(caller *domain.User, job *domain.Job) error {
	if caller.Role == domain.RoleAdmin {
		return nil
	}
	if !job.AllowsCollege(caller.CollegeName) {
		return apperror.Forbidden("You are not allowed to view this job")
	}
	return nil
}

// CanSubmitApplication checks the role before the job is loaded; pass a nil
// job to run only that part.
func CanSubmitApplication(caller *domain.User, job *domain.Job) error {
	if caller.Role != domain.RoleStudent {
		return apperror.Forbidden("Only students can submit applications")
	}
	if job != nil && !job.AllowsCollege(caller.CollegeName) {
		return apperror.Forbidden("Your college is not eligible for this job")
	}
	return nil
}

// CanBulkIngest follows the same two-step shape as CanSubmitApplication.
func CanBulkIngest(caller *domain.User, job *domain.Job) error {
	if caller.Role != domain.RoleStaff {
		return apperror.Forbidden("Only staff can upload applications in bulk")
	}
	if job != nil && !job.AllowsCollege(caller.CollegeName) {
		return apperror.Forbidden("Your college is not eligible for this job")
	}
	return nil
}

// ApplicationScope returns the filter applied to every application listing and
// export. Staff are restricted to applications whose student belongs to their
// college; students cannot read the ledger at all.
func ApplicationScope(caller *domain.User) (domain.ApplicationFilter, error) {
	switch caller.Role {
	case domain.RoleAdmin:
		return domain.ApplicationFilter{}, nil
	case domain.RoleStaff:
		return domain.ApplicationFilter{College: caller.CollegeName}, nil
	default:
		return domain.ApplicationFilter{}, apperror.Forbidden("Students cannot access applications")
	}
}

// CollegeExportScope is ApplicationScope for a named college: staff may only
// ask for their own.
func CollegeExportScope(caller *domain.User, college string) (domain.ApplicationFilter, error) {
	scope, err := ApplicationScope(caller)
	if err != nil {
		return scope, err
	}
	if scope.College != "" && scope.College != college {
		return scope, apperror.Forbidden("You can only export applications of your own college")
	}
	return domain.ApplicationFilter{College: college}, nil
}

func CanManageUsers(caller *domain.User) error {
	if caller.Role != domain.RoleAdmin {
		return apperror.Forbidden("Access denied. Admins only.")
	}
	return nil
}

func CanDeactivateUser(caller *domain.User, targetID int64) error {
	if caller.ID == targetID {
		return apperror.BadRequest("You cannot deactivate your own account")
	}
	return nil
}

func CanDeleteUser(caller *domain.User, targetID int64) error {
	if caller.ID == targetID {
		return apperror.BadRequest("You cannot delete your own account")
	}
	return nil
}

// CanReadApplications is ApplicationScope reduced to a yes/no gate.
func CanReadApplications(caller *domain.User) error {
	_, err := ApplicationScope(caller)
	return err
}
