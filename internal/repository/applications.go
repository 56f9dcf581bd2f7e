package repository

import (
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

func (r *Repository) ApplicationExists(jobID, studentID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM applications WHERE job_id = $1 AND student_id = $2 AND NOT is_bulk
		)
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	exists := false
	if err := r.dbpool.QueryRowContext(ctx, query, jobID, studentID).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// CreateApplication inserts the row. A second direct submission for the same
// job and student fails with domain.ErrDuplicateApplication even when two
// requests race past ApplicationExists.
func (r *Repository) CreateApplication(app *domain.Application) error {
	query := `
		INSERT INTO applications (
			job_id,
			student_id,
			student_name,
			email,
			phone,
			roll_number,
			resume_url,
			is_bulk,
			uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, applied_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	params := []any{
		app.JobID,
		app.StudentID,
		app.StudentName,
		app.Email,
		app.Phone,
		app.RollNumber,
		app.ResumeURL,
		app.IsBulk,
		app.UploadedBy,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&app.ID, &app.AppliedAt, &app.Version); err != nil {
		return translateError(err)
	}

	return nil
}

// GetApplications resolves job and student references for every application
// matching filter, newest first. The college filter matches the college of
// the account in student_id, which for bulk rows is the uploading staff.
func (r *Repository) GetApplications(filter domain.ApplicationFilter) ([]*domain.ApplicationDetail, error) {
	query := r.builder.
		Select(
			"a.id", "a.job_id", "a.student_id", "a.student_name", "a.email", "a.phone", "a.roll_number",
			"a.resume_url", "a.applied_at", "a.is_bulk", "a.uploaded_by", "a.version",
			"j.title", "j.company", "s.college_name",
		).
		From("applications a").
		Join("jobs j ON j.id = a.job_id").
		Join("users s ON s.id = a.student_id").
		OrderBy("a.applied_at DESC", "a.id DESC")

	if filter.JobID != 0 {
		query = query.Where("a.job_id = ?", filter.JobID)
	}
	if filter.College != "" {
		query = query.Where("s.college_name = ?", filter.College)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]*domain.ApplicationDetail, 0)
	for rows.Next() {
		a := &domain.ApplicationDetail{}
		dst := []any{
			&a.ID,
			&a.JobID,
			&a.StudentID,
			&a.StudentName,
			&a.Email,
			&a.Phone,
			&a.RollNumber,
			&a.ResumeURL,
			&a.AppliedAt,
			&a.IsBulk,
			&a.UploadedBy,
			&a.Version,
			&a.JobTitle,
			&a.Company,
			&a.StudentCollege,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return apps, nil
}

// RepairBulkFlags marks every application filed under or uploaded by a staff
// account as bulk. Running it again changes nothing.
func (r *Repository) RepairBulkFlags() (int64, error) {
	query := `
		UPDATE applications a
		SET is_bulk = TRUE, version = version + 1
		WHERE NOT a.is_bulk AND EXISTS (
			SELECT 1 FROM users u
			WHERE u.role = 'staff' AND (u.id = a.student_id OR u.id = a.uploaded_by)
		)
	`

	ctx, cancel := r.transactionContext()
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
