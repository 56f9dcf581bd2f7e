package repository

import (
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

const jobColumns = `id, title, company, location, salary, experience, description, skills, allowed_colleges, posted_by, created_at, version`

func (r *Repository) jobDestinations(job *domain.Job) []any {
	return []any{
		&job.ID,
		&job.Title,
		&job.Company,
		&job.Location,
		&job.Salary,
		&job.Experience,
		&job.Description,
		r.typeMap.SQLScanner(&job.Skills),
		r.typeMap.SQLScanner(&job.AllowedColleges),
		&job.PostedBy,
		&job.CreatedAt,
		&job.Version,
	}
}

func (r *Repository) CreateJob(job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			title,
			company,
			location,
			salary,
			experience,
			description,
			skills,
			allowed_colleges,
			posted_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	if job.Skills == nil {
		job.Skills = []string{}
	}
	if job.AllowedColleges == nil {
		job.AllowedColleges = []string{}
	}

	params := []any{
		job.Title,
		job.Company,
		job.Location,
		job.Salary,
		job.Experience,
		job.Description,
		job.Skills,
		job.AllowedColleges,
		job.PostedBy,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&job.ID, &job.CreatedAt, &job.Version); err != nil {
		return translateError(err)
	}
	job.FormURL = domain.JobFormURL(job.ID)

	return nil
}

func (r *Repository) GetJobByID(id int64) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	job := &domain.Job{}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(r.jobDestinations(job)...); err != nil {
		return nil, translateError(err)
	}
	job.FormURL = domain.JobFormURL(job.ID)

	return job, nil
}

// GetJobs lists jobs newest first. A non-empty college keeps only the jobs
// that college is allowed to see.
func (r *Repository) GetJobs(college string) ([]*domain.Job, error) {
	query := r.builder.Select(jobColumns).From("jobs").OrderBy("created_at DESC")
	if college != "" {
		query = query.Where("? = ANY(allowed_colleges)", college)
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

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job := &domain.Job{}
		if err := rows.Scan(r.jobDestinations(job)...); err != nil {
			return nil, err
		}
		job.FormURL = domain.JobFormURL(job.ID)
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// DeleteJob removes the job and all of its applications in one transaction and
// returns the number of applications removed.
func (r *Repository) DeleteJob(id int64) (int64, error) {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE job_id = $1`, id)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return deleted, nil
}
