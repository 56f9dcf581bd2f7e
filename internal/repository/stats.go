package repository

import (
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

func (r *Repository) GetCollegeStats() ([]*domain.CollegeStats, error) {
	query := `
		SELECT
			u.college_name,
			COUNT(*),
			COALESCE(a.application_count, 0),
			COALESCE(a.bulk_count, 0)
		FROM users u
		LEFT JOIN (
			SELECT
				s.college_name,
				COUNT(*) AS application_count,
				COUNT(*) FILTER (WHERE ap.is_bulk) AS bulk_count
			FROM applications ap
			JOIN users s ON s.id = ap.student_id
			GROUP BY s.college_name
		) a ON a.college_name = u.college_name
		GROUP BY u.college_name, a.application_count, a.bulk_count
		ORDER BY u.college_name
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]*domain.CollegeStats, 0)
	for rows.Next() {
		s := &domain.CollegeStats{}
		if err := rows.Scan(&s.CollegeName, &s.UserCount, &s.ApplicationCount, &s.BulkApplicationCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *Repository) GetStatsTotals() (*domain.StatsTotals, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM applications),
			(SELECT COUNT(*) FROM applications WHERE is_bulk)
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	t := &domain.StatsTotals{}
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(&t.Users, &t.Jobs, &t.Applications, &t.BulkApplications); err != nil {
		return nil, err
	}

	return t, nil
}
