package repository

import (
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
)

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	query := `
		SELECT name, email, password_hash, college_name, role, is_active, created_at, version
		FROM users WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	user := &domain.User{
		ID: id,
	}

	dst := []any{&user.Name, &user.Email, &user.PasswordHash, &user.CollegeName, &user.Role, &user.IsActive, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, translateError(err)
	}

	return user, nil
}

func (r *Repository) GetUserByEmail(email string) (*domain.User, error) {
	query := `
		SELECT id, name, password_hash, college_name, role, is_active, created_at, version
		FROM users WHERE email = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	user := &domain.User{
		Email: email,
	}

	dst := []any{&user.ID, &user.Name, &user.PasswordHash, &user.CollegeName, &user.Role, &user.IsActive, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, email).Scan(dst...); err != nil {
		return nil, translateError(err)
	}

	return user, nil
}

func (r *Repository) CreateUser(user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, college_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{user.Name, user.Email, user.PasswordHash, user.CollegeName, user.Role}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.Version); err != nil {
		return translateError(err)
	}

	return nil
}

// UpdateUser writes the mutable columns. Role and college are fixed at creation.
func (r *Repository) UpdateUser(user *domain.User) error {
	query := `
		UPDATE users
		SET
			name = $1,
			password_hash = $2,
			is_active = $3,
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{user.Name, user.PasswordHash, user.IsActive, user.ID, user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrEditConflict
		}
		return translateError(err)
	}

	return nil
}

func (r *Repository) GetAllUsersWithStats() ([]*domain.UserWithStats, error) {
	query := `
		SELECT
			u.id, u.name, u.email, u.password_hash, u.college_name, u.role, u.is_active, u.created_at, u.version,
			(SELECT COUNT(*) FROM applications a WHERE a.student_id = u.id)
		FROM users u
		ORDER BY u.created_at DESC
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.UserWithStats, 0)
	for rows.Next() {
		u := &domain.UserWithStats{}
		dst := []any{&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CollegeName, &u.Role, &u.IsActive, &u.CreatedAt, &u.Version, &u.ApplicationCount}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// DeleteUser removes the user together with every application filed under
// their id and returns how many applications went with them.
func (r *Repository) DeleteUser(id int64) (int64, error) {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE student_id = $1`, id)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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

func (r *Repository) GetDistinctColleges() ([]string, error) {
	query := `SELECT DISTINCT college_name FROM users ORDER BY college_name`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colleges := make([]string, 0)
	for rows.Next() {
		var college string
		if err := rows.Scan(&college); err != nil {
			return nil, err
		}
		colleges = append(colleges, college)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return colleges, nil
}
