package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

const (
	uniqueViolation = "23505"

	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, role, name, department,
		student_id, staff_id, position, grade, status, created_at, last_login`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	user := &domain.User{}
	dst := []any{
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.Name, &user.Department,
		&user.StudentID, &user.StaffID, &user.Position, &user.Grade, &user.Status, &user.CreatedAt, &user.LastLogin,
	}
	if err := s.Scan(dst...); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		// 非法的 UUID 等同于不存在
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateUser 插入用户并回填 id，唯一约束冲突时返回 *domain.DuplicateKeyError
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, name, department,
			student_id, staff_id, position, grade, status, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{
		user.Username, user.Email, user.PasswordHash, user.Role, user.Name, user.Department,
		user.StudentID, user.StaffID, user.Position, user.Grade, user.Status, user.CreatedAt, user.LastLogin,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return &domain.DuplicateKeyError{Key: domain.KeyUsername}
			case emailConstraint:
				return &domain.DuplicateKeyError{Key: domain.KeyEmail}
			}
		}
		return err
	}

	return nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE users SET last_login = $1 WHERE id = $2
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *Repository) CountUsersByRole(ctx context.Context, role domain.Role, status domain.UserStatus) (int, error) {
	query := `
		SELECT COUNT(*) FROM users WHERE role = $1 AND status = $2
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	count := 0
	if err := r.dbpool.QueryRowContext(ctx, query, role, status).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *Repository) GetUsersByRole(ctx context.Context, role domain.Role, status domain.UserStatus) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND status = $2`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, role, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
