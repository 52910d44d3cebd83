package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID          int64
	Phone       string
	DisplayName string
	Role        string
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, phone, display_name, role
FROM users
WHERE id = $1
`, userID).Scan(&user.ID, &user.Phone, &user.DisplayName, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return UserRecord{}, fmt.Errorf("invalid phone")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, phone, display_name, role
FROM users
WHERE phone = $1
`, phone).Scan(&user.ID, &user.Phone, &user.DisplayName, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by phone: %w", err)
	}

	return user, nil
}

func (r *UserRepo) GetOrCreateByPhone(ctx context.Context, phone string) (UserRecord, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return UserRecord{}, fmt.Errorf("invalid phone")
	}
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (phone, display_name, role, created_at, updated_at)
VALUES ($1, '', 'user', NOW(), NOW())
ON CONFLICT (phone) DO UPDATE SET
	updated_at = NOW()
RETURNING id, phone, display_name, role
`, phone).Scan(&user.ID, &user.Phone, &user.DisplayName, &user.Role)
	if err != nil {
		return UserRecord{}, fmt.Errorf("get or create user by phone: %w", err)
	}
	if strings.TrimSpace(user.Role) == "" {
		user.Role = "user"
	}

	return user, nil
}

func (r *UserRepo) UpdateDisplayName(ctx context.Context, userID int64, name string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(name) == "" {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET display_name = $2, updated_at = NOW()
WHERE id = $1
`, userID, strings.TrimSpace(name)); err != nil {
		return fmt.Errorf("update user display name: %w", err)
	}

	return nil
}
