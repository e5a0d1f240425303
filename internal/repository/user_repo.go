package repository

import (
	"context"
	"errors"
	"fmt"

	"foodwaste_ussd/internal/model"

	"github.com/jackc/pgx/v5"
)

// UserRepository defines operations for user data
type UserRepository interface {
	CreateIfAbsent(ctx context.Context, user *model.User) (bool, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	ListCollectorPhones(ctx context.Context) ([]string, error)
	LocationSummary(ctx context.Context) ([]model.LocationStat, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

// CreateIfAbsent inserts the user unless the phone number is already taken.
// It reports false, with no error and no mutation, for an existing number.
func (r *userRepository) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	sql := `INSERT INTO users (phone_number, user_type, name, location, waste_types)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (phone_number) DO NOTHING
            RETURNING created_at`
	err := r.db.QueryRow(ctx, sql, user.PhoneNumber, user.UserType, user.Name, user.Location, user.WasteTypes).Scan(&user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // conflict, row left untouched
		}
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return true, nil
}

// FindByPhone retrieves a user by their phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	user := &model.User{}
	sql := `SELECT phone_number, user_type, name, location, waste_types, created_at FROM users WHERE phone_number = $1`
	err := r.db.QueryRow(ctx, sql, phone).Scan(&user.PhoneNumber, &user.UserType, &user.Name, &user.Location, &user.WasteTypes, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return user, nil
}

// ListCollectorPhones returns the phone numbers of every registered collector
func (r *userRepository) ListCollectorPhones(ctx context.Context) ([]string, error) {
	sql := `SELECT phone_number FROM users WHERE user_type = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, sql, model.UserTypeCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to query collectors: %w", err)
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("failed to scan collector row: %w", err)
		}
		phones = append(phones, phone)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collector rows: %w", err)
	}
	return phones, nil
}

// LocationSummary counts suppliers and collectors per location
func (r *userRepository) LocationSummary(ctx context.Context) ([]model.LocationStat, error) {
	sql := `
        SELECT
            location,
            COALESCE(SUM(CASE WHEN user_type = 'supplier' THEN 1 ELSE 0 END), 0) AS suppliers,
            COALESCE(SUM(CASE WHEN user_type = 'collector' THEN 1 ELSE 0 END), 0) AS collectors
        FROM users
        GROUP BY location
        ORDER BY location`
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query location summary: %w", err)
	}
	defer rows.Close()

	var stats []model.LocationStat
	for rows.Next() {
		var s model.LocationStat
		if err := rows.Scan(&s.Location, &s.Suppliers, &s.Collectors); err != nil {
			return nil, fmt.Errorf("failed to scan location row: %w", err)
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating location rows: %w", err)
	}
	return stats, nil
}
