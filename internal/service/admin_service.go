package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"foodwaste_ussd/internal/model"
	"foodwaste_ussd/internal/repository"
	"foodwaste_ussd/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid phone or password")
	ErrAdminDisabled      = errors.New("operator login is not configured")
	ErrInvalidFilter      = errors.New("invalid filter value")
	ErrUserNotFound       = errors.New("user not found")
)

// AdminCredentials identifies the single operator account
type AdminCredentials struct {
	Phone        string
	PasswordHash string // bcrypt
}

// AdminService provides the operator read API
type AdminService interface {
	Login(ctx context.Context, phone, password string) (string, error)
	ListListings(ctx context.Context, filters model.ListingFilters) ([]model.ListingView, error)
	LocationSummary(ctx context.Context) ([]model.LocationStat, error)
	GetUser(ctx context.Context, phone string) (*model.User, error)
	ExportListingsCSV(ctx context.Context, filters model.ListingFilters) (*bytes.Buffer, error)
}

type adminService struct {
	users    repository.UserRepository
	listings repository.ListingRepository
	jwtUtil  *utils.JWTUtil
	creds    AdminCredentials
}

// NewAdminService creates a new AdminService
func NewAdminService(users repository.UserRepository, listings repository.ListingRepository, jwtUtil *utils.JWTUtil, creds AdminCredentials) AdminService {
	return &adminService{
		users:    users,
		listings: listings,
		jwtUtil:  jwtUtil,
		creds:    creds,
	}
}

// Login checks operator credentials and returns a signed token
func (s *adminService) Login(_ context.Context, phone, password string) (string, error) {
	if s.jwtUtil == nil || s.creds.Phone == "" || s.creds.PasswordHash == "" {
		return "", ErrAdminDisabled
	}
	if phone != s.creds.Phone || !utils.CheckPasswordHash(password, s.creds.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	token, err := s.jwtUtil.GenerateToken(phone, model.RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func validateFilters(filters model.ListingFilters) error {
	if filters.Status != nil && *filters.Status != "" &&
		*filters.Status != model.ListingStatusAvailable && *filters.Status != model.ListingStatusScheduled {
		return fmt.Errorf("%w: status %q", ErrInvalidFilter, *filters.Status)
	}
	if filters.WasteType != nil && *filters.WasteType != "" {
		valid := false
		for _, wt := range model.WasteTypes {
			if wt == *filters.WasteType {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: waste_type %q", ErrInvalidFilter, *filters.WasteType)
		}
	}
	return nil
}

func (s *adminService) ListListings(ctx context.Context, filters model.ListingFilters) ([]model.ListingView, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	listings, err := s.listings.FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

func (s *adminService) LocationSummary(ctx context.Context) ([]model.LocationStat, error) {
	stats, err := s.users.LocationSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get location summary: %w", err)
	}
	return stats, nil
}

func (s *adminService) GetUser(ctx context.Context, phone string) (*model.User, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *adminService) ExportListingsCSV(ctx context.Context, filters model.ListingFilters) (*bytes.Buffer, error) {
	listings, err := s.ListListings(ctx, filters)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	header := []string{"ID", "SupplierPhone", "Location", "WasteType", "QuantityKg", "AvailableUntil", "Status", "CreatedAt"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, l := range listings {
		row := []string{
			strconv.FormatInt(l.ID, 10),
			l.SupplierPhone,
			l.Location,
			l.WasteType,
			strconv.FormatFloat(l.Quantity, 'f', -1, 64),
			l.AvailableUntil.Format(time.RFC3339),
			l.Status,
			l.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}
	return buffer, nil
}
