package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foodwaste_ussd/internal/model"

	"github.com/jackc/pgx/v5"
)

// ListingRepository defines operations for waste listing data
type ListingRepository interface {
	Create(ctx context.Context, listing *model.WasteListing) error
	ListAvailable(ctx context.Context, limit int) ([]model.ListingView, error)
	Schedule(ctx context.Context, id int64) (*model.WasteListing, error)
	FindAll(ctx context.Context, filters model.ListingFilters) ([]model.ListingView, error)
}

type listingRepository struct {
	db DBTX
}

// NewListingRepository creates a new ListingRepository
func NewListingRepository(db DBTX) ListingRepository {
	return &listingRepository{db: db}
}

const listingViewColumns = `l.id, l.supplier_phone, l.waste_type, l.quantity, l.available_until, l.status, l.created_at,
            COALESCE(u.location, '')`

// Unregistered suppliers can still offer waste, hence the outer join.
const listingViewFrom = `FROM waste_listings l LEFT JOIN users u ON l.supplier_phone = u.phone_number`

// Create inserts a new listing with status "available"
func (r *listingRepository) Create(ctx context.Context, l *model.WasteListing) error {
	sql := `INSERT INTO waste_listings (supplier_phone, waste_type, quantity, available_until, status)
            VALUES ($1, $2, $3, $4, $5) RETURNING id, status, created_at`
	err := r.db.QueryRow(ctx, sql, l.SupplierPhone, l.WasteType, l.Quantity, l.AvailableUntil, model.ListingStatusAvailable).
		Scan(&l.ID, &l.Status, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// ListAvailable returns the most recently created available listings, newest first.
// The id tie-breaker keeps the order stable between the menu and the selection.
func (r *listingRepository) ListAvailable(ctx context.Context, limit int) ([]model.ListingView, error) {
	sql := `SELECT ` + listingViewColumns + `
            ` + listingViewFrom + `
            WHERE l.status = $1
            ORDER BY l.created_at DESC, l.id DESC
            LIMIT $2`
	rows, err := r.db.Query(ctx, sql, model.ListingStatusAvailable, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query available listings: %w", err)
	}
	return collectListingViews(rows)
}

// Schedule moves one listing from available to scheduled in a single conditional
// update. It returns nil, nil when the listing does not exist or was already taken.
func (r *listingRepository) Schedule(ctx context.Context, id int64) (*model.WasteListing, error) {
	l := &model.WasteListing{}
	sql := `UPDATE waste_listings SET status = $1
            WHERE id = $2 AND status = $3
            RETURNING id, supplier_phone, waste_type, quantity, available_until, status, created_at`
	err := r.db.QueryRow(ctx, sql, model.ListingStatusScheduled, id, model.ListingStatusAvailable).Scan(
		&l.ID, &l.SupplierPhone, &l.WasteType, &l.Quantity, &l.AvailableUntil, &l.Status, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to schedule listing: %w", err)
	}
	return l, nil
}

// FindAll retrieves listings with optional filters for operators
func (r *listingRepository) FindAll(ctx context.Context, filters model.ListingFilters) ([]model.ListingView, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + listingViewColumns + ` ` + listingViewFrom)

	args := []any{}
	argCount := 1
	var conditions []string

	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.WasteType != nil && *filters.WasteType != "" {
		conditions = append(conditions, fmt.Sprintf("l.waste_type = $%d", argCount))
		args = append(args, *filters.WasteType)
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY l.created_at DESC, l.id DESC")

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	return collectListingViews(rows)
}

func collectListingViews(rows pgx.Rows) ([]model.ListingView, error) {
	defer rows.Close()

	var listings []model.ListingView
	for rows.Next() {
		var v model.ListingView
		if err := rows.Scan(
			&v.ID, &v.SupplierPhone, &v.WasteType, &v.Quantity, &v.AvailableUntil, &v.Status, &v.CreatedAt,
			&v.Location,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}
	return listings, nil
}
