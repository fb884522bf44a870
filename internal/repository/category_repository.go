package repository

import (
	"context"
	"database/sql"

	"github.com/ngconnect/marketplace-api/internal/model"
)

// CategoryRepo provides read access to listing categories.
type CategoryRepo struct{ DB *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{DB: db} }

// List returns all categories ordered by name.
func (r *CategoryRepo) List(ctx context.Context) ([]model.ListingCategory, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM listing_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ListingCategory
	for rows.Next() {
		var c model.ListingCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Exists reports whether a category ID is known.
func (r *CategoryRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var found uint64
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM listing_categories WHERE id=? LIMIT 1`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
