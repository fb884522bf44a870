package repository

import (
	"context"
	"database/sql"

	"github.com/ngconnect/marketplace-api/internal/model"
)

// ImageRepo persists listing image records. The binary content lives
// in object storage; only the resulting URL is stored here.
type ImageRepo struct{ DB *sql.DB }

func NewImageRepo(db *sql.DB) *ImageRepo { return &ImageRepo{DB: db} }

// CreateBulk inserts image rows for a listing in a single statement.
func (r *ImageRepo) CreateBulk(ctx context.Context, images []model.ListingImage) error {
	if len(images) == 0 {
		return nil
	}
	query := `INSERT INTO listing_images (listing_id, url) VALUES `
	args := make([]any, 0, len(images)*2)
	for i, img := range images {
		if i > 0 {
			query += ","
		}
		query += "(?,?)"
		args = append(args, img.ListingID, img.URL)
	}
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

// ListByListing returns a listing's images ordered by insertion.
func (r *ImageRepo) ListByListing(ctx context.Context, listingID uint64) ([]model.ListingImage, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, listing_id, url FROM listing_images WHERE listing_id=? ORDER BY id`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ListingImage
	for rows.Next() {
		var img model.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
