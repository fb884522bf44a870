package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/ngconnect/marketplace-api/internal/model"
)

// ListingRepo provides CRUD and search operations for listings, their
// job details and their images. Listings flagged is_deleted are
// invisible to every read path. All timestamp fields are stored in UTC
// and written by the application rather than the database.
type ListingRepo struct{ DB *sql.DB }

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{DB: db} }

const listingColumns = `id, title, description, price, city, state, zipcode, category_id, created_user, is_deleted, tags, status, created_date, updated_date`

// CreateTx inserts a listing within the scope of an existing
// transaction. It populates the generated ID and timestamps on the
// provided record. The caller must commit or rollback the transaction.
func (r *ListingRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Listing) error {
	now := time.Now().UTC()
	l.CreatedDate = now
	l.UpdatedDate = now
	if l.Status == "" {
		l.Status = model.StatusActive
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO listings (title, description, price, city, state, zipcode, category_id, created_user, is_deleted, tags, status, created_date, updated_date)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.Title, l.Description, l.Price, l.City, l.State, l.Zipcode,
		l.CategoryID, l.CreatedUser, l.IsDeleted, encodeTags(l.Tags), l.Status,
		l.CreatedDate, l.UpdatedDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// CreateJobTx inserts the job row attached to a listing within a
// transaction. The listing and its job are created atomically by the
// handler; a failure here rolls back the listing insert too.
func (r *ListingRepo) CreateJobTx(ctx context.Context, tx *sql.Tx, j *model.Job) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO job_listings (listing_id, min_rate, max_rate, start_date, end_date) VALUES (?,?,?,?,?)`,
		j.ListingID, j.MinRate, j.MaxRate, j.StartDate, j.EndDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	j.ID = uint64(id)
	return nil
}

// GetByID fetches a single visible listing with its owner, job details
// and images eagerly loaded. Soft-deleted listings yield
// ErrListingNotFound.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	l, err := r.getBare(ctx, r.DB, id)
	if err != nil {
		return l, err
	}
	if err := r.attachRelations(ctx, []*model.Listing{&l}); err != nil {
		return l, err
	}
	return l, nil
}

func (r *ListingRepo) getBare(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, id uint64) (model.Listing, error) {
	var (
		l    model.Listing
		tags string
	)
	err := q.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id=? AND is_deleted=? LIMIT 1`,
		id, false).Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &l.City, &l.State, &l.Zipcode,
		&l.CategoryID, &l.CreatedUser, &l.IsDeleted, &tags, &l.Status,
		&l.CreatedDate, &l.UpdatedDate)
	if err == sql.ErrNoRows {
		return l, ErrListingNotFound
	}
	if err != nil {
		return l, err
	}
	l.Tags = decodeTags(tags)
	return l, nil
}

// GetOwnedTx fetches a listing inside a transaction and verifies the
// caller owns it. A visible listing owned by someone else yields
// ErrForbidden.
func (r *ListingRepo) GetOwnedTx(ctx context.Context, tx *sql.Tx, id uint64, userID string) (model.Listing, error) {
	l, err := r.getBare(ctx, tx, id)
	if err != nil {
		return l, err
	}
	if l.CreatedUser != userID {
		return l, ErrForbidden
	}
	return l, nil
}

// ListingUpdate carries the mutable listing fields for an edit. Nil
// pointers leave the stored value untouched.
type ListingUpdate struct {
	Title       *string
	Description *string
	Price       *float64
	City        *string
	State       *string
	Zipcode     *string
	Tags        []string
	Status      *string
	IsDeleted   *bool
}

// UpdateTx applies the non-nil fields of upd to a listing within a
// transaction and bumps updated_date. The caller is expected to have
// verified ownership first via GetOwnedTx.
func (r *ListingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, upd ListingUpdate) error {
	set := []string{"updated_date=?"}
	args := []any{time.Now().UTC()}
	add := func(col string, v any) {
		set = append(set, col+"=?")
		args = append(args, v)
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.City != nil {
		add("city", *upd.City)
	}
	if upd.State != nil {
		add("state", *upd.State)
	}
	if upd.Zipcode != nil {
		add("zipcode", *upd.Zipcode)
	}
	if upd.Tags != nil {
		add("tags", encodeTags(upd.Tags))
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.IsDeleted != nil {
		add("is_deleted", *upd.IsDeleted)
	}
	args = append(args, id)
	_, err := tx.ExecContext(ctx,
		`UPDATE listings SET `+strings.Join(set, ", ")+` WHERE id=?`, args...)
	return err
}

// JobUpdate carries the mutable job fields for an edit.
type JobUpdate struct {
	MinRate   *float64
	MaxRate   *float64
	StartDate *time.Time
	EndDate   *time.Time
}

// UpdateJobTx applies the non-nil fields of upd to the job row attached
// to listingID. A listing with no job row yields ErrJobNotFound.
func (r *ListingRepo) UpdateJobTx(ctx context.Context, tx *sql.Tx, listingID uint64, upd JobUpdate) error {
	set := []string{}
	args := []any{}
	if upd.MinRate != nil {
		set = append(set, "min_rate=?")
		args = append(args, *upd.MinRate)
	}
	if upd.MaxRate != nil {
		set = append(set, "max_rate=?")
		args = append(args, *upd.MaxRate)
	}
	if upd.StartDate != nil {
		set = append(set, "start_date=?")
		args = append(args, *upd.StartDate)
	}
	if upd.EndDate != nil {
		set = append(set, "end_date=?")
		args = append(args, *upd.EndDate)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, listingID)
	res, err := tx.ExecContext(ctx,
		`UPDATE job_listings SET `+strings.Join(set, ", ")+` WHERE listing_id=?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListingSearchQuery defines filters & pagination for the public
// listing search.
type ListingSearchQuery struct {
	CategoryIDs []uint64
	Query       string
	Limit       int
	Offset      int
	Order       string
}

// Search returns a page of visible listings matching the query filters
// together with the total match count. Relations are eagerly loaded
// for the returned page only.
func (r *ListingRepo) Search(ctx context.Context, q ListingSearchQuery) ([]model.Listing, int64, error) {
	where := []string{"is_deleted=?"}
	args := []any{false}

	if len(q.CategoryIDs) > 0 {
		ph := make([]string, len(q.CategoryIDs))
		for i, id := range q.CategoryIDs {
			ph[i] = "?"
			args = append(args, id)
		}
		where = append(where, "category_id IN ("+strings.Join(ph, ",")+")")
	}
	if q.Query != "" {
		needle := "%" + strings.ToLower(q.Query) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, needle, needle)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + listingColumns + ` FROM listings WHERE ` + cond +
		` ORDER BY ` + q.Order + ` LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, dataSQL, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	listings, err := scanListings(rows)
	if err != nil {
		return nil, 0, err
	}
	refs := make([]*model.Listing, len(listings))
	for i := range listings {
		refs[i] = &listings[i]
	}
	if err := r.attachRelations(ctx, refs); err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// ListByUser returns a page of the user's own visible listings with
// the total count.
func (r *ListingRepo) ListByUser(ctx context.Context, userID, order string, limit, offset int) ([]model.Listing, int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE created_user=? AND is_deleted=?`,
		userID, false).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE created_user=? AND is_deleted=? ORDER BY `+order+` LIMIT ? OFFSET ?`,
		userID, false, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	listings, err := scanListings(rows)
	if err != nil {
		return nil, 0, err
	}
	refs := make([]*model.Listing, len(listings))
	for i := range listings {
		refs[i] = &listings[i]
	}
	if err := r.attachRelations(ctx, refs); err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func scanListings(rows *sql.Rows) ([]model.Listing, error) {
	defer rows.Close()
	var out []model.Listing
	for rows.Next() {
		var (
			l    model.Listing
			tags string
		)
		if err := rows.Scan(
			&l.ID, &l.Title, &l.Description, &l.Price, &l.City, &l.State, &l.Zipcode,
			&l.CategoryID, &l.CreatedUser, &l.IsDeleted, &tags, &l.Status,
			&l.CreatedDate, &l.UpdatedDate); err != nil {
			return nil, err
		}
		l.Tags = decodeTags(tags)
		out = append(out, l)
	}
	return out, rows.Err()
}

// attachRelations loads owners, job details and images for a batch of
// listings with one IN query per relation, then distributes the rows
// back onto the listings through index maps.
func (r *ListingRepo) attachRelations(ctx context.Context, listings []*model.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Listing, len(listings))
	byUser := make(map[string][]*model.Listing)
	idPH := make([]string, 0, len(listings))
	idArgs := make([]any, 0, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
		byUser[l.CreatedUser] = append(byUser[l.CreatedUser], l)
		idPH = append(idPH, "?")
		idArgs = append(idArgs, l.ID)
	}
	in := "(" + strings.Join(idPH, ",") + ")"

	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, listing_id, min_rate, max_rate, start_date, end_date FROM job_listings WHERE listing_id IN `+in, idArgs...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.ListingID, &j.MinRate, &j.MaxRate, &j.StartDate, &j.EndDate); err != nil {
			rows.Close()
			return err
		}
		if l, ok := byID[j.ListingID]; ok {
			job := j
			l.Job = &job
		}
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = r.DB.QueryContext(ctx,
		`SELECT id, listing_id, url FROM listing_images WHERE listing_id IN `+in+` ORDER BY id`, idArgs...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var img model.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL); err != nil {
			rows.Close()
			return err
		}
		if l, ok := byID[img.ListingID]; ok {
			l.Images = append(l.Images, img)
		}
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	userPH := make([]string, 0, len(byUser))
	userArgs := make([]any, 0, len(byUser))
	for id := range byUser {
		userPH = append(userPH, "?")
		userArgs = append(userArgs, id)
	}
	rows, err = r.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+strings.Join(userPH, ",")+`)`, userArgs...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Role,
			&u.Address, &u.City, &u.State, &u.Zipcode, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
			rows.Close()
			return err
		}
		for _, l := range byUser[u.ID] {
			owner := u
			l.User = &owner
		}
	}
	return closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// Tags are stored as a JSON array so individual tags may contain any
// character, commas included, and keep their order.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}
