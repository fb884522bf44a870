package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ngconnect/marketplace-api/internal/model"
)

// RequestRepo provides access to listing requests, their reservation
// dates and their conversation threads. A request, its dates and the
// opening message are created atomically inside a handler-owned
// transaction. All timestamps are stored in UTC and written by the
// application.
type RequestRepo struct{ DB *sql.DB }

func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{DB: db} }

// Exists reports whether the user already has a request against the
// listing. The unique index on (created_user, listing_id) backs the
// same rule at the database level.
func (r *RequestRepo) Exists(ctx context.Context, userID string, listingID uint64) (bool, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		`SELECT id FROM listing_requests WHERE created_user=? AND listing_id=? LIMIT 1`,
		userID, listingID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts a request row within the scope of an existing
// transaction and populates its ID and timestamps. A violated
// (created_user, listing_id) unique index yields ErrDuplicateRequest.
func (r *RequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.ListingRequest) error {
	now := time.Now().UTC()
	req.CreatedDate = now
	req.UpdatedDate = now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO listing_requests (listing_id, created_user, created_date, updated_date) VALUES (?,?,?,?)`,
		req.ListingID, req.CreatedUser, req.CreatedDate, req.UpdatedDate)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateRequest
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

// AddReservationDatesTx inserts the request's reservation dates in a
// single statement. Passing an empty slice has no effect.
func (r *RequestRepo) AddReservationDatesTx(ctx context.Context, tx *sql.Tx, requestID uint64, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	query := `INSERT INTO reservation_dates (listing_request_id, reservation_date, created_date, updated_date) VALUES `
	args := make([]any, 0, len(dates)*4)
	for i, d := range dates {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?,?)"
		args = append(args, requestID, d.UTC(), now, now)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// AddConversationTx inserts a conversation message within a
// transaction. Used for the opening message when a request is created.
func (r *RequestRepo) AddConversationTx(ctx context.Context, tx *sql.Tx, c *model.Conversation) error {
	c.CreatedDate = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (listing_request_id, message, sender_id, receiver_id, created_date) VALUES (?,?,?,?,?)`,
		c.ListingRequestID, c.Message, c.SenderID, c.ReceiverID, c.CreatedDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// AppendMessage adds a message to an existing request's thread. The
// participant pair is fixed by the request's first conversation row:
// both sender and receiver must belong to it, and they must differ.
func (r *RequestRepo) AppendMessage(ctx context.Context, c *model.Conversation) error {
	var first model.Conversation
	err := r.DB.QueryRowContext(ctx,
		`SELECT sender_id, receiver_id FROM conversations WHERE listing_request_id=? ORDER BY id ASC LIMIT 1`,
		c.ListingRequestID).Scan(&first.SenderID, &first.ReceiverID)
	if err == sql.ErrNoRows {
		return ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	if c.SenderID == c.ReceiverID {
		return ErrSelfMessage
	}
	if !isParticipant(first, c.SenderID) || !isParticipant(first, c.ReceiverID) {
		return ErrNotParticipant
	}
	c.CreatedDate = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO conversations (listing_request_id, message, sender_id, receiver_id, created_date) VALUES (?,?,?,?,?)`,
		c.ListingRequestID, c.Message, c.SenderID, c.ReceiverID, c.CreatedDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)

	_, err = r.DB.ExecContext(ctx,
		`UPDATE listing_requests SET updated_date=? WHERE id=?`, c.CreatedDate, c.ListingRequestID)
	return err
}

func isParticipant(first model.Conversation, userID string) bool {
	return userID == first.SenderID || userID == first.ReceiverID
}

const requestColumns = `id, listing_id, created_user, created_date, updated_date`

// GetByIDForUser fetches a request with its reservation dates and
// conversations, visible only to the user who created it. Requests
// created by anyone else yield ErrRequestNotFound rather than a
// forbidden error, so their existence is not leaked.
func (r *RequestRepo) GetByIDForUser(ctx context.Context, id uint64, userID string) (model.ListingRequest, error) {
	var req model.ListingRequest
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM listing_requests WHERE id=? AND created_user=? LIMIT 1`,
		id, userID).Scan(&req.ID, &req.ListingID, &req.CreatedUser, &req.CreatedDate, &req.UpdatedDate)
	if err == sql.ErrNoRows {
		return req, ErrRequestNotFound
	}
	if err != nil {
		return req, err
	}
	if err := r.attachDetails(ctx, []*model.ListingRequest{&req}); err != nil {
		return req, err
	}
	return req, nil
}

// ListByListing returns a page of requests against a listing. Only
// requests with at least one conversation message appear, ordered by
// their most recent message first.
func (r *RequestRepo) ListByListing(ctx context.Context, listingID uint64, limit, offset int) ([]model.ListingRequest, int64, error) {
	return r.listWithThreads(ctx, "lr.listing_id=?", listingID, limit, offset)
}

// ListByUser returns a page of the requests a user has created,
// subject to the same conversation join and ordering as ListByListing.
func (r *RequestRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.ListingRequest, int64, error) {
	return r.listWithThreads(ctx, "lr.created_user=?", userID, limit, offset)
}

func (r *RequestRepo) listWithThreads(ctx context.Context, cond string, arg any, limit, offset int) ([]model.ListingRequest, int64, error) {
	var total int64
	countSQL := `SELECT COUNT(DISTINCT lr.id)
		FROM listing_requests lr
		JOIN conversations c ON c.listing_request_id = lr.id
		WHERE ` + cond
	if err := r.DB.QueryRowContext(ctx, countSQL, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT lr.id, lr.listing_id, lr.created_user, lr.created_date, lr.updated_date
		FROM listing_requests lr
		JOIN conversations c ON c.listing_request_id = lr.id
		WHERE ` + cond + `
		GROUP BY lr.id, lr.listing_id, lr.created_user, lr.created_date, lr.updated_date
		ORDER BY MAX(c.created_date) DESC
		LIMIT ? OFFSET ?`
	rows, err := r.DB.QueryContext(ctx, dataSQL, arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ListingRequest
	for rows.Next() {
		var req model.ListingRequest
		if err := rows.Scan(&req.ID, &req.ListingID, &req.CreatedUser, &req.CreatedDate, &req.UpdatedDate); err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	refs := make([]*model.ListingRequest, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.attachDetails(ctx, refs); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Conversations returns a page of a request's messages with the total
// count. The request must be visible to the user either as creator or
// as a thread participant.
func (r *RequestRepo) Conversations(ctx context.Context, requestID uint64, userID, order string, limit, offset int) ([]model.Conversation, int64, error) {
	var createdUser string
	err := r.DB.QueryRowContext(ctx,
		`SELECT created_user FROM listing_requests WHERE id=? LIMIT 1`, requestID).Scan(&createdUser)
	if err == sql.ErrNoRows {
		return nil, 0, ErrRequestNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	if createdUser != userID {
		var n int64
		err := r.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM conversations WHERE listing_request_id=? AND (sender_id=? OR receiver_id=?)`,
			requestID, userID, userID).Scan(&n)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return nil, 0, ErrForbidden
		}
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE listing_request_id=?`, requestID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, listing_request_id, message, sender_id, receiver_id, created_date
		 FROM conversations WHERE listing_request_id=? ORDER BY `+order+`, id LIMIT ? OFFSET ?`,
		requestID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.ListingRequestID, &c.Message, &c.SenderID, &c.ReceiverID, &c.CreatedDate); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// attachDetails loads reservation dates and conversations for a batch
// of requests with one IN query per relation.
func (r *RequestRepo) attachDetails(ctx context.Context, reqs []*model.ListingRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.ListingRequest, len(reqs))
	ph := make([]string, 0, len(reqs))
	args := make([]any, 0, len(reqs))
	for _, req := range reqs {
		byID[req.ID] = req
		ph = append(ph, "?")
		args = append(args, req.ID)
	}
	in := "(" + strings.Join(ph, ",") + ")"

	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, listing_request_id, reservation_date, created_date, updated_date
		 FROM reservation_dates WHERE listing_request_id IN `+in+` ORDER BY reservation_date`, args...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var d model.ReservationDate
		if err := rows.Scan(&d.ID, &d.ListingRequestID, &d.ReservationDate, &d.CreatedDate, &d.UpdatedDate); err != nil {
			rows.Close()
			return err
		}
		if req, ok := byID[d.ListingRequestID]; ok {
			req.ReservationDates = append(req.ReservationDates, d)
		}
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = r.DB.QueryContext(ctx,
		`SELECT id, listing_request_id, message, sender_id, receiver_id, created_date
		 FROM conversations WHERE listing_request_id IN `+in+` ORDER BY created_date ASC, id ASC`, args...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.ListingRequestID, &c.Message, &c.SenderID, &c.ReceiverID, &c.CreatedDate); err != nil {
			rows.Close()
			return err
		}
		if req, ok := byID[c.ListingRequestID]; ok {
			req.Conversations = append(req.Conversations, c)
		}
	}
	return closeRows(rows)
}
