package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh tokens. Tokens are stored raw and keyed
// by their value; the presence of a row is what makes a refresh token
// valid, so deleting the row on logout invalidates it immediately.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token row for the given user.
func (r *TokenRepo) Store(ctx context.Context, token, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (token, user_id, created_at) VALUES (?,?,?)",
		token, userID, time.Now().UTC())
	return err
}

// Find returns the owning user ID for a stored token. A missing row
// yields sql.ErrNoRows.
func (r *TokenRepo) Find(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM refresh_tokens WHERE token=? LIMIT 1",
		token).Scan(&userID)
	return userID, err
}

// Delete removes a stored token and reports whether a row was deleted.
func (r *TokenRepo) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token=?", token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
