package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/utils"
)

// UserRepo provides access to the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, first_name, last_name, email, password, role, address, city, state, zipcode, phone, created_at, updated_at`

// Create hashes the password, assigns a fresh UUID and inserts the user.
// On success u.ID, u.Password (the hash) and the timestamps are populated.
func (r *UserRepo) Create(ctx context.Context, u *model.User, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return err
	}
	u.ID = uuid.NewString()
	u.Password = hash
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.Password, u.Role,
		u.Address, u.City, u.State, u.Zipcode, u.Phone, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=? LIMIT 1`, email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=? LIMIT 1`, id)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Role,
		&u.Address, &u.City, &u.State, &u.Zipcode, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrUserNotFound
	}
	return u, err
}
