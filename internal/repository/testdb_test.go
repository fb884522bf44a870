package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/repository"
)

// openTestDB spins up an in-memory sqlite database carrying the full
// marketplace schema. Each test gets its own isolated database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// A pooled :memory: DSN would hand each connection its own empty
	// database, so pin the pool to a single connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	const schema = `
	CREATE TABLE users (
		id         TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name  TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		role       TEXT NOT NULL,
		address    TEXT NOT NULL DEFAULT '',
		city       TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL DEFAULT '',
		zipcode    TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE listing_categories (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE listings (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL,
		price        REAL NOT NULL DEFAULT 0,
		city         TEXT NOT NULL DEFAULT '',
		state        TEXT NOT NULL DEFAULT '',
		zipcode      TEXT NOT NULL DEFAULT '',
		category_id  INTEGER NOT NULL,
		created_user TEXT NOT NULL,
		is_deleted   BOOLEAN NOT NULL DEFAULT 0,
		tags         TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		created_date DATETIME NOT NULL,
		updated_date DATETIME NOT NULL
	);
	CREATE TABLE job_listings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id INTEGER NOT NULL UNIQUE,
		min_rate   REAL NOT NULL,
		max_rate   REAL NOT NULL,
		start_date DATETIME NOT NULL,
		end_date   DATETIME NOT NULL
	);
	CREATE TABLE listing_images (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id INTEGER NOT NULL,
		url        TEXT NOT NULL
	);
	CREATE TABLE listing_requests (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id   INTEGER NOT NULL,
		created_user TEXT NOT NULL,
		created_date DATETIME NOT NULL,
		updated_date DATETIME NOT NULL,
		UNIQUE (created_user, listing_id)
	);
	CREATE TABLE reservation_dates (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_request_id INTEGER NOT NULL,
		reservation_date   DATETIME NOT NULL,
		created_date       DATETIME NOT NULL,
		updated_date       DATETIME NOT NULL
	);
	CREATE TABLE conversations (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_request_id INTEGER NOT NULL,
		message            TEXT NOT NULL,
		sender_id          TEXT NOT NULL,
		receiver_id        TEXT NOT NULL,
		created_date       DATETIME NOT NULL
	);
	CREATE TABLE refresh_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		token      TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	INSERT INTO listing_categories (id, name) VALUES (1, 'Jobs'), (2, 'Services'), (3, 'Rentals');`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *sql.DB, email string) model.User {
	t.Helper()
	users := repository.NewUserRepo(db)
	u := model.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Role:      model.RoleUser,
		Password:  "secret-pass",
	}
	if err := users.Create(context.Background(), &u, 4); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func seedListing(t *testing.T, db *sql.DB, ownerID string, categoryID uint64, title string) model.Listing {
	t.Helper()
	listings := repository.NewListingRepo(db)
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	l := model.Listing{
		Title:       title,
		Description: "a " + title,
		Price:       42,
		CategoryID:  categoryID,
		CreatedUser: ownerID,
	}
	if err := listings.CreateTx(ctx, tx, &l); err != nil {
		_ = tx.Rollback()
		t.Fatalf("seed listing: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return l
}

func futureDate(days int) time.Time {
	return time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
}
