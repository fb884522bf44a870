package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/ngconnect/marketplace-api/internal/config"
	"github.com/ngconnect/marketplace-api/internal/handler"
	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/router"
	"github.com/ngconnect/marketplace-api/internal/utils"
)

// testEnv wires the full route table against an in-memory sqlite
// database so tests exercise the same paths clients hit.
type testEnv struct {
	e        *echo.Echo
	db       *sql.DB
	cfg      config.Config
	users    *repository.UserRepo
	requests *repository.RequestRepo
	listings *repository.ListingRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}

	cfg := config.Config{
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		AccessTTLMin:     120,
		RefreshTTLDays:   7,
		BcryptCost:       4,
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	categories := repository.NewCategoryRepo(db)
	requests := repository.NewRequestRepo(db)

	e := echo.New()
	e.HTTPErrorHandler = httperr.EchoHandler(zerolog.Nop())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterListings(e, handler.NewListingHandler(listings, categories), cfg.JWTSecret, nil)
	router.RegisterRequests(e, handler.NewRequestHandler(requests, listings, nil, zerolog.Nop()), cfg.JWTSecret)

	return &testEnv{e: e, db: db, cfg: cfg, users: users, requests: requests, listings: listings}
}

const testSchema = `
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

// seedUser creates an account directly through the repository and
// returns it together with a signed access token.
func (env *testEnv) seedUser(t *testing.T, email, role string) (model.User, string) {
	t.Helper()
	u := model.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Role:      role,
		Password:  "secret-pass",
	}
	if err := env.users.Create(context.Background(), &u, env.cfg.BcryptCost); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tok, err := utils.NewAccessToken(env.cfg.JWTSecret, model.Principal{ID: u.ID, Email: u.Email, Role: u.Role}, env.cfg.AccessTTLMin)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return u, tok.Token
}

func (env *testEnv) seedListing(t *testing.T, ownerID string, categoryID uint64, title string) model.Listing {
	t.Helper()
	ctx := context.Background()
	tx, err := env.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	l := model.Listing{
		Title:       title,
		Description: "a " + title,
		Price:       42,
		City:        "Austin",
		State:       "TX",
		Zipcode:     "73301",
		CategoryID:  categoryID,
		CreatedUser: ownerID,
	}
	if err := env.listings.CreateTx(ctx, tx, &l); err != nil {
		_ = tx.Rollback()
		t.Fatalf("seed listing: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return l
}

// do sends a JSON request through the whole Echo stack.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func isoDate(days int) string {
	return time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	wantStatus(t, rec, http.StatusOK)
}
