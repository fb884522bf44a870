package model

import "time"

// Role values stored in users.role.  BUSINESS accounts can post job
// listings on behalf of a company; USER is the default for new
// registrations.  ADMIN is reserved and never assigned by the API.
const (
	RoleAdmin    = "ADMIN"
	RoleBusiness = "BUSINESS"
	RoleUser     = "USER"
)

// User mirrors the `users` table.  The primary key is a UUIDv4 string
// generated at registration time.  Password holds the bcrypt hash and is
// never serialized.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zipcode   string    `json:"zipcode"`
	Phone     string    `json:"phone"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Principal is the authenticated identity decoded from a verified access
// token.  Middleware stores it in the request context; every mutating
// operation requires a non-empty ID.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RefreshToken mirrors the `refresh_tokens` table.  The raw signed token
// is the lookup key: presence of the row is the sole proof of validity,
// so deleting it on logout invalidates the session even while the
// token's own signature is still valid.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	Token     string    // refresh_tokens.token
	UserID    string    // refresh_tokens.user_id
	CreatedAt time.Time // refresh_tokens.created_at
}
