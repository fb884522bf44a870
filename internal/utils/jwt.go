package utils // package utils provides helper functions for token signing and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ngconnect/marketplace-api/internal/model"
)

// SignedToken pairs a serialized JWT with its UTC expiration time.
// Access tokens are short-lived and carried in the Authorization header;
// refresh tokens are long-lived JWTs signed with a separate secret and
// persisted by the token repository, which is what logout invalidates.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// ErrInvalidToken is returned by ParseToken for any token that fails
// signature, expiry or claim-shape checks.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken signs an HS256 access token for the user with the given
// TTL in minutes.  Claims: id, email, role, exp, iat.
func NewAccessToken(secret string, u model.Principal, ttlMin int) (SignedToken, error) {
	return sign(secret, u, time.Duration(ttlMin)*time.Minute)
}

// NewRefreshToken signs an HS256 refresh token with the refresh secret
// and a TTL in days.  It carries the same claims as the access token so
// a refresh call can mint a new access token directly from them.
func NewRefreshToken(secret string, u model.Principal, ttlDays int) (SignedToken, error) {
	return sign(secret, u, time.Duration(ttlDays)*24*time.Hour)
}

func sign(secret string, u model.Principal, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"id":    u.ID,
		"email": u.Email,
		"role":  u.Role,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies an HS256 token against the given secret and
// returns the embedded principal.  Expired tokens surface
// jwt.ErrTokenExpired so callers may distinguish the message; any other
// failure is ErrInvalidToken.
func ParseToken(secret, raw string) (model.Principal, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Principal{}, jwt.ErrTokenExpired
		}
		return model.Principal{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return model.Principal{}, ErrInvalidToken
	}
	p := model.Principal{}
	if v, ok := claims["id"].(string); ok {
		p.ID = v
	}
	if v, ok := claims["email"].(string); ok {
		p.Email = v
	}
	if v, ok := claims["role"].(string); ok {
		p.Role = v
	}
	if p.ID == "" {
		return model.Principal{}, ErrInvalidToken
	}
	return p, nil
}
