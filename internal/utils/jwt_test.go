package utils_test

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/utils"
)

var testUser = model.Principal{ID: "3f2b6a1e-9d1c-4f0a-8f33-0c1d2e3f4a5b", Email: "a@b.com", Role: "USER"}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := utils.NewAccessToken("access-secret", testUser, 120)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := utils.ParseToken("access-secret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p != testUser {
		t.Fatalf("principal = %+v, want %+v", p, testUser)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	tok, err := utils.NewRefreshToken("refresh-secret", testUser, 7)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// a refresh token must never verify against the access secret
	if _, err := utils.ParseToken("access-secret", tok.Token); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestExpiredToken(t *testing.T) {
	tok, err := utils.NewAccessToken("s", testUser, -1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = utils.ParseToken("s", tok.Token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestGarbageToken(t *testing.T) {
	if _, err := utils.ParseToken("s", "not.a.jwt"); !errors.Is(err, utils.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}
