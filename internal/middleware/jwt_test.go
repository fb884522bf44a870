package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/middleware"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/utils"
)

const secret = "test-secret"

func invoke(t *testing.T, authHeader string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = httperr.EchoHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := middleware.JWTAuth(secret)(next)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestJWTAuthMissingToken(t *testing.T) {
	rec := invoke(t, "", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "Access token is missing" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestJWTAuthInvalidToken(t *testing.T) {
	rec := invoke(t, "Bearer garbage", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthExpiredToken(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, model.Principal{ID: "u1", Email: "a@b.com", Role: "USER"}, -5)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := invoke(t, "Bearer "+tok.Token, func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "Token expired!" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestJWTAuthValidToken(t *testing.T) {
	want := model.Principal{ID: "u1", Email: "a@b.com", Role: "BUSINESS"}
	tok, err := utils.NewAccessToken(secret, want, 60)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec := invoke(t, "Bearer "+tok.Token, func(c echo.Context) error {
		p, err := middleware.CurrentPrincipal(c)
		if err != nil {
			return err
		}
		if p != want {
			t.Fatalf("principal = %+v, want %+v", p, want)
		}
		return c.String(http.StatusOK, "ok")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}
