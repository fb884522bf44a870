package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/config"
	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/middleware"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/repository"
	"github.com/ngconnect/marketplace-api/internal/utils"
	"github.com/ngconnect/marketplace-api/internal/validate"
)

// AuthHandler bundles dependencies for account and token endpoints.
// Access and refresh tokens are signed with distinct secrets; refresh
// tokens are additionally persisted raw, so a token that parses but
// has no row is rejected.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Phone     string `json:"phone"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"accessToken"`
	Refresh tokenPart  `json:"refreshToken"`
}

func (r registerReq) fields() map[string]string {
	return map[string]string{
		"firstName": r.FirstName,
		"lastName":  r.LastName,
		"email":     r.Email,
		"password":  r.Password,
		"role":      r.Role,
		"address":   r.Address,
		"city":      r.City,
		"state":     r.State,
		"zipcode":   r.Zipcode,
		"phone":     r.Phone,
	}
}

// Register handles POST /api/users/register.  It validates the body
// against the user rules, creates the account and returns the stored
// profile without tokens; the client logs in separately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if errs := validate.Apply(validate.UserRules, req.fields()); len(errs) > 0 {
		return httperr.Validation(errs)
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u := model.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      role,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Zipcode:   req.Zipcode,
		Phone:     req.Phone,
	}
	if err := h.Users.Create(ctx, &u, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return httperr.Duplicate("email", "email must be unique")
		}
		return httperr.Store(err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Login handles POST /api/users/login.  An unknown email yields 404,
// a wrong password 401.  Both tokens are minted together and the
// refresh token is persisted before anything is returned; a failed
// save fails the whole login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest("invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return httperr.BadRequest("email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return httperr.NotFound("User not found")
		}
		return httperr.Store(err)
	}
	if !utils.VerifyPassword(u.Password, req.Password) {
		return httperr.Unauthorized("Invalid password")
	}

	principal := model.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, principal, h.Cfg.AccessTTLMin)
	if err != nil {
		return httperr.Internal("failed to issue access token")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.JWTRefreshSecret, principal, h.Cfg.RefreshTTLDays)
	if err != nil {
		return httperr.Internal("failed to issue refresh token")
	}
	if err := h.Tokens.Store(ctx, refresh.Token, u.ID); err != nil {
		return httperr.Store(err)
	}

	return c.JSON(http.StatusOK, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Token, Expires: refresh.Exp},
	})
}

// Refresh handles POST /api/users/refresh-token.  The supplied token
// must both verify against the refresh secret and still have a stored
// row; either failure yields 403.  A fresh access token is minted from
// the refresh claims.  The refresh token itself is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return httperr.BadRequest("refreshToken is required")
	}

	principal, err := utils.ParseToken(h.Cfg.JWTRefreshSecret, req.RefreshToken)
	if err != nil {
		return httperr.Forbidden("Invalid refresh token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Tokens.Find(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.Forbidden("Invalid refresh token")
		}
		return httperr.Store(err)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, principal, h.Cfg.AccessTTLMin)
	if err != nil {
		return httperr.Internal("failed to issue access token")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout handles POST /api/users/logout.  Deleting the stored row is
// what invalidates the refresh token; an unknown token yields 404.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return httperr.BadRequest("refreshToken is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	deleted, err := h.Tokens.Delete(ctx, req.RefreshToken)
	if err != nil {
		return httperr.Store(err)
	}
	if !deleted {
		return httperr.NotFound("Refresh token not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Me handles GET /api/users/me and returns the stored profile of the
// authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return httperr.NotFound("User not found")
		}
		return httperr.Store(err)
	}
	return c.JSON(http.StatusOK, u)
}
