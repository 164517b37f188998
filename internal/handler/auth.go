package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/config"
	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/repository"
	"github.com/iliyamo/slotta-engine/internal/utils"
)

// AuthHandler bundles dependencies for provider auth endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Providers ProviderStore
	Tokens    TokenStore
}

func NewAuthHandler(cfg config.Config, p ProviderStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Providers: p, Tokens: t}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type providerPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Role  string `json:"role"`
}
type authResp struct {
	Provider providerPart `json:"provider"`
	Access   tokenPart    `json:"access"`
	Refresh  tokenPart    `json:"refresh"`
}

func partOf(p model.Provider) providerPart {
	return providerPart{ID: p.ID, Email: p.Email, Name: p.Name, Slug: p.Slug, Role: p.Role}
}

// issue signs an access token and stores a fresh refresh token.
func (h *AuthHandler) issue(c echo.Context, p model.Provider, status int) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, p.ID, p.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, p.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		middleware.SetError(c, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		Provider: partOf(p),
		Access:   tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:  tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Register: create provider and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Name == "" {
		return badRequest(c, "name required")
	}
	if !slugPattern.MatchString(req.Slug) {
		return badRequest(c, "slug must be 2-63 lowercase letters, digits or dashes")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	id, err := h.Providers.Create(ctx, req.Email, req.Password, req.Name, req.Slug, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email or slug already taken"})
		}
		middleware.SetError(c, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create provider failed"})
	}
	p := model.Provider{ID: id, Email: req.Email, Name: req.Name, Slug: req.Slug, Role: model.RoleProvider, IsActive: true}
	return h.issue(c, p, http.StatusCreated)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.Providers.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		middleware.SetError(c, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !p.IsActive || !utils.VerifyPassword(p.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, p, http.StatusOK)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.validRefresh(c, hash)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		middleware.SetError(c, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return h.issue(c, p, http.StatusOK)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	p, ok := h.validRefresh(c, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, p.ID, p.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// validRefresh resolves a refresh token hash to an active provider.
func (h *AuthHandler) validRefresh(c echo.Context, hash string) (model.Provider, bool) {
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return model.Provider{}, false
	}
	p, err := h.Providers.GetByID(ctx, id)
	if err != nil || !p.IsActive {
		return model.Provider{}, false
	}
	return p, true
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the caller when only a bearer access token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var (
		pid       uint64
		hasBearer bool
	)
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if id, _, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			pid, hasBearer = id, true
		}
	}

	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := withTimeout(c)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			middleware.SetError(c, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	case hasBearer:
		if err := h.Tokens.RevokeAllForProvider(ctx, pid); err != nil {
			middleware.SetError(c, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me returns the authenticated provider's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	pid, ok := middleware.ProviderID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Providers.GetByID(ctx, pid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
