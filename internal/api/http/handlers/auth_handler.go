package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/picktime/picktime-api/internal/api/dto"
	"github.com/picktime/picktime-api/internal/service"
	apperrors "github.com/picktime/picktime-api/pkg/util/errorutil"
)

// HeaderAccessToken carries a freshly issued access token.
const HeaderAccessToken = "access"

// CookieConfig describes the refresh token cookie.
type CookieConfig struct {
	Name   string
	Path   string
	MaxAge int
	Secure bool
}

// AuthHandler exposes login, access token reissue and logout.
type AuthHandler struct {
	auth   *service.AuthService
	cookie CookieConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &AuthHandler{auth: authService, cookie: cookie}
}

// Login handles POST {base}/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return dto.ValidationError(err)
	}

	res, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	c.Set(HeaderAccessToken, res.Access.Value)
	c.Cookie(h.refreshCookie(res.Refresh.Value))
	return c.JSON(dto.LoginResponse{
		TokenResponse: dto.TokenResponse{AccessToken: res.Access.Value, ExpiresAt: res.Access.ExpiresAt},
		UserID:        res.Principal.UserID,
		Username:      res.Principal.Username,
		Role:          res.Principal.Role.String(),
	})
}

// Reissue handles POST {base}/reissue.
func (h *AuthHandler) Reissue(c *fiber.Ctx) error {
	access, err := h.auth.Reissue(c.Cookies(h.cookie.Name))
	if err != nil {
		return mapServiceError(err)
	}

	c.Set(HeaderAccessToken, access.Value)
	return c.JSON(dto.TokenResponse{AccessToken: access.Value, ExpiresAt: access.ExpiresAt})
}

// Logout handles POST {base}/logout by replacing the refresh cookie with one
// that expires immediately.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.Cookies(h.cookie.Name)); err != nil {
		return mapServiceError(err)
	}

	c.Append(fiber.HeaderSetCookie, h.expiredCookie())
	return c.JSON(dto.StatusResponse{Status: fiber.StatusOK, Message: "logged out"})
}

func (h *AuthHandler) refreshCookie(value string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		MaxAge:   h.cookie.MaxAge,
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// expiredCookie renders the clearing Set-Cookie value by hand: fiber.Cookie
// drops Max-Age when it is zero.
func (h *AuthHandler) expiredCookie() string {
	var b strings.Builder
	b.WriteString(h.cookie.Name)
	b.WriteString("=; Path=")
	b.WriteString(h.cookie.Path)
	b.WriteString("; Max-Age=0; Expires=")
	b.WriteString(time.Unix(0, 0).UTC().Format(http.TimeFormat))
	b.WriteString("; HttpOnly; SameSite=Lax")
	if h.cookie.Secure {
		b.WriteString("; Secure")
	}
	return b.String()
}
