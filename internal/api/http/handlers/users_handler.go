package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/picktime/picktime-api/internal/api/dto"
	"github.com/picktime/picktime-api/internal/auth"
	"github.com/picktime/picktime-api/internal/service"
	apperrors "github.com/picktime/picktime-api/pkg/util/errorutil"
)

// UsersHandler exposes registration and signed-in account endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST {base}/user.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return dto.ValidationError(err)
	}

	if _, err := h.auth.Register(c.UserContext(), req.Username, req.Password, req.Name); err != nil {
		return mapServiceError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.StatusResponse{
		Status:  fiber.StatusCreated,
		Message: "user created",
	})
}

// Me handles GET {base}/user.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorizedCode(auth.CodeAuthRequired, "authentication required")
	}
	user, err := h.auth.Me(c.UserContext(), principal)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.UserResponse{Username: user.Username, Name: user.Name, Level: user.Level})
}

// CheckPassword handles POST {base}/user/password/check.
func (h *UsersHandler) CheckPassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorizedCode(auth.CodeAuthRequired, "authentication required")
	}
	var req dto.PasswordCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return dto.ValidationError(err)
	}

	if err := h.auth.CheckPassword(c.UserContext(), principal, req.Password); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.StatusResponse{Status: fiber.StatusOK, Message: "password matched"})
}

// AdminPing handles GET {base}/admin/ping.
func (h *UsersHandler) AdminPing(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	return c.JSON(fiber.Map{"status": "ok", "username": principal.Username})
}
