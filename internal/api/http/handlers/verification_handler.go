package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/picktime/picktime-api/internal/api/dto"
	"github.com/picktime/picktime-api/internal/service"
	apperrors "github.com/picktime/picktime-api/pkg/util/errorutil"
)

// VerificationHandler exposes email verification endpoints.
type VerificationHandler struct {
	verifications *service.VerificationService
}

// NewVerificationHandler constructs handler.
func NewVerificationHandler(verifications *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

// RequestEmail handles POST {base}/verification/email.
func (h *VerificationHandler) RequestEmail(c *fiber.Ctx) error {
	var req dto.VerificationEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return dto.ValidationError(err)
	}

	if _, err := h.verifications.RequestCode(c.UserContext(), req.Username); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.StatusResponse{Status: fiber.StatusOK, Message: "verification email sent"})
}

// Check handles POST {base}/verification/check.
func (h *VerificationHandler) Check(c *fiber.Ctx) error {
	var req dto.CheckVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return dto.ValidationError(err)
	}

	if err := h.verifications.Check(c.UserContext(), req.Username, req.VerificationNumber); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.StatusResponse{Status: fiber.StatusOK, Message: "email verified successfully"})
}
