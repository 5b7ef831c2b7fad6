package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/picktime/picktime-api/internal/domain"
	apperrors "github.com/picktime/picktime-api/pkg/util/errorutil"
)

// Machine codes written by the gate on rejection.
const (
	CodeMalformedToken  = "MALFORMED_TOKEN"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeWrongCategory   = "WRONG_TOKEN_CATEGORY"
	CodeAccessExpired   = "ACCESS_TOKEN_EXPIRED"
	CodeAuthRequired    = "AUTHENTICATION_REQUIRED"
	MessageAccessExpire = "access token expired"
)

// RejectionRecorder receives the reason of every gate rejection.
type RejectionRecorder interface {
	RecordAuthRejection(reason string)
}

// PublicRoute is an allow-listed method and exact path that skips token checks.
type PublicRoute struct {
	Method string
	Path   string
}

// AuthMiddleware validates bearer access tokens and populates the request principal.
type AuthMiddleware struct {
	tokens  *TokenCodec
	logger  *zap.Logger
	metrics RejectionRecorder
	public  map[PublicRoute]struct{}
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenCodec, logger *zap.Logger, metrics RejectionRecorder, public ...PublicRoute) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[PublicRoute]struct{}, len(public))
	for _, r := range public {
		set[PublicRoute{Method: strings.ToUpper(r.Method), Path: r.Path}] = struct{}{}
	}
	return &AuthMiddleware{tokens: tokens, logger: logger, metrics: metrics, public: set}
}

// Handle runs the gate. A request without an Authorization header passes
// through unauthenticated; route guards decide whether that is acceptable.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.isPublic(c) {
		return c.Next()
	}

	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return c.Next()
	}

	token, err := bearerToken(header)
	if err != nil {
		return m.reject(c, err)
	}

	principal, err := m.Authenticate(token)
	if err != nil {
		return m.reject(c, err)
	}

	if !setPrincipal(c, principal) {
		return apperrors.NewInternalError(errors.New("principal already set for request"))
	}
	return c.Next()
}

// Authenticate checks a raw access token in order: signature, category,
// expiry, role. Nothing is written until every check passed.
func (m *AuthMiddleware) Authenticate(token string) (*Principal, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Category != CategoryAccess {
		return nil, ErrWrongCategory
	}
	if m.tokens.IsExpired(claims) {
		return nil, ErrExpiredToken
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrUnknownRole
	}
	return &Principal{UserID: claims.UserID, Username: claims.Username, Role: role}, nil
}

func (m *AuthMiddleware) isPublic(c *fiber.Ctx) bool {
	_, ok := m.public[PublicRoute{Method: c.Method(), Path: c.Path()}]
	return ok
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, err error) error {
	rejection := rejectionFor(err)
	if m.metrics != nil {
		m.metrics.RecordAuthRejection(rejection.Code)
	}
	m.logger.Debug("access token rejected",
		zap.String("reason", rejection.Code),
		zap.String("path", c.Path()),
		zap.Error(err))
	return rejection
}

func rejectionFor(err error) *apperrors.DomainError {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return apperrors.NewDomainError(CodeAccessExpired, MessageAccessExpire, fiber.StatusUnauthorized, nil)
	case errors.Is(err, ErrWrongCategory):
		return apperrors.NewDomainError(CodeWrongCategory, "token is not an access token", fiber.StatusUnauthorized, nil)
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrUnknownRole):
		return apperrors.NewDomainError(CodeInvalidToken, "invalid token", fiber.StatusUnauthorized, nil)
	default:
		return apperrors.NewDomainError(CodeMalformedToken, "malformed token", fiber.StatusUnauthorized, nil)
	}
}

func bearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
