package handlers

import (
	"errors"

	"github.com/picktime/picktime-api/internal/service"
	apperrors "github.com/picktime/picktime-api/pkg/util/errorutil"
)

// Machine codes of the refresh and logout flows.
const (
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeMissingRefreshToken = "MISSING_REFRESH_TOKEN"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeExpiredRefreshToken = "EXPIRED_REFRESH_TOKEN"
	CodeWrongTokenCategory  = "WRONG_TOKEN_CATEGORY"
	CodeNoActiveSession     = "NO_ACTIVE_SESSION"
)

// mapServiceError turns service sentinels into HTTP-facing DomainErrors.
// Refresh-flow failures are client errors (400); credential failures are 401.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorizedCode(CodeInvalidCredentials, "invalid username or password")
	case errors.Is(err, service.ErrMissingRefreshToken):
		return apperrors.NewBadRequest(CodeMissingRefreshToken, "refresh token missing")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return apperrors.NewBadRequest(CodeInvalidRefreshToken, "invalid refresh token")
	case errors.Is(err, service.ErrExpiredRefreshToken):
		return apperrors.NewBadRequest(CodeExpiredRefreshToken, "refresh token expired")
	case errors.Is(err, service.ErrWrongTokenCategory):
		return apperrors.NewBadRequest(CodeWrongTokenCategory, "token is not a refresh token")
	case errors.Is(err, service.ErrNoActiveSession):
		return apperrors.NewBadRequest(CodeNoActiveSession, "no active session")
	case errors.Is(err, service.ErrUsernameTaken):
		return apperrors.NewConflict(service.ErrUsernameTaken.Error(), nil)
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, service.ErrPasswordNotMatched):
		return apperrors.NewUnauthorized(service.ErrPasswordNotMatched.Error())
	case errors.Is(err, service.ErrVerificationFailed):
		return apperrors.NewUnauthorized(service.ErrVerificationFailed.Error())
	default:
		var de *apperrors.DomainError
		if errors.As(err, &de) {
			return de
		}
		return apperrors.NewInternalError(err)
	}
}
