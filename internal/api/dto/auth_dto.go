package dto

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	apperrors "github.com/picktime/picktime-api/pkg/util/errorutil"
)

// LoginRequest payload for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest payload for POST /user.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate checks the account fields.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 30)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
	)
}

// VerificationEmailRequest payload for POST /verification/email.
type VerificationEmailRequest struct {
	Username string `json:"username"`
}

// Validate checks the target address.
func (r VerificationEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, is.Email),
	)
}

// CheckVerificationRequest payload for POST /verification/check.
type CheckVerificationRequest struct {
	Username           string `json:"username"`
	VerificationNumber string `json:"verificationNumber"`
}

// Validate checks the code shape.
func (r CheckVerificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.VerificationNumber, validation.Required, validation.Length(4, 4), is.Digit),
	)
}

// PasswordCheckRequest payload for POST /user/password/check.
type PasswordCheckRequest struct {
	Password string `json:"password"`
}

// Validate checks required fields.
func (r PasswordCheckRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

// TokenResponse carries an access token in the response body.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	TokenResponse
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// StatusResponse is a plain acknowledgement.
type StatusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// UserResponse describes the signed-in user.
type UserResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
}

// ValidationError converts ozzo field errors into a VALIDATION_FAILED DomainError.
func ValidationError(err error) error {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fields))
	for name, fieldErr := range fields {
		details[name] = fieldErr.Error()
	}
	return apperrors.NewValidationError("invalid payload", details)
}
