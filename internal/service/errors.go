package service

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMissingRefreshToken = errors.New("missing refresh token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrExpiredRefreshToken = errors.New("expired refresh token")
	ErrWrongTokenCategory  = errors.New("wrong token category")
	ErrNoActiveSession     = errors.New("no active session")
	ErrUsernameTaken       = errors.New("email already registered")
	ErrPasswordNotMatched  = errors.New("password is not matched")
	ErrUserNotFound        = errors.New("user not found")
	ErrVerificationFailed  = errors.New("failed to verify email")
)
